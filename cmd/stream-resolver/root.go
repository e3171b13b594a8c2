package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags rootFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "stream-resolver",
		Short:         "VieON catalog browser and HLS link resolver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Load KEY=VALUE pairs from this file when it exists")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")
	pf.BoolVar(&flags.jsonLogs, "json-logs", false, "Write logs as JSON instead of console text")

	rootCmd.AddCommand(
		newServeCommand(ctx),
		newHomeCommand(ctx),
		newSearchCommand(ctx),
		newLoadCommand(ctx),
		newLinksCommand(ctx),
		newGroupsCommand(ctx),
		newPublishedCommand(ctx),
		newProbeCommand(ctx),
	)
	return rootCmd
}
