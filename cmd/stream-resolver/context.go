package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/snapetech/streamresolvr/internal/config"
	"github.com/snapetech/streamresolvr/internal/httpclient"
	"github.com/snapetech/streamresolvr/internal/indexer"
	"github.com/snapetech/streamresolvr/internal/ledger"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/playback"
	"github.com/snapetech/streamresolvr/internal/provider"
	"github.com/snapetech/streamresolvr/internal/publish"
	"github.com/snapetech/streamresolvr/internal/ribbon"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
	jsonLogs   bool
}

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg      *config.Config
	api      *provider.Client
	groups   *ribbon.Cache
	indexer  *indexer.Indexer
	player   *playback.Resolver
	ledger   *ledger.Ledger // nil when the ledger is disabled
	stores   []provider.Target
	primary  publish.Store
	fallback publish.Store
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(c.flags.envFile); path != "" {
			if _, err := config.LoadEnvFile(path); err != nil {
				c.configErr = err
				return
			}
		}
		cfg, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.logLevel != "" {
			cfg.LogLevel = c.flags.logLevel
		}
		log.Configure(log.Config{Level: cfg.LogLevel, Console: !c.flags.jsonLogs})
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureApp wires the provider, caches, publisher and resolver from config.
func (c *commandContext) ensureApp() (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = buildApp(cfg)
	})
	return c.app, c.appErr
}

func buildApp(cfg *config.Config) (*app, error) {
	client := httpclient.New(httpclient.Options{
		Timeout:         cfg.HTTPTimeout,
		RateLimit:       cfg.RateLimit,
		Burst:           cfg.RateBurst,
		HostConcurrency: cfg.HostConcurrency,
	})
	api := provider.New(provider.Options{
		APIBase:  cfg.APIBaseURL,
		MenuURL:  cfg.MenuURL,
		Platform: cfg.Platform,
		HTTP:     client,
	})
	groups := ribbon.New(api)

	a := &app{
		cfg:    cfg,
		api:    api,
		groups: groups,
		indexer: indexer.New(api, groups, indexer.Options{
			ItemConcurrency: cfg.ItemConcurrency,
			PageConcurrency: cfg.PageConcurrency,
			ImageBase:       cfg.ImageBaseURL,
		}),
		stores: []provider.Target{{Name: "menu", URL: cfg.MenuURL}},
	}

	switch cfg.PrimaryStoreKind() {
	case "github":
		gh := publish.GitHubStore{
			Owner:  cfg.GitHubOwner,
			Repo:   cfg.GitHubRepo,
			Branch: cfg.GitHubBranch,
			Dir:    cfg.GitHubDir,
			Token:  cfg.GitHubToken,
			Client: client,
		}
		a.primary = gh
		a.stores = append(a.stores, provider.Target{Name: "primary", URL: "https://api.github.com/repos/" + gh.Owner + "/" + gh.Repo})
	case "static":
		a.primary = publish.BaseURLStore{BaseURL: cfg.PrimaryBaseURL}
		a.stores = append(a.stores, provider.Target{Name: "primary", URL: cfg.PrimaryBaseURL})
	}
	if cfg.WorkerURL != "" {
		a.fallback = publish.WorkerStore{BaseURL: cfg.WorkerURL, Client: client}
		a.stores = append(a.stores, provider.Target{Name: "worker", URL: cfg.WorkerURL})
	}

	var recorder publish.Recorder
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		recorder = l
	}

	pub := publish.New(publish.Options{
		Primary:   a.primary,
		Secondary: a.fallback,
		Client:    client,
		Recorder:  recorder,
	})
	a.player = playback.New(api, pub, playback.Options{PublishLimit: cfg.PublishConcurrency})
	return a, nil
}

func (c *commandContext) close() error {
	if c.app == nil || c.app.ledger == nil {
		return nil
	}
	if err := c.app.ledger.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}
