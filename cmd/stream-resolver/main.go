// Command stream-resolver browses the VieON catalog and resolves playable HLS links.
//
//	serve      Run the JSON HTTP API (/api/*, /healthz, /metrics)
//	home       Print one home row, or every configured row; --out saves a snapshot
//	search     Keyword search
//	load       Detail page for a content URL
//	links      Resolve and publish playable links for a data URL
//	groups     List discovered category groups
//	published  Recent entries from the publish ledger
//	probe      Check the catalog API and publish stores are reachable
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
