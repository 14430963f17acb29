package main

import (
	"context"

	"veneer/internal/metrics"
	"veneer/internal/server"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("veneer")

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the language server over stdio",
	SilenceUsage: true,
	RunE:         runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		g.Go(func() error {
			// the editor keeps working without metrics
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				log.Errorf("metrics: %s", err)
			}
			return nil
		})
	}

	s := server.New(cfg, Version)
	g.Go(func() error {
		// the client went away: stop the metrics endpoint too
		defer cancel()
		return s.RunStdio()
	})
	return g.Wait()
}
