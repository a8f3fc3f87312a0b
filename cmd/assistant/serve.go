package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datamesa/assistant/pkg/logger"
	"github.com/datamesa/assistant/pkg/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API and metrics listeners",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			log := logger.New(verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log.Warn("failed to close executor", "error", err)
				}
			}()

			srv := server.New(a.orc, a.store, log)
			return srv.ListenAndServe(ctx, a.cfg.ListenAddr, a.cfg.MetricsAddr)
		},
	}
}
