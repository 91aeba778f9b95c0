package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/api"
	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/certs"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/review"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bookkeeping functions over HTTP",
		Long: `Start the HTTP server exposing sync, categorization, reconciliation,
review, account linking, categories and manual entry under /functions/.

Functions whose vendor is not configured answer 503.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.ServerAddr
			}

			deps := api.Deps{
				Storage:    store,
				Review:     review.NewService(store, cfg.ReviewPatterns, slog.Default()),
				Logger:     slog.Default(),
				CORSOrigin: viper.GetString("server.cors_origin"),
			}

			var categorizer *categorize.Categorizer
			if client, err := newLLMClient(ctx); err != nil {
				slog.Warn("Language model not configured; categorization and reconciliation disabled", "error", err)
			} else {
				defer client.Close()
				categorizer = newCategorizer(store, client, cfg)
				deps.Categorizer = categorizer
				deps.Reconciler = reconcile.New(store, client, cfg.ReconcileWindowDays, slog.Default())
			}

			if syncer, err := newSyncer(store, cfg, categorizer); err != nil {
				slog.Warn("Bank sync not configured; sync and linking disabled", "error", err)
			} else {
				deps.Syncer = syncer
			}

			if useTLS, _ := cmd.Flags().GetBool("tls"); useTLS {
				dir := config.ExpandPath(viper.GetString("server.cert_dir"))
				tlsConfig, err := certs.NewStore(dir).TLSConfig()
				if err != nil {
					return fmt.Errorf("failed to load localhost certificate: %w", err)
				}
				deps.TLS = tlsConfig
			}

			return api.NewServer(deps).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: server.addr)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed localhost certificate")
	return cmd
}
