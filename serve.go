package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/metrics"
	"LIBRIS-backend/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:               "serve",
		Short:             "Run the API server",
		Args:              cobra.NoArgs,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			if migrate {
				applied, err := db.Migrate(cmd.Context(), conn)
				if err != nil {
					return err
				}
				logger.Info("migrations applied", zap.Strings("files", applied))
			}

			r := server.NewRouter(server.Deps{Config: cfg, Conn: conn, Log: logger, Metrics: metrics.New()})
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				var err error
				if cfg.Server.TLSEnabled() {
					logger.Info("listening (TLS)", zap.String("addr", srv.Addr))
					err = srv.ListenAndServeTLS(cfg.Server.Certificate.Cert, cfg.Server.Certificate.Key)
				} else {
					logger.Info("listening", zap.String("addr", srv.Addr))
					err = srv.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}
			logger.Info("shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
