package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Dhoini/seatsync/internal/app"
	"github.com/Dhoini/seatsync/internal/http/routes"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the scheduled reconciliation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.NewApp(ctx, cfg, log)
			if err != nil {
				log.Errorw("Failed to initialize application", "error", err)
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warnw("Error while closing application", "error", err)
				}
			}()

			if migrate {
				if err := a.DB.MigrateUp(cfg.Database.MigrationsPath); err != nil {
					return err
				}
			}

			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			routes.SetupRoutes(router, a, log)

			scheduler := cron.New()
			if cfg.Reconcile.Enabled {
				if _, err := a.Sweeper.Schedule(scheduler, cfg.Reconcile.Schedule, cfg.Reconcile.Timeout); err != nil {
					return err
				}
				scheduler.Start()
				log.Infow("Slot reconciliation scheduled", "schedule", cfg.Reconcile.Schedule)
			}

			server := &http.Server{
				Addr:              ":" + cfg.App.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Infow("Starting server", "port", cfg.App.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					log.Errorw("Server error", "error", err)
					return err
				}
			case <-ctx.Done():
			}

			log.Infow("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()

			<-scheduler.Stop().Done()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Errorw("Server forced to shutdown", "error", err)
				return err
			}
			log.Infow("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}
