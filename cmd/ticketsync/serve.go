package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-sync/internal/api/http"
	"github.com/spec-kit/ticket-sync/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/service"
	"github.com/spec-kit/ticket-sync/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator API and run the sync schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		logger := getLogger(cmd)

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var scheduler *worker.Scheduler
		if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); !noSchedule && cfg.Sync.Schedule != "" {
			scheduler, err = worker.NewScheduler(cfg.Sync.Schedule, a.runs, cfg.Sync.LockTTL(), logger)
			if err != nil {
				return err
			}
			scheduler.Start()
		}

		authService := service.NewAuthService(cfg.Auth)
		app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
		httptransport.RegisterMiddlewares(app, logger, a.metrics, cfg.App.RequestTimeout())
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
				"postgres": a.postgres,
				"redis":    a.redis,
			}),
			Auth:           handlers.NewAuthHandler(authService),
			Sync:           handlers.NewSyncHandler(a.runs, a.metrics),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		})

		go func() {
			logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Fatal("fiber listen", zap.Error(err))
			}
		}()

		waitForShutdown(logger)

		if scheduler != nil {
			stopped := scheduler.Stop()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
				logger.Warn("scheduled run still in progress at shutdown")
			}
		}
		return app.ShutdownWithTimeout(shutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().Bool("no-schedule", false, "Do not run the cron schedule")
	rootCmd.AddCommand(serveCmd)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
