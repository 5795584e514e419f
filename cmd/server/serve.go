package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banquethub/service-reservation/internal/config"
	reservationEvents "github.com/banquethub/service-reservation/internal/events"
	"github.com/banquethub/service-reservation/internal/handler"
	"github.com/banquethub/service-reservation/internal/repository/migrations"
	"github.com/banquethub/service-reservation/internal/worker"
	"github.com/banquethub/service-reservation/pkg/auth"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/banquethub/service-reservation/pkg/health"
	"github.com/banquethub/service-reservation/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		migrateUp  bool
		noConsumer bool
		noSweeper  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, venue consumer and completion sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			log.Info("starting "+serviceName,
				zap.String("port", cfg.Port),
				zap.String("events_driver", cfg.EventsDriver),
				zap.String("block_policy", string(cfg.Policy.BlockPolicy)),
			)

			if migrateUp {
				if err := database.RunMigrations(postgresConfig(cfg).DatabaseURL(), migrations.FS, ".", log); err != nil {
					return err
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if !noConsumer {
				startVenueConsumer(ctx, cfg, a, log)
			}
			if !noSweeper {
				sweeper := worker.NewCompletionSweeper(a.reservations, cfg.SweepInterval, cfg.SweepBatchSize, log)
				go func() {
					if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error("completion sweeper stopped", zap.Error(err))
					}
				}()
			}

			return serveHTTP(ctx, cfg, a, log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&noConsumer, "no-consumer", false, "do not consume venue catalog events")
	cmd.Flags().BoolVar(&noSweeper, "no-sweeper", false, "do not run the completion sweeper")
	return cmd
}

func startVenueConsumer(ctx context.Context, cfg *config.ServiceConfig, a *app, log *zap.Logger) {
	groupID := cfg.KafkaConfig.GroupPrefix + serviceName
	consumer := reservationEvents.NewVenueEventConsumer(cfg.KafkaConfig.Brokers, groupID, a.catalog, log)

	go func() {
		defer func() { _ = consumer.Close() }()
		log.Info("starting venue event consumer")
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("venue event consumer error", zap.Error(err))
		}
	}()
}

func serveHTTP(ctx context.Context, cfg *config.ServiceConfig, a *app, log *zap.Logger) error {
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTTL)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))

	healthHandler := health.NewHandler(a.db, serviceName)
	if a.cache != nil {
		healthHandler.AddChecker("redis", a.cache.Ping)
	}
	healthHandler.RegisterRoutes(router)

	handler.NewReservationHandler(a.reservations).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAvailabilityHandler(a.availability, a.catalog).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminReservationHandler(a.reservations).RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down " + serviceName + "...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
	return nil
}
