package main

import (
	"fmt"
	"os"

	"github.com/banquethub/service-reservation/internal/config"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/banquethub/service-reservation/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "service-reservation"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reservation",
		Short:         "Venue slot reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSweepCmd())

	return root
}

// bootstrap loads configuration and builds the logger shared by every command.
func bootstrap() (*config.ServiceConfig, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var opts []logger.Option
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile))
	}
	log, err := logger.NewNamed(cfg.AppEnv, serviceName, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func postgresConfig(cfg *config.ServiceConfig) database.PostgresConfig {
	return database.PostgresConfig{
		Host:            cfg.DBConfig.Host,
		Port:            cfg.DBConfig.Port,
		User:            cfg.DBConfig.User,
		Password:        cfg.DBConfig.Password,
		DBName:          cfg.DBConfig.DBName,
		SSLMode:         cfg.DBConfig.SSLMode,
		MaxOpenConns:    cfg.DBConfig.MaxOpenConns,
		MaxIdleConns:    cfg.DBConfig.MaxIdleConns,
		ConnMaxLifetime: cfg.DBConfig.ConnMaxLifetime,
	}
}

func connect(cfg *config.ServiceConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.Connect(postgresConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
