package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/banquethub/service-reservation/internal/application"
	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/pkg/config"
)

// Event transports supported for outgoing reservation events.
const (
	EventsDriverKafka    = "kafka"
	EventsDriverRabbitMQ = "rabbitmq"
)

// ServiceConfig holds all configuration for the reservation service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	DBConfig       config.DatabaseConfig
	JWTConfig      config.JWTConfig
	KafkaConfig    config.KafkaConfig
	RabbitMQConfig config.RabbitMQConfig
	RedisConfig    config.RedisConfig

	EventsDriver   string
	LogFile        string
	RequestTimeout time.Duration

	Policy          application.Policy
	ServiceFeeCents int64
	SweepInterval   time.Duration
	SweepBatchSize  int
}

// RedisEnabled reports whether an availability cache address is configured.
func (c *ServiceConfig) RedisEnabled() bool {
	return c.RedisConfig.Addr != ""
}

// Load reads configuration from RESERVATION_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("RESERVATION")
	if err != nil {
		return nil, err
	}

	v.SetDefault("db_name", "reservations")
	v.SetDefault("events_driver", EventsDriverKafka)
	v.SetDefault("request_timeout", "5s")
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("block_policy", string(reservationDomain.BlockPolicyEnforce))
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_backoff", "20ms")
	v.SetDefault("service_fee_cents", reservationDomain.DefaultServiceFeeCents)
	v.SetDefault("sweep_interval", "15m")
	v.SetDefault("sweep_batch_size", 200)

	blockPolicy, err := reservationDomain.ParseBlockPolicy(v.GetString("block_policy"))
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(v.GetString("time_zone"))
	if err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}

	driver := strings.ToLower(v.GetString("events_driver"))
	if driver != EventsDriverKafka && driver != EventsDriverRabbitMQ {
		return nil, fmt.Errorf("invalid events driver: %s", driver)
	}

	cfg := &ServiceConfig{
		Port:           config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:         config.GetAppEnv(v),
		DBConfig:       config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:      config.LoadJWTConfig(v),
		KafkaConfig:    config.LoadKafkaConfig(v),
		RabbitMQConfig: config.LoadRabbitMQConfig(v),
		RedisConfig:    config.LoadRedisConfig(v),
		EventsDriver:   driver,
		LogFile:        v.GetString("log_file"),
		RequestTimeout: v.GetDuration("request_timeout"),
		Policy: application.Policy{
			BlockPolicy:  blockPolicy,
			MaxAttempts:  v.GetInt("max_attempts"),
			RetryBackoff: v.GetDuration("retry_backoff"),
			Location:     loc,
		},
		ServiceFeeCents: v.GetInt64("service_fee_cents"),
		SweepInterval:   v.GetDuration("sweep_interval"),
		SweepBatchSize:  v.GetInt("sweep_batch_size"),
	}

	if cfg.AppEnv == "production" && cfg.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret must be set in production")
	}
	return cfg, nil
}
