package main

import (
	"context"
	"fmt"

	"github.com/banquethub/service-reservation/internal/application"
	"github.com/banquethub/service-reservation/internal/cache"
	"github.com/banquethub/service-reservation/internal/config"
	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/internal/repository"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/banquethub/service-reservation/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// publisher is an EventPublisher owning a broker connection.
type publisher interface {
	application.EventPublisher
	Close() error
}

// app holds the wired services and the resources they own.
type app struct {
	db           *gorm.DB
	redis        *redis.Client
	cache        *cache.RedisAvailabilityCache
	publisher    publisher
	reservations *application.ReservationService
	availability *application.AvailabilityService
	catalog      *application.CatalogService
	log          *zap.Logger
}

func newApp(ctx context.Context, cfg *config.ServiceConfig, log *zap.Logger) (*app, error) {
	db, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, log: log}

	var availabilityCache application.AvailabilityCache = application.NopCache{}
	if cfg.RedisEnabled() {
		client, err := cache.NewClient(ctx, cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.cache = cache.NewRedisAvailabilityCache(client, cfg.RedisConfig.TTL)
		availabilityCache = a.cache
		log.Info("availability cache enabled", zap.String("addr", cfg.RedisConfig.Addr))
	}

	switch cfg.EventsDriver {
	case config.EventsDriverRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Exchange, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		a.publisher = p
	default:
		a.publisher = kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	}

	reservationRepo := repository.NewGormReservationRepository(db)
	blockRepo := repository.NewGormBlockRepository(db)
	venueRepo := repository.NewGormVenueRepository(db)
	pricing := reservationDomain.NewStandardPricingStrategy(cfg.ServiceFeeCents)
	clock := application.SystemClock{}

	a.reservations = application.NewReservationService(reservationRepo, venueRepo, pricing, a.publisher, availabilityCache, clock, cfg.Policy, log)
	a.availability = application.NewAvailabilityService(reservationRepo, blockRepo, venueRepo, availabilityCache, clock, cfg.Policy, log)
	a.catalog = application.NewCatalogService(venueRepo, availabilityCache, log)

	return a, nil
}

// Close releases the broker, cache and database connections.
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
