//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/banquethub/service-reservation/internal/application"
	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	reservationEvents "github.com/banquethub/service-reservation/internal/events"
	"github.com/banquethub/service-reservation/internal/repository"
	"github.com/banquethub/service-reservation/internal/repository/migrations"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// reservationStack holds wired-up reservation service components.
type reservationStack struct {
	Reservations    *application.ReservationService
	Availability    *application.AvailabilityService
	Catalog         *application.CatalogService
	Consumer        *reservationEvents.VenueEventConsumer
	CleanupProducer func()
}

// startPostgres starts a PostgreSQL container, applies the embedded migrations
// and returns a connected GORM DB.
func startPostgres(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test_reservations",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_reservations",
	}
	log := zap.NewNop()

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(cfg, log)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), migrations.FS, ".", log))

	return db, func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}
}

// setupContainers starts PostgreSQL and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	db, stopPostgres := startPostgres(t)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicReservationEvents, events.TopicVenueEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		stopPostgres()
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupReservationStack wires the services over PostgreSQL. A nil brokers list
// swaps the Kafka producer for a no-op publisher and skips the consumer.
func setupReservationStack(t *testing.T, db *gorm.DB, brokers []string) *reservationStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	reservationRepo := repository.NewGormReservationRepository(db)
	blockRepo := repository.NewGormBlockRepository(db)
	venueRepo := repository.NewGormVenueRepository(db)
	pricing := reservationDomain.NewStandardPricingStrategy(reservationDomain.DefaultServiceFeeCents)
	policy := application.DefaultPolicy()
	policy.MaxAttempts = 5

	stack := &reservationStack{CleanupProducer: func() {}}

	var publisher application.EventPublisher = nopPublisher{}
	if len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, logger)
		publisher = producer
		stack.CleanupProducer = func() { _ = producer.Close() }
	}

	stack.Reservations = application.NewReservationService(reservationRepo, venueRepo, pricing, publisher, application.NopCache{}, application.SystemClock{}, policy, logger)
	stack.Availability = application.NewAvailabilityService(reservationRepo, blockRepo, venueRepo, application.NopCache{}, application.SystemClock{}, policy, logger)
	stack.Catalog = application.NewCatalogService(venueRepo, application.NopCache{}, logger)

	if len(brokers) > 0 {
		groupID := fmt.Sprintf("test-reservation-%s", uuid.New().String()[:8])
		stack.Consumer = reservationEvents.NewVenueEventConsumer(brokers, groupID, stack.Catalog, logger)
	}
	return stack
}

type nopPublisher struct{}

func (nopPublisher) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }

// seedVenue projects an active venue directly through the catalog service.
func seedVenue(t *testing.T, catalog *application.CatalogService, venueID, ownerID uuid.UUID) {
	t.Helper()
	require.NoError(t, catalog.ApplyVenueUpserted(context.Background(), venueEvent(venueID, ownerID, 1)))
}

func venueEvent(venueID, ownerID uuid.UUID, version int64) events.VenueUpsertedEvent {
	return events.VenueUpsertedEvent{
		VenueID:           venueID,
		OwnerID:           ownerID,
		Name:              "Integration Hall",
		Capacity:          300,
		PricePerSlotCents: 75000,
		Currency:          "INR",
		Active:            true,
		Version:           version,
		OccurredAt:        time.Now().UTC(),
	}
}

// futureDate returns a YYYY-MM-DD date n days from now.
func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType, key string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce.WithSubject(key))
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	time.Sleep(1 * time.Second)
}
