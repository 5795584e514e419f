package events

import (
	"context"

	"github.com/banquethub/service-reservation/internal/application"
	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// VenueCatalog is the part of the catalog service the consumer drives.
type VenueCatalog interface {
	ApplyVenueUpserted(ctx context.Context, evt events.VenueUpsertedEvent) error
	ApplyVenueRemoved(ctx context.Context, evt events.VenueRemovedEvent) error
}

var _ VenueCatalog = (*application.CatalogService)(nil)

// VenueEventConsumer listens to venue catalog events and keeps the local projection current.
type VenueEventConsumer struct {
	consumer *kafka.Consumer
	catalog  VenueCatalog
	logger   *zap.Logger
}

// NewVenueEventConsumer creates a new VenueEventConsumer.
func NewVenueEventConsumer(
	brokers []string,
	groupID string,
	catalog VenueCatalog,
	logger *zap.Logger,
) *VenueEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicVenueEvents, logger)
	return &VenueEventConsumer{
		consumer: consumer,
		catalog:  catalog,
		logger:   logger.Named("venue_consumer"),
	}
}

// Start begins consuming venue events. This blocks until the context is cancelled.
func (c *VenueEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *VenueEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *VenueEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from venue topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}
	return c.handle(ctx, cloudEvent)
}

func (c *VenueEventConsumer) handle(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var err error
	switch cloudEvent.Type {
	case events.VenueUpserted:
		var evt events.VenueUpsertedEvent
		if perr := cloudEvent.ParseData(&evt); perr != nil {
			c.logger.Error("failed to parse VenueUpsertedEvent data", zap.Error(perr))
			return nil
		}
		err = c.catalog.ApplyVenueUpserted(ctx, evt)
	case events.VenueRemoved:
		var evt events.VenueRemovedEvent
		if perr := cloudEvent.ParseData(&evt); perr != nil {
			c.logger.Error("failed to parse VenueRemovedEvent data", zap.Error(perr))
			return nil
		}
		err = c.catalog.ApplyVenueRemoved(ctx, evt)
	default:
		c.logger.Debug("ignoring unhandled venue event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	if domain.HasCode(err, domain.CodeValidation) {
		// The projection can never accept this snapshot.
		c.logger.Error("dropping invalid venue event",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil
	}
	return err
}
