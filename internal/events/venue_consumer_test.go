package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	upserted []events.VenueUpsertedEvent
	removed  []events.VenueRemovedEvent
	err      error
}

func (f *fakeCatalog) ApplyVenueUpserted(_ context.Context, evt events.VenueUpsertedEvent) error {
	f.upserted = append(f.upserted, evt)
	return f.err
}

func (f *fakeCatalog) ApplyVenueRemoved(_ context.Context, evt events.VenueRemovedEvent) error {
	f.removed = append(f.removed, evt)
	return f.err
}

func message(t *testing.T, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-venue", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}
}

func newTestConsumer(catalog VenueCatalog) *VenueEventConsumer {
	return &VenueEventConsumer{catalog: catalog, logger: zap.NewNop()}
}

func TestHandleMessage_Dispatch(t *testing.T) {
	catalog := &fakeCatalog{}
	c := newTestConsumer(catalog)
	ctx := context.Background()
	venueID := uuid.New()

	require.NoError(t, c.handleMessage(ctx, message(t, events.VenueUpserted, events.VenueUpsertedEvent{VenueID: venueID, Version: 4})))
	require.NoError(t, c.handleMessage(ctx, message(t, events.VenueRemoved, events.VenueRemovedEvent{VenueID: venueID, Version: 5})))
	require.NoError(t, c.handleMessage(ctx, message(t, "venue.renamed", map[string]string{"name": "x"})))

	require.Len(t, catalog.upserted, 1)
	assert.Equal(t, int64(4), catalog.upserted[0].Version)
	require.Len(t, catalog.removed, 1)
	assert.Equal(t, venueID, catalog.removed[0].VenueID)
}

func TestHandleMessage_Errors(t *testing.T) {
	ctx := context.Background()

	malformed := newTestConsumer(&fakeCatalog{})
	assert.NoError(t, malformed.handleMessage(ctx, kafkago.Message{Value: []byte("{not json")}))

	invalid := newTestConsumer(&fakeCatalog{err: domain.NewValidationError("capacity must be positive")})
	assert.NoError(t, invalid.handleMessage(ctx, message(t, events.VenueUpserted, events.VenueUpsertedEvent{})))

	transient := newTestConsumer(&fakeCatalog{err: errors.New("connection reset")})
	assert.Error(t, transient.handleMessage(ctx, message(t, events.VenueRemoved, events.VenueRemovedEvent{})))
}
