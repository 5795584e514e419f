package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banquethub/service-reservation/internal/application"
	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/banquethub/service-reservation/internal/repository/memory"
	"github.com/banquethub/service-reservation/pkg/auth"
	"github.com/banquethub/service-reservation/pkg/events"
	"github.com/banquethub/service-reservation/pkg/kafka"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type discardPublisher struct{}

func (discardPublisher) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code                     string `json:"code"`
		ConflictingReservationID string `json:"conflicting_reservation_id"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type testServer struct {
	router  *gin.Engine
	jwt     *auth.JWTManager
	venueID uuid.UUID
	ownerID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	log := zap.NewNop()
	clock := fixedClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	policy := application.DefaultPolicy()
	pricing := reservationDomain.NewStandardPricingStrategy(reservationDomain.DefaultServiceFeeCents)

	reservations := application.NewReservationService(store.Reservations(), store.Venues(), pricing, discardPublisher{}, application.NopCache{}, clock, policy, log)
	availability := application.NewAvailabilityService(store.Reservations(), store.Blocks(), store.Venues(), application.NopCache{}, clock, policy, log)
	catalog := application.NewCatalogService(store.Venues(), application.NopCache{}, log)

	s := &testServer{
		router:  gin.New(),
		jwt:     auth.NewJWTManager("test-secret", time.Hour),
		venueID: uuid.New(),
		ownerID: uuid.New(),
	}
	require.NoError(t, catalog.ApplyVenueUpserted(context.Background(), events.VenueUpsertedEvent{
		VenueID:           s.venueID,
		OwnerID:           s.ownerID,
		Name:              "Lotus Banquet",
		Capacity:          150,
		PricePerSlotCents: 40000,
		Currency:          "INR",
		Active:            true,
		Version:           1,
	}))

	root := s.router.Group("")
	NewReservationHandler(reservations).RegisterRoutes(root, s.jwt)
	NewAvailabilityHandler(availability, catalog).RegisterRoutes(root, s.jwt)
	NewAdminReservationHandler(reservations).RegisterRoutes(root, s.jwt)
	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) submitBody(date, slot string) map[string]interface{} {
	return map[string]interface{}{
		"venue_id":    s.venueID,
		"date":        date,
		"time_slot":   slot,
		"guest_count": 80,
	}
}

func TestSubmitReservation(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, uuid.New(), auth.RoleUser)

	w, env := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-03-14", "evening"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var dto application.ReservationDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "2026-03-14", dto.Date)
	assert.Equal(t, int64(42500), dto.TotalPriceCents)

	w, env = s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, uuid.New(), auth.RoleUser), s.submitBody("2026-03-14", "evening"))
	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SLOT_CONFLICT", env.Error.Code)
	assert.Equal(t, dto.ID.String(), env.Error.ConflictingReservationID)
}

func TestSubmitReservationErrors(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, uuid.New(), auth.RoleUser)

	tests := []struct {
		name   string
		token  string
		body   interface{}
		status int
	}{
		{"missing token", "", s.submitBody("2026-03-14", "morning"), http.StatusUnauthorized},
		{"malformed body", user, "not an object", http.StatusBadRequest},
		{"unknown slot", user, s.submitBody("2026-03-14", "brunch"), http.StatusBadRequest},
		{"past date", user, s.submitBody("2026-02-01", "morning"), http.StatusBadRequest},
		{"unknown venue", user, map[string]interface{}{
			"venue_id": uuid.New(), "date": "2026-03-14", "time_slot": "morning", "guest_count": 10,
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := s.do(t, http.MethodPost, "/api/v1/reservations", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSubmitReservationIdempotencyHeader(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, uuid.New(), auth.RoleUser)

	w1, env1 := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-04-01", "night"), IdempotencyKeyHeader, "retry-7")
	require.Equal(t, http.StatusCreated, w1.Code)
	w2, env2 := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-04-01", "night"), IdempotencyKeyHeader, "retry-7")
	require.Equal(t, http.StatusCreated, w2.Code)

	var first, second application.ReservationDTO
	require.NoError(t, json.Unmarshal(env1.Data, &first))
	require.NoError(t, json.Unmarshal(env2.Data, &second))
	assert.Equal(t, first.ID, second.ID)

	body := s.submitBody("2026-04-02", "night")
	body["idempotency_key"] = "other"
	w, _ := s.do(t, http.MethodPost, "/api/v1/reservations", user, body, IdempotencyKeyHeader, "retry-8")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionRoutes(t *testing.T) {
	s := newTestServer(t)
	requesterID := uuid.New()
	user := s.token(t, requesterID, auth.RoleUser)
	owner := s.token(t, s.ownerID, auth.RoleOwner)

	_, env := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-05-09", "morning"))
	var dto application.ReservationDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	base := "/api/v1/reservations/" + dto.ID.String()

	w, _ := s.do(t, http.MethodPost, base+"/confirm", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "requesters cannot confirm")

	w, env = s.do(t, http.MethodPost, base+"/confirm", owner, map[string]string{"note": "see you there"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "confirmed", dto.Status)

	w, env = s.do(t, http.MethodPost, base+"/reject", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, _ = s.do(t, http.MethodPost, base+"/cancel", user, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, base, s.token(t, uuid.New(), auth.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/reservations/not-a-uuid/cancel", user, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRoutes(t *testing.T) {
	s := newTestServer(t)
	requesterID := uuid.New()
	user := s.token(t, requesterID, auth.RoleUser)

	for _, slot := range []string{"morning", "evening"} {
		w, _ := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-06-20", slot))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/reservations?page=1&limit=1", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.Total)

	w, env = s.do(t, http.MethodGet, "/api/v1/venues/"+s.venueID.String()+"/reservations", s.token(t, s.ownerID, auth.RoleOwner), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), env.Meta.Total)

	w, _ = s.do(t, http.MethodGet, "/api/v1/venues/"+s.venueID.String()+"/reservations", s.token(t, uuid.New(), auth.RoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAvailabilityRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, uuid.New(), auth.RoleUser)
	owner := s.token(t, s.ownerID, auth.RoleOwner)
	venuePath := "/api/v1/venues/" + s.venueID.String()

	w, _ := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-03-01", "morning"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodPut, venuePath+"/blocks/2026-03-01/night", owner, map[string]string{"reason": "maintenance"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPut, venuePath+"/blocks/2026-03-01/morning", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "booked slots cannot be blocked")

	w, _ = s.do(t, http.MethodPut, venuePath+"/blocks/2026-03-01/evening", s.token(t, uuid.New(), auth.RoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodGet, venuePath+"/availability?from=2026-03-01&to=2026-03-02", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dto struct {
		Slots map[string]map[string]string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, map[string]string{"morning": "booked", "evening": "free", "night": "blocked"}, dto.Slots["2026-03-01"])
	assert.Len(t, dto.Slots, 2)

	w, _ = s.do(t, http.MethodDelete, venuePath+"/blocks/2026-03-01/night", owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodGet, venuePath+"/availability?from=2026-03-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, venuePath+"/availability?from=2026-03-05&to=2026-03-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/venues/"+uuid.NewString()+"/availability?from=2026-03-01&to=2026-03-02", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, venuePath, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, uuid.New(), auth.RoleUser)
	admin := s.token(t, uuid.New(), auth.RoleAdmin)

	w, _ := s.do(t, http.MethodPost, "/api/v1/reservations", user, s.submitBody("2026-07-04", "evening"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/reservations", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/v1/admin/reservations", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.Meta.Total)

	w, env = s.do(t, http.MethodGet, "/api/v1/admin/stats/reservations", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats application.ReservationStatsDTO
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalReservations)
	assert.Equal(t, int64(1), stats.ByStatus["pending"])
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query       string
		page, limit int
	}{
		{"", 1, 20},
		{"?page=3&limit=50", 3, 50},
		{"?page=0&limit=-1", 1, 20},
		{"?limit=1000", 1, 100},
		{"?page=abc", 1, 20},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		page, limit := parsePagination(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}
