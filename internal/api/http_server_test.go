package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"avtomaster/internal/config"
	"avtomaster/internal/database"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBookingService returns canned data; only the read paths the API
// uses are meaningful.
type stubBookingService struct {
	slots    []string
	bookings []*models.Booking
	slotsErr error
}

func (s *stubBookingService) ValidateBookingDate(date time.Time) error {
	if date.Year() < 2026 {
		return database.ErrPastDate
	}
	return nil
}

func (s *stubBookingService) AvailableSlots(context.Context, time.Time, string) ([]string, error) {
	return s.slots, s.slotsErr
}

func (s *stubBookingService) GetBookingsByDateRange(context.Context, time.Time, time.Time) ([]*models.Booking, error) {
	return s.bookings, nil
}

func (s *stubBookingService) CreateBooking(context.Context, int64, *models.BookingDraft) (*models.Booking, error) {
	return nil, nil
}
func (s *stubBookingService) ConfirmBooking(context.Context, int64, int64) error           { return nil }
func (s *stubBookingService) RejectBooking(context.Context, int64, int64, string) error    { return nil }
func (s *stubBookingService) ProposeTime(context.Context, int64, int64, string) error      { return nil }
func (s *stubBookingService) AcceptProposedTime(context.Context, int64, int64) error       { return nil }
func (s *stubBookingService) DeclineProposedTime(context.Context, int64, int64) error      { return nil }
func (s *stubBookingService) CancelBooking(context.Context, int64, int64) error            { return nil }
func (s *stubBookingService) DeleteBooking(context.Context, int64, int64) error            { return nil }
func (s *stubBookingService) RecoverReminders(context.Context) error                       { return nil }
func (s *stubBookingService) GetBooking(context.Context, int64) (*models.Booking, error)   { return nil, nil }
func (s *stubBookingService) GetUserBookings(context.Context, int64) ([]*models.Booking, error) {
	return nil, nil
}
func (s *stubBookingService) GetBookingsByDate(context.Context, time.Time) ([]*models.Booking, error) {
	return nil, nil
}
func (s *stubBookingService) GetDailyBookings(context.Context, time.Time, time.Time) (map[string][]*models.Booking, error) {
	return nil, nil
}

type stubCatalog struct{}

func (stubCatalog) DurationMinutesFor(string) int { return 60 }
func (stubCatalog) PriceFor(string) (int64, bool) { return 0, false }
func (stubCatalog) ActiveServices() []models.Service {
	return []models.Service{{Name: "Диагностика", DurationMinutes: 60, Price: 2000, IsActive: true}}
}

func newAPITest(t *testing.T, cfg config.APIConfig, bookings *stubBookingService) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	srv := NewHTTPServer(cfg, bookings, stubCatalog{}, &logger)
	return srv.server.Handler
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, Port: 8080}
}

func authConfig(keys ...string) config.APIConfig {
	cfg := openConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.HeaderAPIKey = "x-api-key"
	for _, k := range keys {
		cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, config.APIClientKey{Key: k, Name: "site"})
	}
	return cfg
}

func doRequest(handler http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointBypassesAuth(t *testing.T) {
	handler := newAPITest(t, authConfig("secret"), &stubBookingService{})

	rec := doRequest(handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	handler := newAPITest(t, authConfig("secret"), &stubBookingService{slots: []string{"10:00"}})

	t.Run("missing key", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/services", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/services", map[string]string{"x-api-key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/services", map[string]string{"x-api-key": "secret"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitPerKey(t *testing.T) {
	cfg := authConfig("secret")
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	handler := newAPITest(t, cfg, &stubBookingService{})

	headers := map[string]string{"x-api-key": "secret"}
	assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/api/v1/services", headers).Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/api/v1/services", headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodGet, "/api/v1/services", headers).Code)
}

func TestSlotsEndpoint(t *testing.T) {
	stub := &stubBookingService{slots: []string{"10:00", "10:30"}}
	handler := newAPITest(t, openConfig(), stub)

	t.Run("returns slots payload", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/slots?date=2026-09-07&service=Диагностика", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Date            string   `json:"date"`
			Service         string   `json:"service"`
			DurationMinutes int      `json:"duration_minutes"`
			Slots           []string `json:"slots"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "2026-09-07", body.Date)
		assert.Equal(t, 60, body.DurationMinutes)
		assert.Equal(t, []string{"10:00", "10:30"}, body.Slots)
	})

	t.Run("date required", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/slots", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad date format", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/slots?date=07.09.2026", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("date outside booking window", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/slots?date=2020-01-01", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fully booked day returns empty array", func(t *testing.T) {
		empty := newAPITest(t, openConfig(), &stubBookingService{})
		rec := doRequest(empty, http.MethodGet, "/api/v1/slots?date=2026-09-07", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"slots":[]`)
	})

	t.Run("post not allowed", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPost, "/api/v1/slots?date=2026-09-07", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestScheduleEndpointHidesClientData(t *testing.T) {
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	stub := &stubBookingService{bookings: []*models.Booking{
		{ID: 1, UserID: 5, Date: date, Time: "10:00", ServiceName: "Диагностика", Status: models.StatusConfirmed},
		{ID: 2, UserID: 6, Date: date, Time: "12:00", ServiceName: "Шиномонтаж", Status: models.StatusCancelled},
	}}
	handler := newAPITest(t, openConfig(), stub)

	rec := doRequest(handler, http.MethodGet, "/api/v1/schedule?from=2026-09-07&to=2026-09-08", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bookings []map[string]any `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Bookings, 1, "отменённые записи не возвращаются")
	assert.Equal(t, "Диагностика", body.Bookings[0]["service_name"])
	assert.NotContains(t, body.Bookings[0], "user_id", "данные клиента не раскрываются")

	t.Run("reversed range rejected", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/v1/schedule?from=2026-09-08&to=2026-09-07", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
