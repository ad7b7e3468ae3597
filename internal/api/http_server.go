// Package api exposes a small read-only HTTP surface: health, free
// slots and the schedule. It exists for the shop's site widget; all
// writes go through the bot.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"avtomaster/internal/config"
	"avtomaster/internal/domain"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
)

type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	catalog  domain.Catalog
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, catalog domain.Catalog, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		catalog:  catalog,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/slots", srv.handleSlots)
	mux.HandleFunc("/api/v1/schedule", srv.handleSchedule)
	mux.HandleFunc("/api/v1/services", srv.handleServices)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleSlots отвечает свободными слотами на дату и услугу
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if err := s.bookings.ValidateBookingDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date is out of the booking window")
		return
	}

	serviceName := strings.TrimSpace(r.URL.Query().Get("service"))

	slots, err := s.bookings.AvailableSlots(r.Context(), date, serviceName)
	if err != nil {
		s.logger.Error().Err(err).Str("date", dateStr).Msg("slots request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if slots == nil {
		slots = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":             dateStr,
		"service":          serviceName,
		"duration_minutes": s.catalog.DurationMinutesFor(serviceName),
		"slots":            slots,
	})
}

type scheduleEntry struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	ServiceName string `json:"service_name"`
	Status      string `json:"status"`
}

// handleSchedule возвращает занятые интервалы за период без данных клиентов
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, err := parseDateParam(r, "from", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to", from.AddDate(0, 0, 6))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	bookings, err := s.bookings.GetBookingsByDateRange(r.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries := make([]scheduleEntry, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != models.StatusRequested && b.Status != models.StatusConfirmed {
			continue
		}
		entries = append(entries, scheduleEntry{
			ID:          b.ID,
			Date:        b.Date.Format("2006-01-02"),
			Time:        b.Time,
			ServiceName: b.ServiceName,
			Status:      b.Status,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
		"bookings": entries,
	})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": s.catalog.ActiveServices()})
}

func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Date(fallback.Year(), fallback.Month(), fallback.Day(), 0, 0, 0, 0, fallback.Location()), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return t, nil
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
