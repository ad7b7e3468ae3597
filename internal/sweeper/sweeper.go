// Package sweeper closes out confirmed bookings whose work window has
// passed. Completion is a background transition, not a user action.
package sweeper

import (
	"context"
	"errors"
	"time"

	"avtomaster/internal/database"
	"avtomaster/internal/domain"
	"avtomaster/internal/models"
	"avtomaster/internal/schedule"

	"github.com/rs/zerolog"
)

// Sweeper periodically flips confirmed bookings with an elapsed end
// time to completed. It uses the same conditional update the lifecycle
// engine does, so a cancellation racing the sweep loses or wins cleanly.
type Sweeper struct {
	repo     domain.Repository
	catalog  domain.Catalog
	shop     *schedule.Shop
	clock    schedule.Clock
	interval time.Duration
	logger   *zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(repo domain.Repository, catalog domain.Catalog, shop *schedule.Shop, clock schedule.Clock, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Duration(models.DefaultSweepIntervalMinutes) * time.Minute
	}
	if clock == nil {
		clock = schedule.NewClock(shop.Location())
	}
	return &Sweeper{
		repo:     repo,
		catalog:  catalog,
		shop:     shop,
		clock:    clock,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop or ctx cancellation. One sweep
// runs immediately on start to catch up after downtime.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)

		s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweeper stopped by context")
				return
			case <-s.stopCh:
				s.logger.Info().Msg("sweeper stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep completes every confirmed booking whose end time has passed.
// Per-booking errors are logged and retried on the next tick.
func (s *Sweeper) sweep(ctx context.Context) {
	bookings, err := s.repo.GetBookingsByStatus(ctx, models.StatusConfirmed)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: list confirmed bookings")
		return
	}

	now := s.clock.Now()
	completed := 0
	for _, booking := range bookings {
		startAt, err := booking.StartAt(s.shop.Location())
		if err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("sweep: bad start time")
			continue
		}
		endAt := startAt.Add(time.Duration(s.catalog.DurationMinutesFor(booking.ServiceName)) * time.Minute)
		if now.Before(endAt) {
			continue
		}

		err = s.repo.UpdateBookingStatusIf(ctx, booking.ID, models.StatusConfirmed, models.StatusCompleted, "")
		if errors.Is(err, database.ErrAlreadyProcessed) {
			// кто-то успел раньше, пропускаем
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("sweep: complete booking")
			continue
		}
		completed++
	}

	if completed > 0 {
		s.logger.Info().Int("completed", completed).Msg("sweep finished")
	}
}
