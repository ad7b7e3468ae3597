// Package reminder holds deferred one-shot notifications keyed by
// booking. Tasks live in memory; on restart the bot re-schedules them
// from the store.
package reminder

import (
	"context"
	"sync"
	"time"

	"avtomaster/internal/domain"

	"github.com/rs/zerolog"
)

type pendingTask struct {
	timer         *time.Timer
	fireAt        time.Time
	chatID        int64
	requireStatus string
}

// Scheduler keeps at most one pending reminder per booking. Scheduling
// again for the same booking replaces the previous task; cancelling a
// booking without a task is a no-op. Before sending, the booking's
// current status is re-read and the reminder is dropped silently when
// it no longer matches.
type Scheduler struct {
	repo     domain.Repository
	notifier domain.Notifier
	logger   *zerolog.Logger

	mu      sync.Mutex
	pending map[int64]*pendingTask
	stopped bool
}

func NewScheduler(repo domain.Repository, notifier domain.Notifier, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		pending:  make(map[int64]*pendingTask),
	}
}

// Schedule arms a reminder for bookingID at fireAt. A fireAt already in
// the past is dropped, not fired immediately. requireStatus is the
// status the booking must still hold at fire time.
func (s *Scheduler) Schedule(bookingID int64, fireAt time.Time, chatID int64, text, requireStatus string) {
	delay := time.Until(fireAt)
	if delay <= 0 {
		s.logger.Debug().Int64("booking_id", bookingID).Time("fire_at", fireAt).Msg("reminder in the past, skipped")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if prev, ok := s.pending[bookingID]; ok {
		prev.timer.Stop()
	}

	task := &pendingTask{
		fireAt:        fireAt,
		chatID:        chatID,
		requireStatus: requireStatus,
	}
	task.timer = time.AfterFunc(delay, func() {
		s.fire(bookingID, chatID, text, requireStatus)
	})
	s.pending[bookingID] = task

	s.logger.Debug().
		Int64("booking_id", bookingID).
		Int64("chat_id", chatID).
		Time("fire_at", fireAt).
		Msg("reminder scheduled")
}

// Cancel disarms the booking's reminder if one is pending.
func (s *Scheduler) Cancel(bookingID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.pending[bookingID]
	if !ok {
		return
	}
	task.timer.Stop()
	delete(s.pending, bookingID)
	s.logger.Debug().Int64("booking_id", bookingID).Msg("reminder cancelled")
}

// Stop disarms every pending reminder and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, task := range s.pending {
		task.timer.Stop()
		delete(s.pending, id)
	}
	s.logger.Info().Msg("reminder scheduler stopped")
}

// PendingCount reports how many reminders are armed. Exposed for the
// schedule API and tests.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire(bookingID, chatID int64, text, requireStatus string) {
	s.mu.Lock()
	delete(s.pending, bookingID)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("reminder: reload booking")
		return
	}
	if booking.Status != requireStatus {
		s.logger.Debug().
			Int64("booking_id", bookingID).
			Str("status", booking.Status).
			Str("required", requireStatus).
			Msg("reminder suppressed, status changed")
		return
	}

	if !s.notifier.Notify(chatID, text) {
		s.logger.Warn().Int64("booking_id", bookingID).Int64("chat_id", chatID).Msg("reminder delivery failed")
		return
	}
	s.logger.Info().Int64("booking_id", bookingID).Int64("chat_id", chatID).Msg("reminder sent")
}
