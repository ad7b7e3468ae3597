package repository

import (
	"context"
	"sync/atomic"
	"time"

	"avtomaster/internal/domain"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
)

const recoveryProbeInterval = time.Minute

// FailoverStateRepository routes dialog state through Redis while it is
// healthy and degrades to the in-memory store when it is not. Once a
// minute a call probes the primary again.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	down      atomic.Bool
	lastProbe atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether this call should go to the primary store:
// either it is healthy, or the recovery probe interval has elapsed.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.down.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastProbe.Load())) > recoveryProbeInterval
}

func (r *FailoverStateRepository) markDown(err error) {
	if !r.down.Swap(true) {
		r.logger.Error().Err(err).Msg("primary state store failed, degrading to memory")
	}
	r.lastProbe.Store(time.Now().UnixNano())
}

func (r *FailoverStateRepository) markUp() {
	if r.down.Swap(false) {
		r.logger.Info().Msg("primary state store recovered")
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, userID)
		if err == nil {
			r.markUp()
			return state, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetState(ctx, userID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	if r.usePrimary() {
		err := r.primary.ClearState(ctx, userID)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearState(ctx, userID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
