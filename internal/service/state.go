package service

import (
	"context"
	"time"

	"avtomaster/internal/domain"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
)

// StateService keeps track of where each chat participant is in the
// booking dialog and carries the typed draft between steps.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger
}

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

func (s *StateService) GetUserState(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := s.stateRepo.GetState(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get user state")
		return nil, err
	}
	return state, nil
}

func (s *StateService) SetUserState(ctx context.Context, userID int64, step string, draft *models.BookingDraft) error {
	state := &models.UserState{
		UserID: userID,
		Step:   step,
		Draft:  draft,
	}
	return s.stateRepo.SetState(ctx, state)
}

func (s *StateService) ClearUserState(ctx context.Context, userID int64) error {
	return s.stateRepo.ClearState(ctx, userID)
}

func (s *StateService) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	return s.stateRepo.CheckRateLimit(ctx, userID, limit, window)
}
