package service

import (
	"context"

	"avtomaster/internal/domain"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo     domain.Repository
	masterID int64
	logger   *zerolog.Logger
}

func NewUserService(repo domain.Repository, masterID int64, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		masterID: masterID,
		logger:   logger,
	}
}

// IsMaster reports whether the chat id belongs to the shop operator.
func (s *UserService) IsMaster(telegramID int64) bool {
	return telegramID == s.masterID
}

func (s *UserService) MasterID() int64 {
	return s.masterID
}

func (s *UserService) SaveUser(ctx context.Context, user *models.User) error {
	return s.repo.CreateOrUpdateUser(ctx, user)
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error {
	return s.repo.UpdateUserPhone(ctx, telegramID, phone)
}

func (s *UserService) UpdateUserActivity(ctx context.Context, telegramID int64) error {
	return s.repo.UpdateUserActivity(ctx, telegramID)
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

func (s *UserService) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, userID)
}
