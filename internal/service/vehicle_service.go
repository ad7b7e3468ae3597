package service

import (
	"context"
	"errors"
	"time"

	"avtomaster/internal/database"
	"avtomaster/internal/domain"
	"avtomaster/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidVIN  = errors.New("vin must be 17 alphanumeric characters")
	ErrInvalidYear = errors.New("model year is out of range")
)

type VehicleService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewVehicleService(repo domain.Repository, logger *zerolog.Logger) *VehicleService {
	return &VehicleService{
		repo:   repo,
		logger: logger,
	}
}

// RegisterVehicle validates and stores a new vehicle for the owner.
func (s *VehicleService) RegisterVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	// VIN не обязателен, но если указан, то должен быть корректным
	vehicle.VIN = models.NormalizeVIN(vehicle.VIN)
	if vehicle.VIN != "" && !models.ValidVIN(vehicle.VIN) {
		return ErrInvalidVIN
	}
	if vehicle.Year < 1950 || vehicle.Year > time.Now().Year()+1 {
		return ErrInvalidYear
	}
	return s.repo.CreateVehicle(ctx, vehicle)
}

func (s *VehicleService) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	return s.repo.GetVehicle(ctx, id)
}

func (s *VehicleService) GetUserVehicles(ctx context.Context, userID int64) ([]*models.Vehicle, error) {
	return s.repo.GetUserVehicles(ctx, userID)
}

// DeleteVehicle removes the caller's vehicle. Vehicles referenced by an
// active booking are protected by the store; ownership is checked here.
func (s *VehicleService) DeleteVehicle(ctx context.Context, vehicleID, ownerUserID int64) error {
	vehicle, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicle.UserID != ownerUserID {
		return ErrUnauthorized
	}
	if err := s.repo.DeleteVehicle(ctx, vehicleID); err != nil {
		if errors.Is(err, database.ErrVehicleHasBookings) {
			s.logger.Warn().Int64("vehicle_id", vehicleID).Msg("vehicle delete blocked by active bookings")
		}
		return err
	}
	return nil
}
