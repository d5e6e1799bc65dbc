package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// DriverService registers drivers and vehicles and toggles their availability.
type DriverService struct {
	core
}

func NewDriverService(store database.Store, opts ...Option) *DriverService {
	return &DriverService{core: newCore(store, opts)}
}

// RegisterDriverInput describes a new driver.
type RegisterDriverInput struct {
	UserID        uint
	LicenseNumber string
	Rating        float64
}

// RegisterDriver creates an Available driver.
func (s *DriverService) RegisterDriver(ctx context.Context, in RegisterDriverInput) (*models.Driver, error) {
	license := strings.TrimSpace(in.LicenseNumber)
	if license == "" {
		return nil, fmt.Errorf("%w: license number is required", models.ErrValidation)
	}
	if in.Rating < 0 || in.Rating > 5 || math.IsNaN(in.Rating) {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5, got %v", models.ErrValidation, in.Rating)
	}

	driver := &models.Driver{
		UserID:        in.UserID,
		LicenseNumber: license,
		Rating:        in.Rating,
		Status:        models.DriverStatusAvailable,
	}
	if err := s.store.CreateDriver(ctx, driver); err != nil {
		return nil, err
	}

	s.log.Info("driver registered", "action", "register_driver", "driver_id", driver.ID)
	s.driverChanged(ctx, driver)
	return driver, nil
}

// GetDriver returns a driver by id.
func (s *DriverService) GetDriver(ctx context.Context, id uint) (*models.Driver, error) {
	return s.store.GetDriver(ctx, id)
}

// GetDriverByUser returns the driver profile owned by a user account.
func (s *DriverService) GetDriverByUser(ctx context.Context, userID uint) (*models.Driver, error) {
	drivers, err := s.store.ListDrivers(ctx, database.DriverFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up driver for user %d: %w", userID, err)
	}
	if len(drivers) == 0 {
		return nil, fmt.Errorf("%w: driver for user %d", models.ErrNotFound, userID)
	}
	return &drivers[0], nil
}

// RegisterVehicle attaches a new Active vehicle to a driver.
func (s *DriverService) RegisterVehicle(ctx context.Context, driverID uint, category models.VehicleCategory, plate string) (*models.Vehicle, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle category %q", models.ErrValidation, category)
	}

	var vehicle *models.Vehicle
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		if _, err := tx.GetDriver(ctx, driverID); err != nil {
			return err
		}
		vehicle = &models.Vehicle{
			DriverID:    driverID,
			Category:    category,
			PlateNumber: strings.TrimSpace(plate),
			Status:      models.VehicleStatusActive,
		}
		return tx.CreateVehicle(ctx, vehicle)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("vehicle registered", "action", "register_vehicle", "driver_id", driverID, "vehicle_id", vehicle.ID)
	return vehicle, nil
}

// SetAvailability moves a driver between Available and Offline. Busy drivers
// are owned by their booking and cannot be toggled.
func (s *DriverService) SetAvailability(ctx context.Context, driverID uint, online bool) (*models.Driver, error) {
	var (
		driver  *models.Driver
		changed bool
	)
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		driver, err = tx.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if driver.Status == models.DriverStatusBusy {
			return fmt.Errorf("%w: driver %d is busy with a booking", models.ErrInvalidState, driver.ID)
		}

		want := models.DriverStatusOffline
		if online {
			want = models.DriverStatusAvailable
		}
		if driver.Status == want {
			return nil
		}
		driver.Status = want
		changed = true
		return tx.SaveDriver(ctx, driver)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info("driver availability changed", "action", "set_availability", "driver_id", driver.ID, "status", driver.Status)
		s.driverChanged(ctx, driver)
	}
	return driver, nil
}

// SetVehicleStatus changes whether a vehicle can be dispatched.
func (s *DriverService) SetVehicleStatus(ctx context.Context, vehicleID uint, status models.VehicleStatus) (*models.Vehicle, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle status %q", models.ErrValidation, status)
	}

	var vehicle *models.Vehicle
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		vehicle, err = tx.GetVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		vehicle.Status = status
		return tx.SaveVehicle(ctx, vehicle)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("vehicle status changed", "action", "set_vehicle_status", "vehicle_id", vehicle.ID, "status", status)
	return vehicle, nil
}
