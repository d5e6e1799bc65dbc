package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
)

// bookingTransitions lists the legal status moves.
var bookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:    {models.BookingStatusAssigned, models.BookingStatusCancelled},
	models.BookingStatusAssigned:   {models.BookingStatusInProgress, models.BookingStatusCancelled},
	models.BookingStatusInProgress: {models.BookingStatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(b *models.Booking, to models.BookingStatus) error {
	return fmt.Errorf("%w: booking %d cannot move from %s to %s", models.ErrInvalidState, b.ID, b.Status, to)
}

// CreateBookingInput is a customer's trip request.
type CreateBookingInput struct {
	CustomerID      uint
	PickupLocation  string
	DropoffLocation string
	ServiceCategory models.ServiceCategory
	// EstimatedFare skips the fare formula when set.
	EstimatedFare *float64
}

// BookingService owns the booking state machine.
type BookingService struct {
	core
	fares *FareCalculator
}

// NewBookingService creates the lifecycle manager.
func NewBookingService(store database.Store, fares *FareCalculator, opts ...Option) *BookingService {
	return &BookingService{core: newCore(store, opts), fares: fares}
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, id uint) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// EstimateFare prices a prospective trip without creating anything.
func (s *BookingService) EstimateFare(ctx context.Context, pickup, dropoff string, category models.ServiceCategory) (FareQuote, error) {
	if category == "" {
		category = models.ServiceRide
	}
	if !category.Valid() {
		return FareQuote{}, fmt.Errorf("%w: unknown service category %q", models.ErrValidation, category)
	}
	return s.fares.Estimate(ctx, pickup, dropoff, category)
}

// Create records a new Pending booking.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	pickup := strings.TrimSpace(in.PickupLocation)
	dropoff := strings.TrimSpace(in.DropoffLocation)
	if pickup == "" || dropoff == "" {
		return nil, fmt.Errorf("%w: pickup and dropoff locations are required", models.ErrValidation)
	}
	if in.CustomerID == 0 {
		return nil, fmt.Errorf("%w: customer is required", models.ErrValidation)
	}
	category := in.ServiceCategory
	if category == "" {
		category = models.ServiceRide
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown service category %q", models.ErrValidation, category)
	}

	var estimated float64
	if in.EstimatedFare != nil {
		estimated = *in.EstimatedFare
		if estimated < 0 || math.IsNaN(estimated) || math.IsInf(estimated, 0) {
			return nil, fmt.Errorf("%w: estimated fare must be non-negative", models.ErrValidation)
		}
	} else {
		quote, err := s.fares.Estimate(ctx, pickup, dropoff, category)
		if err != nil {
			return nil, err
		}
		estimated = quote.Total
	}

	booking := &models.Booking{
		CustomerID:      in.CustomerID,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		BookedAt:        s.now(),
		Status:          models.BookingStatusPending,
		ServiceCategory: category,
		EstimatedFare:   estimated,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.log.Info("booking created", "action", "create_booking", "booking_id", booking.ID,
		"customer_id", booking.CustomerID, "estimated_fare", booking.EstimatedFare)
	s.publishBooking(ctx, EventBookingCreated, booking)
	return booking, nil
}

// AssignDriverAndVehicle binds a Pending booking to an Available driver and
// one of that driver's Active vehicles. The booking, driver and vehicle are
// checked and written in one transaction with the rows locked in that order,
// so two concurrent assignments can never both take the same driver.
func (s *BookingService) AssignDriverAndVehicle(ctx context.Context, bookingID, driverID, vehicleID uint) (*models.Booking, error) {
	var (
		booking *models.Booking
		driver  *models.Driver
	)
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusPending {
			return transitionError(booking, models.BookingStatusAssigned)
		}

		driver, err = tx.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if driver.Status != models.DriverStatusAvailable {
			return fmt.Errorf("%w: driver %d is %s", models.ErrInvalidState, driver.ID, driver.Status)
		}

		vehicle, err := tx.GetVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if vehicle.Status != models.VehicleStatusActive {
			return fmt.Errorf("%w: vehicle %d is %s", models.ErrInvalidState, vehicle.ID, vehicle.Status)
		}
		if vehicle.DriverID != driver.ID {
			return fmt.Errorf("%w: vehicle %d does not belong to driver %d", models.ErrInvalidState, vehicle.ID, driver.ID)
		}

		booking.DriverID = &driver.ID
		booking.VehicleID = &vehicle.ID
		booking.Status = models.BookingStatusAssigned
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}

		driver.Status = models.DriverStatusBusy
		return tx.SaveDriver(ctx, driver)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking assigned", "action", "assign_booking", "booking_id", booking.ID,
		"driver_id", driverID, "vehicle_id", vehicleID)
	s.publishBooking(ctx, EventBookingAssigned, booking)
	s.driverChanged(ctx, driver)
	return booking, nil
}

// StartRide moves an Assigned booking to InProgress.
func (s *BookingService) StartRide(ctx context.Context, bookingID uint) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(booking.Status, models.BookingStatusInProgress) {
			return transitionError(booking, models.BookingStatusInProgress)
		}

		booking.Status = models.BookingStatusInProgress
		if booking.PickupAt == nil {
			now := s.now()
			booking.PickupAt = &now
		}
		return tx.SaveBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ride started", "action", "start_ride", "booking_id", booking.ID)
	s.publishBooking(ctx, EventBookingStarted, booking)
	return booking, nil
}

// CompleteRide fixes the fare, releases the driver and counts the ride, atomically.
func (s *BookingService) CompleteRide(ctx context.Context, bookingID uint, actualFare float64) (*models.Booking, error) {
	if actualFare <= 0 || math.IsNaN(actualFare) || math.IsInf(actualFare, 0) {
		return nil, fmt.Errorf("%w: actual fare must be positive, got %v", models.ErrValidation, actualFare)
	}
	// Payments settle in whole cents and must equal the fare exactly.
	if utils.RoundMoney(actualFare) != actualFare {
		return nil, fmt.Errorf("%w: actual fare must be in whole cents, got %v", models.ErrValidation, actualFare)
	}

	var (
		booking *models.Booking
		driver  *models.Driver
	)
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(booking.Status, models.BookingStatusCompleted) {
			return transitionError(booking, models.BookingStatusCompleted)
		}

		now := s.now()
		fare := actualFare
		booking.Status = models.BookingStatusCompleted
		booking.CompletedAt = &now
		booking.ActualFare = &fare
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}

		if booking.DriverID == nil {
			return fmt.Errorf("%w: booking %d has no driver", models.ErrInvalidState, booking.ID)
		}
		driver, err = tx.GetDriver(ctx, *booking.DriverID)
		if err != nil {
			return err
		}
		driver.Status = models.DriverStatusAvailable
		driver.TotalRides++
		return tx.SaveDriver(ctx, driver)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ride completed", "action", "complete_ride", "booking_id", booking.ID,
		"driver_id", driver.ID, "actual_fare", actualFare)
	s.publishBooking(ctx, EventBookingCompleted, booking)
	s.driverChanged(ctx, driver)
	return booking, nil
}

// Cancel moves a Pending or Assigned booking to Cancelled, releasing an
// assigned driver.
func (s *BookingService) Cancel(ctx context.Context, bookingID uint) (*models.Booking, error) {
	var (
		booking  *models.Booking
		released *models.Driver
	)
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(booking.Status, models.BookingStatusCancelled) {
			return transitionError(booking, models.BookingStatusCancelled)
		}

		released, err = releaseDriver(ctx, tx, booking)
		if err != nil {
			return err
		}
		booking.Status = models.BookingStatusCancelled
		return tx.SaveBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", "action", "cancel_booking", "booking_id", booking.ID)
	s.publishBooking(ctx, EventBookingCancelled, booking)
	if released != nil {
		s.driverChanged(ctx, released)
	}
	return booking, nil
}

// Delete removes a booking that has not started. Deleting an Assigned booking
// releases its driver in the same transaction.
func (s *BookingService) Delete(ctx context.Context, bookingID uint) error {
	var (
		booking  *models.Booking
		released *models.Driver
	)
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch booking.Status {
		case models.BookingStatusInProgress, models.BookingStatusCompleted:
			return fmt.Errorf("%w: booking %d is %s and cannot be deleted", models.ErrInvalidState, booking.ID, booking.Status)
		}

		released, err = releaseDriver(ctx, tx, booking)
		if err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, booking.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("booking deleted", "action", "delete_booking", "booking_id", booking.ID)
	s.publishBooking(ctx, EventBookingDeleted, booking)
	if released != nil {
		s.driverChanged(ctx, released)
	}
	return nil
}

// releaseDriver frees the driver held by an Assigned booking. It returns the
// updated driver, or nil when nothing was released.
func releaseDriver(ctx context.Context, tx database.Repository, booking *models.Booking) (*models.Driver, error) {
	if booking.Status != models.BookingStatusAssigned || booking.DriverID == nil {
		return nil, nil
	}
	driver, err := tx.GetDriver(ctx, *booking.DriverID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if driver.Status != models.DriverStatusBusy {
		return nil, nil
	}
	driver.Status = models.DriverStatusAvailable
	if err := tx.SaveDriver(ctx, driver); err != nil {
		return nil, err
	}
	return driver, nil
}
