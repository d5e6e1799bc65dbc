package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*GormStore)(nil)

// GormStore implements Store on top of gorm. Reads issued through the
// transaction repository take SELECT ... FOR UPDATE row locks.
type GormStore struct {
	db     *gorm.DB
	locked bool
}

// NewGormStore wraps an opened gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Transaction runs fn inside a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, locked: true})
	})
}

func (s *GormStore) query(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.locked {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func notFound(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", models.ErrNotFound, kind, id)
	}
	return err
}

// conflict reports a unique constraint violation as models.ErrInvalidState.
func conflict(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", models.ErrInvalidState, fmt.Sprintf(format, args...))
	}
	return err
}

func filterBookings(q *gorm.DB, filter BookingFilter) *gorm.DB {
	q = q.Order("id")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.DriverID != nil {
		q = q.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.From != nil {
		q = q.Where("booked_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("booked_at < ?", *filter.To)
	}
	return q
}

func filterPayments(q *gorm.DB, filter PaymentFilter) *gorm.DB {
	q = q.Order("id")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		q = q.Where("paid_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("paid_at < ?", *filter.To)
	}
	return q
}

func (s *GormStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.query(ctx).First(&booking, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &booking, nil
}

func (s *GormStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := filterBookings(s.db.WithContext(ctx), filter).Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *GormStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return s.db.WithContext(ctx).Create(booking).Error
}

func (s *GormStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.db.WithContext(ctx).Save(booking).Error; err != nil {
		if booking.DriverID == nil {
			return err
		}
		return conflict(err, "driver %d already holds an active booking", *booking.DriverID)
	}
	return nil
}

func (s *GormStore) DeleteBooking(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Booking{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %d", models.ErrNotFound, id)
	}
	return nil
}

func (s *GormStore) GetDriver(ctx context.Context, id uint) (*models.Driver, error) {
	var driver models.Driver
	if err := s.query(ctx).First(&driver, id).Error; err != nil {
		return nil, notFound(err, "driver", id)
	}
	return &driver, nil
}

func (s *GormStore) ListDrivers(ctx context.Context, filter DriverFilter) ([]models.Driver, error) {
	q := s.db.WithContext(ctx).Order("id")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}

	var drivers []models.Driver
	if err := q.Find(&drivers).Error; err != nil {
		return nil, err
	}
	return drivers, nil
}

func (s *GormStore) CreateDriver(ctx context.Context, driver *models.Driver) error {
	if err := s.db.WithContext(ctx).Create(driver).Error; err != nil {
		return conflict(err, "license %q already registered", driver.LicenseNumber)
	}
	return nil
}

func (s *GormStore) SaveDriver(ctx context.Context, driver *models.Driver) error {
	return s.db.WithContext(ctx).Save(driver).Error
}

func (s *GormStore) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := s.query(ctx).First(&vehicle, id).Error; err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return &vehicle, nil
}

func (s *GormStore) ListVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	q := s.db.WithContext(ctx).Order("id")
	if filter.DriverID != nil {
		q = q.Where("driver_id = ?", *filter.DriverID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}

	var vehicles []models.Vehicle
	if err := q.Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (s *GormStore) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return s.db.WithContext(ctx).Create(vehicle).Error
}

func (s *GormStore) SaveVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return s.db.WithContext(ctx).Save(vehicle).Error
}

func (s *GormStore) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.query(ctx).First(&payment, id).Error; err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

func (s *GormStore) GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.query(ctx).Where("booking_id = ?", bookingID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment for booking %d", models.ErrNotFound, bookingID)
		}
		return nil, err
	}
	return &payment, nil
}

func (s *GormStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	var payments []models.Payment
	if err := filterPayments(s.db.WithContext(ctx), filter).Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return conflict(err, "booking %d already has a payment", payment.BookingID)
	}
	return nil
}

func (s *GormStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Save(payment).Error
}
