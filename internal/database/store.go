package database

import (
	"context"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// BookingFilter narrows ListBookings. Zero values mean "no constraint".
type BookingFilter struct {
	Statuses   []models.BookingStatus
	DriverID   *uint
	CustomerID *uint
	From       *time.Time // BookedAt >= From
	To         *time.Time // BookedAt < To
}

// DriverFilter narrows ListDrivers.
type DriverFilter struct {
	Statuses []models.DriverStatus
	UserID   *uint
}

// VehicleFilter narrows ListVehicles.
type VehicleFilter struct {
	DriverID *uint
	Statuses []models.VehicleStatus
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	Statuses []models.PaymentStatus
	Method   models.PaymentMethod
	From     *time.Time // PaidAt >= From
	To       *time.Time // PaidAt < To
}

// Repository is the record-level access the dispatch core needs. Get* return
// models.ErrNotFound (wrapped) when the id does not exist. Lists are ordered by id.
type Repository interface {
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	SaveBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id uint) error

	GetDriver(ctx context.Context, id uint) (*models.Driver, error)
	ListDrivers(ctx context.Context, filter DriverFilter) ([]models.Driver, error)
	CreateDriver(ctx context.Context, driver *models.Driver) error
	SaveDriver(ctx context.Context, driver *models.Driver) error

	GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	SaveVehicle(ctx context.Context, vehicle *models.Vehicle) error

	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
}

// Store is a Repository that can also run a unit of work atomically.
//
// Inside Transaction, reads lock the rows they return until fn finishes, so a
// check-then-write sequence over several records cannot interleave with another
// transaction touching the same records. If fn returns an error nothing it wrote
// is kept.
type Store interface {
	Repository
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
