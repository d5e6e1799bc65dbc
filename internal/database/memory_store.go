package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"gorm.io/gorm"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Every call, including each call made
// outside Transaction, runs as a serialised unit of work, so the row-lock
// guarantees of GormStore hold here too.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   uint
	bookings map[uint]models.Booking
	drivers  map[uint]models.Driver
	vehicles map[uint]models.Vehicle
	payments map[uint]models.Payment
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[uint]models.Booking),
		drivers:  make(map[uint]models.Driver),
		vehicles: make(map[uint]models.Vehicle),
		payments: make(map[uint]models.Payment),
		now:      time.Now,
	}
}

type memorySnapshot struct {
	nextID   uint
	bookings map[uint]models.Booking
	drivers  map[uint]models.Driver
	vehicles map[uint]models.Vehicle
	payments map[uint]models.Payment
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		nextID:   s.nextID,
		bookings: make(map[uint]models.Booking, len(s.bookings)),
		drivers:  make(map[uint]models.Driver, len(s.drivers)),
		vehicles: make(map[uint]models.Vehicle, len(s.vehicles)),
		payments: make(map[uint]models.Payment, len(s.payments)),
	}
	for id, b := range s.bookings {
		snap.bookings[id] = b.Clone()
	}
	for id, d := range s.drivers {
		snap.drivers[id] = d
	}
	for id, v := range s.vehicles {
		snap.vehicles[id] = v
	}
	for id, p := range s.payments {
		snap.payments[id] = p.Clone()
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.nextID = snap.nextID
	s.bookings = snap.bookings
	s.drivers = snap.drivers
	s.vehicles = snap.vehicles
	s.payments = snap.payments
}

// Transaction runs fn with exclusive access to the store and rolls every
// change back if fn returns an error or panics.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Repository) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(&memoryTx{s: s})
}

func (s *MemoryStore) run(ctx context.Context, fn func(tx *memoryTx) error) error {
	return s.Transaction(ctx, func(tx Repository) error {
		return fn(tx.(*memoryTx))
	})
}

func (s *MemoryStore) GetBooking(ctx context.Context, id uint) (booking *models.Booking, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		booking, err = tx.GetBooking(ctx, id)
		return err
	})
	return booking, err
}

func (s *MemoryStore) ListBookings(ctx context.Context, filter BookingFilter) (bookings []models.Booking, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		bookings, err = tx.ListBookings(ctx, filter)
		return err
	})
	return bookings, err
}

func (s *MemoryStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.CreateBooking(ctx, booking) })
}

func (s *MemoryStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.SaveBooking(ctx, booking) })
}

func (s *MemoryStore) DeleteBooking(ctx context.Context, id uint) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.DeleteBooking(ctx, id) })
}

func (s *MemoryStore) GetDriver(ctx context.Context, id uint) (driver *models.Driver, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		driver, err = tx.GetDriver(ctx, id)
		return err
	})
	return driver, err
}

func (s *MemoryStore) ListDrivers(ctx context.Context, filter DriverFilter) (drivers []models.Driver, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		drivers, err = tx.ListDrivers(ctx, filter)
		return err
	})
	return drivers, err
}

func (s *MemoryStore) CreateDriver(ctx context.Context, driver *models.Driver) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.CreateDriver(ctx, driver) })
}

func (s *MemoryStore) SaveDriver(ctx context.Context, driver *models.Driver) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.SaveDriver(ctx, driver) })
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id uint) (vehicle *models.Vehicle, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		vehicle, err = tx.GetVehicle(ctx, id)
		return err
	})
	return vehicle, err
}

func (s *MemoryStore) ListVehicles(ctx context.Context, filter VehicleFilter) (vehicles []models.Vehicle, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		vehicles, err = tx.ListVehicles(ctx, filter)
		return err
	})
	return vehicles, err
}

func (s *MemoryStore) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.CreateVehicle(ctx, vehicle) })
}

func (s *MemoryStore) SaveVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.SaveVehicle(ctx, vehicle) })
}

func (s *MemoryStore) GetPayment(ctx context.Context, id uint) (payment *models.Payment, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		payment, err = tx.GetPayment(ctx, id)
		return err
	})
	return payment, err
}

func (s *MemoryStore) GetPaymentByBooking(ctx context.Context, bookingID uint) (payment *models.Payment, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		payment, err = tx.GetPaymentByBooking(ctx, bookingID)
		return err
	})
	return payment, err
}

func (s *MemoryStore) ListPayments(ctx context.Context, filter PaymentFilter) (payments []models.Payment, err error) {
	err = s.run(ctx, func(tx *memoryTx) error {
		payments, err = tx.ListPayments(ctx, filter)
		return err
	})
	return payments, err
}

func (s *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.CreatePayment(ctx, payment) })
}

func (s *MemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.SavePayment(ctx, payment) })
}

// memoryTx operates on the store's maps; the caller holds s.mu.
type memoryTx struct {
	s *MemoryStore
}

func (tx *memoryTx) stamp(m *gorm.Model) {
	now := tx.s.now()
	if m.ID == 0 {
		tx.s.nextID++
		m.ID = tx.s.nextID
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func (tx *memoryTx) GetBooking(_ context.Context, id uint) (*models.Booking, error) {
	b, ok := tx.s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %d", models.ErrNotFound, id)
	}
	c := b.Clone()
	return &c, nil
}

func (tx *memoryTx) ListBookings(_ context.Context, filter BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range tx.s.bookings {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, b.Status) {
			continue
		}
		if filter.DriverID != nil && (b.DriverID == nil || *b.DriverID != *filter.DriverID) {
			continue
		}
		if filter.CustomerID != nil && b.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.From != nil && b.BookedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !b.BookedAt.Before(*filter.To) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) CreateBooking(_ context.Context, booking *models.Booking) error {
	if booking.ID != 0 {
		if _, exists := tx.s.bookings[booking.ID]; exists {
			return fmt.Errorf("%w: booking %d already exists", models.ErrInvalidState, booking.ID)
		}
	}
	tx.stamp(&booking.Model)
	tx.s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (tx *memoryTx) SaveBooking(_ context.Context, booking *models.Booking) error {
	if booking.HoldsDriver() {
		for id, other := range tx.s.bookings {
			if id != booking.ID && other.HoldsDriver() && *other.DriverID == *booking.DriverID {
				return fmt.Errorf("%w: driver %d already holds booking %d",
					models.ErrInvalidState, *booking.DriverID, id)
			}
		}
	}
	tx.stamp(&booking.Model)
	tx.s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (tx *memoryTx) DeleteBooking(_ context.Context, id uint) error {
	if _, ok := tx.s.bookings[id]; !ok {
		return fmt.Errorf("%w: booking %d", models.ErrNotFound, id)
	}
	delete(tx.s.bookings, id)
	return nil
}

func (tx *memoryTx) GetDriver(_ context.Context, id uint) (*models.Driver, error) {
	d, ok := tx.s.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: driver %d", models.ErrNotFound, id)
	}
	return &d, nil
}

func (tx *memoryTx) ListDrivers(_ context.Context, filter DriverFilter) ([]models.Driver, error) {
	var out []models.Driver
	for _, d := range tx.s.drivers {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, d.Status) {
			continue
		}
		if filter.UserID != nil && d.UserID != *filter.UserID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) CreateDriver(_ context.Context, driver *models.Driver) error {
	for _, d := range tx.s.drivers {
		if d.LicenseNumber == driver.LicenseNumber {
			return fmt.Errorf("%w: license %q already registered", models.ErrInvalidState, driver.LicenseNumber)
		}
	}
	tx.stamp(&driver.Model)
	tx.s.drivers[driver.ID] = *driver
	return nil
}

func (tx *memoryTx) SaveDriver(_ context.Context, driver *models.Driver) error {
	tx.stamp(&driver.Model)
	tx.s.drivers[driver.ID] = *driver
	return nil
}

func (tx *memoryTx) GetVehicle(_ context.Context, id uint) (*models.Vehicle, error) {
	v, ok := tx.s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
	}
	return &v, nil
}

func (tx *memoryTx) ListVehicles(_ context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	var out []models.Vehicle
	for _, v := range tx.s.vehicles {
		if filter.DriverID != nil && v.DriverID != *filter.DriverID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, v.Status) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) CreateVehicle(_ context.Context, vehicle *models.Vehicle) error {
	if _, ok := tx.s.drivers[vehicle.DriverID]; !ok {
		return fmt.Errorf("%w: driver %d", models.ErrNotFound, vehicle.DriverID)
	}
	tx.stamp(&vehicle.Model)
	vehicle.Driver = nil
	tx.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (tx *memoryTx) SaveVehicle(_ context.Context, vehicle *models.Vehicle) error {
	tx.stamp(&vehicle.Model)
	vehicle.Driver = nil
	tx.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (tx *memoryTx) GetPayment(_ context.Context, id uint) (*models.Payment, error) {
	p, ok := tx.s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", models.ErrNotFound, id)
	}
	c := p.Clone()
	return &c, nil
}

func (tx *memoryTx) GetPaymentByBooking(_ context.Context, bookingID uint) (*models.Payment, error) {
	for _, p := range tx.s.payments {
		if p.BookingID == bookingID {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: payment for booking %d", models.ErrNotFound, bookingID)
}

func (tx *memoryTx) ListPayments(_ context.Context, filter PaymentFilter) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range tx.s.payments {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, p.Status) {
			continue
		}
		if filter.Method != "" && p.Method != filter.Method {
			continue
		}
		if filter.From != nil && (p.PaidAt == nil || p.PaidAt.Before(*filter.From)) {
			continue
		}
		if filter.To != nil && (p.PaidAt == nil || !p.PaidAt.Before(*filter.To)) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) CreatePayment(_ context.Context, payment *models.Payment) error {
	for _, p := range tx.s.payments {
		if p.BookingID == payment.BookingID {
			return fmt.Errorf("%w: booking %d already has a payment", models.ErrInvalidState, payment.BookingID)
		}
	}
	tx.stamp(&payment.Model)
	tx.s.payments[payment.ID] = payment.Clone()
	return nil
}

func (tx *memoryTx) SavePayment(_ context.Context, payment *models.Payment) error {
	tx.stamp(&payment.Model)
	tx.s.payments[payment.ID] = payment.Clone()
	return nil
}
