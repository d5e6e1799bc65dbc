package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// recordingPublisher keeps every event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingCache keeps the last availability written per driver.
type recordingCache struct {
	mu    sync.Mutex
	state map[uint]bool
}

func (c *recordingCache) SetDriverAvailability(_ context.Context, id uint, available bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		c.state = make(map[uint]bool)
	}
	c.state[id] = available
	return nil
}

func (c *recordingCache) GetDriverAvailability(_ context.Context, id uint) (bool, bool, error) {
	available, ok := c.get(id)
	return available, ok, nil
}

func (c *recordingCache) get(id uint) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.state[id]
	return v, ok
}

type fixture struct {
	store      *database.MemoryStore
	events     *recordingPublisher
	cache      *recordingCache
	fares      *FareCalculator
	bookings   *BookingService
	assignment *AssignmentService
	drivers    *DriverService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  database.NewMemoryStore(),
		events: &recordingPublisher{},
		cache:  &recordingCache{},
		fares:  NewFareCalculator(FixedDistance(10)),
	}
	opts := []Option{
		WithEvents(f.events),
		WithAvailabilityCache(f.cache),
		WithClock(func() time.Time { return testNow }),
	}
	f.bookings = NewBookingService(f.store, f.fares, opts...)
	f.assignment = NewAssignmentService(f.store, f.bookings, opts...)
	f.drivers = NewDriverService(f.store, opts...)
	return f
}

func (f *fixture) payments(gateway PaymentGateway, opts ...PaymentOption) *PaymentService {
	opts = append([]PaymentOption{WithServiceOptions(
		WithEvents(f.events),
		WithClock(func() time.Time { return testNow }),
	)}, opts...)
	return NewPaymentService(f.store, gateway, opts...)
}

var licenseSeq int

func (f *fixture) driver(t *testing.T, rating float64, rides int, status models.DriverStatus) *models.Driver {
	t.Helper()
	licenseSeq++
	d := &models.Driver{
		UserID:        uint(100 + licenseSeq),
		LicenseNumber: fmt.Sprintf("LIC-%04d", licenseSeq),
		Rating:        rating,
		TotalRides:    rides,
		Status:        status,
	}
	require.NoError(t, f.store.CreateDriver(context.Background(), d))
	return d
}

func (f *fixture) vehicle(t *testing.T, driverID uint, category models.VehicleCategory, status models.VehicleStatus) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{DriverID: driverID, Category: category, Status: status}
	require.NoError(t, f.store.CreateVehicle(context.Background(), v))
	return v
}

func (f *fixture) pending(t *testing.T, category models.ServiceCategory) *models.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), CreateBookingInput{
		CustomerID:      7,
		PickupLocation:  "Westlands",
		DropoffLocation: "Upper Hill",
		ServiceCategory: category,
	})
	require.NoError(t, err)
	return b
}

// assigned returns a booking Assigned to a fresh driver and sedan.
func (f *fixture) assigned(t *testing.T) (*models.Booking, *models.Driver) {
	t.Helper()
	d := f.driver(t, 4.5, 40, models.DriverStatusAvailable)
	v := f.vehicle(t, d.ID, models.VehicleSedan, models.VehicleStatusActive)
	b := f.pending(t, models.ServiceRide)
	b, err := f.bookings.AssignDriverAndVehicle(context.Background(), b.ID, d.ID, v.ID)
	require.NoError(t, err)
	return b, d
}

func (f *fixture) inProgress(t *testing.T) (*models.Booking, *models.Driver) {
	t.Helper()
	b, d := f.assigned(t)
	b, err := f.bookings.StartRide(context.Background(), b.ID)
	require.NoError(t, err)
	return b, d
}

func (f *fixture) completed(t *testing.T, fare float64) *models.Booking {
	t.Helper()
	b, _ := f.inProgress(t)
	b, err := f.bookings.CompleteRide(context.Background(), b.ID, fare)
	require.NoError(t, err)
	return b
}

func (f *fixture) reloadDriver(t *testing.T, id uint) *models.Driver {
	t.Helper()
	d, err := f.store.GetDriver(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (f *fixture) reloadBooking(t *testing.T, id uint) *models.Booking {
	t.Helper()
	b, err := f.store.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return b
}
