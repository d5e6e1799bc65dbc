package services

import (
	"context"
	"sync"
	"testing"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreDriver(t *testing.T) {
	tests := []struct {
		name   string
		driver models.Driver
		want   DriverScore
	}{
		{
			name:   "veteran",
			driver: models.Driver{Rating: 5, TotalRides: 300},
			want:   DriverScore{Rating: 50, Experience: 30, Availability: 20, Total: 100},
		},
		{
			name:   "newcomer",
			driver: models.Driver{Rating: 3, TotalRides: 10},
			want:   DriverScore{Rating: 30, Experience: 1, Availability: 10, Total: 41},
		},
		{
			name:   "no rides",
			driver: models.Driver{Rating: 0, TotalRides: 0},
			want:   DriverScore{Rating: 0, Experience: 0, Availability: 20, Total: 20},
		},
		{
			name:   "experience truncates",
			driver: models.Driver{Rating: 4, TotalRides: 19},
			want:   DriverScore{Rating: 40, Experience: 1, Availability: 1, Total: 42},
		},
		{
			name:   "experience capped",
			driver: models.Driver{Rating: 4, TotalRides: 1000},
			want:   DriverScore{Rating: 40, Experience: 30, Availability: 20, Total: 90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreDriver(tt.driver))
		})
	}
}

func TestFindBestAvailableDriver_PicksHighestScore(t *testing.T) {
	f := newFixture(t)
	b := f.driver(t, 3, 10, models.DriverStatusAvailable)
	f.vehicle(t, b.ID, models.VehicleSedan, models.VehicleStatusActive)
	a := f.driver(t, 5, 300, models.DriverStatusAvailable)
	f.vehicle(t, a.ID, models.VehicleSedan, models.VehicleStatusActive)

	best, ok, err := f.assignment.FindBestAvailableDriver(context.Background(), "Westlands")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ID, best.Driver.ID)
	assert.Equal(t, 100.0, best.Score.Total)
}

func TestFindBestAvailableDriver_TieGoesToLowestID(t *testing.T) {
	f := newFixture(t)
	first := f.driver(t, 4, 20, models.DriverStatusAvailable)
	second := f.driver(t, 4, 20, models.DriverStatusAvailable)
	f.vehicle(t, second.ID, models.VehicleSedan, models.VehicleStatusActive)
	f.vehicle(t, first.ID, models.VehicleSedan, models.VehicleStatusActive)

	best, ok, err := f.assignment.FindBestAvailableDriver(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, best.Driver.ID)
}

func TestFindBestAvailableDriver_Eligibility(t *testing.T) {
	f := newFixture(t)

	// Each of these would outscore the eligible driver.
	noVehicle := f.driver(t, 5, 300, models.DriverStatusAvailable)
	inactive := f.driver(t, 5, 300, models.DriverStatusAvailable)
	f.vehicle(t, inactive.ID, models.VehicleSedan, models.VehicleStatusMaintenance)
	busy := f.driver(t, 5, 300, models.DriverStatusBusy)
	f.vehicle(t, busy.ID, models.VehicleSedan, models.VehicleStatusActive)
	offline := f.driver(t, 5, 300, models.DriverStatusOffline)
	f.vehicle(t, offline.ID, models.VehicleSedan, models.VehicleStatusActive)

	eligible := f.driver(t, 2, 5, models.DriverStatusAvailable)
	f.vehicle(t, eligible.ID, models.VehicleVan, models.VehicleStatusActive)

	best, ok, err := f.assignment.FindBestAvailableDriver(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, eligible.ID, best.Driver.ID)
	assert.NotEqual(t, noVehicle.ID, best.Driver.ID)
}

func TestFindBestAvailableDriver_NoneAvailable(t *testing.T) {
	f := newFixture(t)
	f.driver(t, 5, 300, models.DriverStatusAvailable)

	best, ok, err := f.assignment.FindBestAvailableDriver(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, best)
}

func TestPreferredVehicle(t *testing.T) {
	sedan := models.Vehicle{Category: models.VehicleSedan}
	sedan.ID = 1
	van := models.Vehicle{Category: models.VehicleVan}
	van.ID = 2
	luxury := models.Vehicle{Category: models.VehicleLuxury}
	luxury.ID = 3
	suv := models.Vehicle{Category: models.VehicleSUV}
	suv.ID = 4

	tests := []struct {
		name     string
		vehicles []models.Vehicle
		category models.ServiceCategory
		want     uint
	}{
		{"corporate prefers luxury", []models.Vehicle{sedan, van, luxury}, models.ServiceCorporate, 3},
		{"corporate falls back to sedan", []models.Vehicle{van, sedan}, models.ServiceCorporate, 1},
		{"corporate falls back to first", []models.Vehicle{suv, van}, models.ServiceCorporate, 4},
		{"parcel prefers van", []models.Vehicle{sedan, luxury, van}, models.ServiceParcel, 2},
		{"parcel falls back to first", []models.Vehicle{luxury, sedan}, models.ServiceParcel, 3},
		{"ride prefers sedan", []models.Vehicle{van, sedan}, models.ServiceRide, 1},
		{"ride falls back to first", []models.Vehicle{suv}, models.ServiceRide, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := preferredVehicle(tt.vehicles, tt.category)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.ID)
		})
	}

	_, ok := preferredVehicle(nil, models.ServiceRide)
	assert.False(t, ok)
}

func TestAssignVehicleToBooking(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, 4, 0, models.DriverStatusAvailable)
	f.vehicle(t, d.ID, models.VehicleSedan, models.VehicleStatusActive)
	f.vehicle(t, d.ID, models.VehicleLuxury, models.VehicleStatusMaintenance)
	van := f.vehicle(t, d.ID, models.VehicleVan, models.VehicleStatusActive)

	v, ok, err := f.assignment.AssignVehicleToBooking(context.Background(), d.ID, models.ServiceParcel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, van.ID, v.ID)

	// The luxury car is in maintenance, so corporate gets the sedan.
	v, ok, err = f.assignment.AssignVehicleToBooking(context.Background(), d.ID, models.ServiceCorporate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.VehicleSedan, v.Category)

	other := f.driver(t, 4, 0, models.DriverStatusAvailable)
	_, ok, err = f.assignment.AssignVehicleToBooking(context.Background(), other.ID, models.ServiceRide)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignDriverToBooking(t *testing.T) {
	f := newFixture(t)
	weak := f.driver(t, 3, 10, models.DriverStatusAvailable)
	f.vehicle(t, weak.ID, models.VehicleSedan, models.VehicleStatusActive)
	strong := f.driver(t, 5, 300, models.DriverStatusAvailable)
	f.vehicle(t, strong.ID, models.VehicleSedan, models.VehicleStatusActive)
	lux := f.vehicle(t, strong.ID, models.VehicleLuxury, models.VehicleStatusActive)
	b := f.pending(t, models.ServiceCorporate)

	res, err := f.assignment.AssignDriverToBooking(context.Background(), b.ID)
	require.NoError(t, err)

	assert.True(t, res.Assigned)
	assert.Empty(t, res.Reason)
	require.NotNil(t, res.Driver)
	assert.Equal(t, strong.ID, res.Driver.Driver.ID)
	assert.Equal(t, models.DriverStatusBusy, res.Driver.Driver.Status)
	require.NotNil(t, res.Vehicle)
	assert.Equal(t, lux.ID, res.Vehicle.ID)

	assert.Equal(t, models.BookingStatusAssigned, res.Booking.Status)
	assert.Equal(t, strong.ID, *res.Booking.DriverID)
	assert.Equal(t, lux.ID, *res.Booking.VehicleID)
	assert.Equal(t, models.DriverStatusBusy, f.reloadDriver(t, strong.ID).Status)
	assert.Equal(t, models.DriverStatusAvailable, f.reloadDriver(t, weak.ID).Status)
}

func TestAssignDriverToBooking_NoDriverLeavesPending(t *testing.T) {
	f := newFixture(t)
	b := f.pending(t, models.ServiceRide)

	res, err := f.assignment.AssignDriverToBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, res.Assigned)
	assert.Equal(t, ReasonNoDriverAvailable, res.Reason)
	assert.Equal(t, models.BookingStatusPending, f.reloadBooking(t, b.ID).Status)
}

func TestAssignDriverToBooking_NotPending(t *testing.T) {
	f := newFixture(t)
	b, _ := f.assigned(t)

	_, err := f.assignment.AssignDriverToBooking(context.Background(), b.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.assignment.AssignDriverToBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAssignDriverAndVehicle_ConcurrentSameDriver(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, 4, 10, models.DriverStatusAvailable)
	v := f.vehicle(t, d.ID, models.VehicleSedan, models.VehicleStatusActive)
	first := f.pending(t, models.ServiceRide)
	second := f.pending(t, models.ServiceRide)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, bookingID uint) {
			defer wg.Done()
			_, errs[i] = f.bookings.AssignDriverAndVehicle(context.Background(), bookingID, d.ID, v.ID)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, models.DriverStatusBusy, f.reloadDriver(t, d.ID).Status)

	held, err := f.store.ListBookings(context.Background(), database.BookingFilter{
		DriverID: &d.ID,
		Statuses: activeBookingStatuses,
	})
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestGetDriverWorkload(t *testing.T) {
	f := newFixture(t)
	b, d := f.assigned(t)

	n, err := f.assignment.GetDriverWorkload(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.bookings.StartRide(context.Background(), b.ID)
	require.NoError(t, err)
	n, err = f.assignment.GetDriverWorkload(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.bookings.CompleteRide(context.Background(), b.ID, 18)
	require.NoError(t, err)
	n, err = f.assignment.GetDriverWorkload(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.assignment.GetDriverWorkload(context.Background(), 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkloadReport(t *testing.T) {
	f := newFixture(t)
	_, working := f.assigned(t)
	idle := f.driver(t, 4, 0, models.DriverStatusAvailable)
	stuck := f.driver(t, 4, 0, models.DriverStatusBusy)
	f.driver(t, 4, 0, models.DriverStatusOffline)

	report, err := f.assignment.WorkloadReport(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Drivers, 3)
	assert.InDelta(t, 1.0/3.0, report.Average, 1e-9)
	assert.Empty(t, report.Overloaded)
	require.Len(t, report.Idle, 1)
	assert.Equal(t, idle.ID, report.Idle[0].DriverID)
	require.Len(t, report.Inconsistent, 1)
	assert.Equal(t, stuck.ID, report.Inconsistent[0].DriverID)
	assert.Empty(t, report.Stale)

	for _, w := range report.Drivers {
		if w.DriverID == working.ID {
			assert.Equal(t, 1, w.ActiveBookings)
		}
	}
}

func TestWorkloadReport_Empty(t *testing.T) {
	f := newFixture(t)

	report, err := f.assignment.WorkloadReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Drivers)
	assert.Zero(t, report.Average)
}

func TestWorkloadReport_StaleCache(t *testing.T) {
	f := newFixture(t)
	_, working := f.assigned(t)
	require.NoError(t, f.cache.SetDriverAvailability(context.Background(), working.ID, true))

	report, err := f.assignment.WorkloadReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, working.ID, report.Stale[0].DriverID)
	assert.Empty(t, report.Inconsistent)
}

func TestWorkloadReport_CacheOutage(t *testing.T) {
	f := newFixture(t)
	f.assigned(t)
	assignment := NewAssignmentService(f.store, f.bookings, WithAvailabilityCache(failingCache{}))

	report, err := assignment.WorkloadReport(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Drivers, 1)
	assert.Empty(t, report.Stale)
}
