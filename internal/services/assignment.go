package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// Reasons reported when AssignDriverToBooking leaves a booking Pending.
const (
	ReasonNoDriverAvailable = "no_driver_available"
	ReasonNoEligibleVehicle = "no_eligible_vehicle"
)

var activeBookingStatuses = []models.BookingStatus{
	models.BookingStatusAssigned,
	models.BookingStatusInProgress,
}

// DriverScore is a driver's desirability for a new booking.
type DriverScore struct {
	Rating       float64 `json:"rating"`
	Experience   float64 `json:"experience"`
	Availability float64 `json:"availability"`
	Total        float64 `json:"total"`
}

// ScoreDriver rates a driver out of 100: rating*10 (0-50), one point per ten
// completed rides capped at 30, and 20 minus rides-mod-20 as a recent workload proxy.
func ScoreDriver(d models.Driver) DriverScore {
	rating := d.Rating * 10
	experience := float64(min(d.TotalRides/10, 30))
	availability := float64(20 - min(d.TotalRides%20, 20))
	return DriverScore{
		Rating:       rating,
		Experience:   experience,
		Availability: availability,
		Total:        rating + experience + availability,
	}
}

// ScoredDriver is a candidate together with its score.
type ScoredDriver struct {
	Driver models.Driver `json:"driver"`
	Score  DriverScore   `json:"score"`
}

// bestCandidate returns the top scorer; equal scores go to the lowest driver id.
func bestCandidate(candidates []models.Driver) (ScoredDriver, bool) {
	var (
		best  ScoredDriver
		found bool
	)
	for _, d := range candidates {
		sc := ScoreDriver(d)
		if !found || sc.Total > best.Score.Total ||
			(sc.Total == best.Score.Total && d.ID < best.Driver.ID) {
			best = ScoredDriver{Driver: d, Score: sc}
			found = true
		}
	}
	return best, found
}

// vehiclePreferences lists, per service category, the vehicle categories to try in order.
var vehiclePreferences = map[models.ServiceCategory][]models.VehicleCategory{
	models.ServiceCorporate: {models.VehicleLuxury, models.VehicleSedan},
	models.ServiceParcel:    {models.VehicleVan},
	models.ServiceRide:      {models.VehicleSedan},
}

// preferredVehicle picks from active vehicles (sorted by id) using the category
// preference list, falling back to the first one.
func preferredVehicle(vehicles []models.Vehicle, category models.ServiceCategory) (models.Vehicle, bool) {
	if len(vehicles) == 0 {
		return models.Vehicle{}, false
	}
	for _, want := range vehiclePreferences[category] {
		for _, v := range vehicles {
			if v.Category == want {
				return v, true
			}
		}
	}
	return vehicles[0], true
}

// AssignmentResult is the outcome of an automatic assignment attempt.
// When Assigned is false the booking is still Pending and Reason says why.
type AssignmentResult struct {
	Assigned bool            `json:"assigned"`
	Reason   string          `json:"reason,omitempty"`
	Booking  *models.Booking `json:"booking"`
	Driver   *ScoredDriver   `json:"driver,omitempty"`
	Vehicle  *models.Vehicle `json:"vehicle,omitempty"`
}

// AssignmentService selects drivers and vehicles for pending bookings.
type AssignmentService struct {
	core
	bookings *BookingService
}

// NewAssignmentService creates the assignment engine.
func NewAssignmentService(store database.Store, bookings *BookingService, opts ...Option) *AssignmentService {
	return &AssignmentService{core: newCore(store, opts), bookings: bookings}
}

// FindBestAvailableDriver scores every Available driver owning at least one
// Active vehicle. ok is false when nobody qualifies. The pickup location is
// accepted for a future proximity component and does not affect the score.
func (s *AssignmentService) FindBestAvailableDriver(ctx context.Context, pickupLocation string) (*ScoredDriver, bool, error) {
	drivers, err := s.store.ListDrivers(ctx, database.DriverFilter{
		Statuses: []models.DriverStatus{models.DriverStatusAvailable},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list available drivers: %w", err)
	}
	if len(drivers) == 0 {
		return nil, false, nil
	}

	vehicles, err := s.store.ListVehicles(ctx, database.VehicleFilter{
		Statuses: []models.VehicleStatus{models.VehicleStatusActive},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list active vehicles: %w", err)
	}
	equipped := make(map[uint]bool, len(vehicles))
	for _, v := range vehicles {
		equipped[v.DriverID] = true
	}

	candidates := drivers[:0]
	for _, d := range drivers {
		if equipped[d.ID] {
			candidates = append(candidates, d)
		}
	}

	best, ok := bestCandidate(candidates)
	if !ok {
		return nil, false, nil
	}
	s.log.Debug("driver selected", "action", "find_best_driver", "driver_id", best.Driver.ID,
		"score", best.Score.Total, "candidates", len(candidates), "pickup", pickupLocation)
	return &best, true, nil
}

// AssignVehicleToBooking picks one of the driver's Active vehicles for the
// service category. ok is false when the driver has none.
func (s *AssignmentService) AssignVehicleToBooking(ctx context.Context, driverID uint, category models.ServiceCategory) (*models.Vehicle, bool, error) {
	vehicles, err := s.store.ListVehicles(ctx, database.VehicleFilter{
		DriverID: &driverID,
		Statuses: []models.VehicleStatus{models.VehicleStatusActive},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list vehicles for driver %d: %w", driverID, err)
	}
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })

	v, ok := preferredVehicle(vehicles, category)
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

// AssignDriverToBooking picks the best driver and vehicle for a Pending booking
// and assigns them. An empty pool is not an error: the result reports
// Assigned=false and the booking stays Pending for the caller to retry.
func (s *AssignmentService) AssignDriverToBooking(ctx context.Context, bookingID uint) (*AssignmentResult, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, transitionError(booking, models.BookingStatusAssigned)
	}

	candidate, ok, err := s.FindBestAvailableDriver(ctx, booking.PickupLocation)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info("no driver available", "action", "assign_driver", "booking_id", booking.ID)
		return &AssignmentResult{Reason: ReasonNoDriverAvailable, Booking: booking}, nil
	}

	vehicle, ok, err := s.AssignVehicleToBooking(ctx, candidate.Driver.ID, booking.ServiceCategory)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info("no eligible vehicle", "action", "assign_driver", "booking_id", booking.ID,
			"driver_id", candidate.Driver.ID)
		return &AssignmentResult{Reason: ReasonNoEligibleVehicle, Booking: booking}, nil
	}

	assigned, err := s.bookings.AssignDriverAndVehicle(ctx, booking.ID, candidate.Driver.ID, vehicle.ID)
	if err != nil {
		return nil, err
	}
	candidate.Driver.Status = models.DriverStatusBusy

	return &AssignmentResult{
		Assigned: true,
		Booking:  assigned,
		Driver:   candidate,
		Vehicle:  vehicle,
	}, nil
}

// GetDriverWorkload counts the driver's Assigned and InProgress bookings.
func (s *AssignmentService) GetDriverWorkload(ctx context.Context, driverID uint) (int, error) {
	if _, err := s.store.GetDriver(ctx, driverID); err != nil {
		return 0, err
	}
	bookings, err := s.store.ListBookings(ctx, database.BookingFilter{
		DriverID: &driverID,
		Statuses: activeBookingStatuses,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list bookings for driver %d: %w", driverID, err)
	}
	return len(bookings), nil
}

// DriverWorkload is one driver's line in a WorkloadReport.
type DriverWorkload struct {
	DriverID       uint                `json:"driverId"`
	Status         models.DriverStatus `json:"status"`
	ActiveBookings int                 `json:"activeBookings"`
}

// WorkloadReport summarises how active bookings are spread across on-duty
// drivers. It is diagnostic only; nothing is reassigned.
type WorkloadReport struct {
	Drivers      []DriverWorkload `json:"drivers"`
	Average      float64          `json:"average"`
	Overloaded   []DriverWorkload `json:"overloaded"`
	Idle         []DriverWorkload `json:"idle"`
	Inconsistent []DriverWorkload `json:"inconsistent"`
	// Stale lists drivers whose cached availability disagrees with the store.
	Stale []DriverWorkload `json:"stale"`
}

// WorkloadReport builds the report over every driver that is not Offline.
func (s *AssignmentService) WorkloadReport(ctx context.Context) (*WorkloadReport, error) {
	drivers, err := s.store.ListDrivers(ctx, database.DriverFilter{
		Statuses: []models.DriverStatus{models.DriverStatusAvailable, models.DriverStatusBusy},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	active, err := s.store.ListBookings(ctx, database.BookingFilter{Statuses: activeBookingStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list active bookings: %w", err)
	}

	counts := make(map[uint]int)
	for _, b := range active {
		if b.DriverID != nil {
			counts[*b.DriverID]++
		}
	}

	report := &WorkloadReport{
		Drivers:      make([]DriverWorkload, 0, len(drivers)),
		Overloaded:   []DriverWorkload{},
		Idle:         []DriverWorkload{},
		Inconsistent: []DriverWorkload{},
		Stale:        []DriverWorkload{},
	}
	total := 0
	for _, d := range drivers {
		w := DriverWorkload{DriverID: d.ID, Status: d.Status, ActiveBookings: counts[d.ID]}
		report.Drivers = append(report.Drivers, w)
		total += w.ActiveBookings

		switch {
		case w.ActiveBookings > 1:
			report.Overloaded = append(report.Overloaded, w)
		case w.ActiveBookings == 0 && d.Status == models.DriverStatusAvailable:
			report.Idle = append(report.Idle, w)
		}
		if (d.Status == models.DriverStatusBusy && w.ActiveBookings == 0) ||
			(d.Status == models.DriverStatusAvailable && w.ActiveBookings > 0) {
			report.Inconsistent = append(report.Inconsistent, w)
		}
		if s.cacheStale(ctx, d) {
			report.Stale = append(report.Stale, w)
		}
	}
	if len(drivers) > 0 {
		report.Average = float64(total) / float64(len(drivers))
	}

	s.log.Info("workload report", "action", "workload_report", "drivers", len(drivers),
		"overloaded", len(report.Overloaded), "inconsistent", len(report.Inconsistent), "stale", len(report.Stale))
	return report, nil
}

func (s *AssignmentService) cacheStale(ctx context.Context, d models.Driver) bool {
	cached, ok, err := s.cache.GetDriverAvailability(ctx, d.ID)
	if err != nil {
		s.log.Warn("availability cache read failed", "action", "workload_report", "driver_id", d.ID, "error", err)
		return false
	}
	return ok && cached != (d.Status == models.DriverStatusAvailable)
}
