package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/logger"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// Event types published after a state change commits.
const (
	EventBookingCreated     = "booking.created"
	EventBookingAssigned    = "booking.assigned"
	EventBookingStarted     = "booking.started"
	EventBookingCompleted   = "booking.completed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingDeleted     = "booking.deleted"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventPaymentRefunded    = "payment.refunded"
	EventDriverAvailability = "driver.availability_changed"
)

// Event is a dispatch state change announced to other services.
type Event struct {
	Type      string                 `json:"type"`
	BookingID uint                   `json:"bookingId,omitempty"`
	PaymentID uint                   `json:"paymentId,omitempty"`
	DriverID  uint                   `json:"driverId,omitempty"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventPublisher delivers events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// AvailabilityCache mirrors driver availability into a fast lookup store.
// It is advisory only; dispatch decisions always read the Store.
type AvailabilityCache interface {
	SetDriverAvailability(ctx context.Context, driverID uint, available bool) error
	// GetDriverAvailability returns the cached flag. ok is false when nothing is cached.
	GetDriverAvailability(ctx context.Context, driverID uint) (available, ok bool, err error)
}

type nopAvailabilityCache struct{}

func (nopAvailabilityCache) SetDriverAvailability(context.Context, uint, bool) error { return nil }

func (nopAvailabilityCache) GetDriverAvailability(context.Context, uint) (bool, bool, error) {
	return false, false, nil
}

// Option configures the shared collaborators of a service.
type Option func(*core)

// WithEvents sets the publisher used for post-commit events.
func WithEvents(p EventPublisher) Option {
	return func(c *core) { c.events = p }
}

// WithAvailabilityCache sets the driver availability mirror.
func WithAvailabilityCache(a AvailabilityCache) Option {
	return func(c *core) { c.cache = a }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *core) { c.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

// core holds what every dispatch service shares.
type core struct {
	store  database.Store
	events EventPublisher
	cache  AvailabilityCache
	log    *slog.Logger
	now    func() time.Time
}

func newCore(store database.Store, opts []Option) core {
	c := core{
		store:  store,
		events: NopPublisher{},
		cache:  nopAvailabilityCache{},
		log:    logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// publish is best-effort: a broker outage must not undo a committed transition.
func (c *core) publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now().UTC()
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.log.Warn("event publish failed", "action", "publish_event", "type", event.Type, "error", err)
	}
}

func (c *core) publishBooking(ctx context.Context, eventType string, b *models.Booking) {
	ev := Event{Type: eventType, BookingID: b.ID, Status: string(b.Status)}
	if b.DriverID != nil {
		ev.DriverID = *b.DriverID
	}
	c.publish(ctx, ev)
}

// driverChanged mirrors a committed driver status into the cache and announces it.
func (c *core) driverChanged(ctx context.Context, d *models.Driver) {
	available := d.Status == models.DriverStatusAvailable
	if err := c.cache.SetDriverAvailability(ctx, d.ID, available); err != nil {
		c.log.Warn("availability cache write failed", "action", "cache_availability", "driver_id", d.ID, "error", err)
	}
	c.publish(ctx, Event{Type: EventDriverAvailability, DriverID: d.ID, Status: string(d.Status)})
}

// MultiPublisher fans each event out to several publishers and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
