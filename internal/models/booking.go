package models

import (
	"time"

	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAssigned   BookingStatus = "assigned"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// ServiceCategory is the billing class of a trip.
type ServiceCategory string

const (
	ServiceRide      ServiceCategory = "ride"
	ServiceCorporate ServiceCategory = "corporate"
	ServiceParcel    ServiceCategory = "parcel"
)

// Valid reports whether c is one of the known service categories.
func (c ServiceCategory) Valid() bool {
	switch c {
	case ServiceRide, ServiceCorporate, ServiceParcel:
		return true
	}
	return false
}

// Booking is a single requested trip or shipment.
type Booking struct {
	gorm.Model
	CustomerID      uint            `json:"customerId" gorm:"not null;index"`
	DriverID        *uint           `json:"driverId,omitempty" gorm:"index"`
	VehicleID       *uint           `json:"vehicleId,omitempty"`
	PickupLocation  string          `json:"pickupLocation" gorm:"not null"`
	DropoffLocation string          `json:"dropoffLocation" gorm:"not null"`
	BookedAt        time.Time       `json:"bookedAt" gorm:"not null;index"`
	PickupAt        *time.Time      `json:"pickupAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	Status          BookingStatus   `json:"status" gorm:"not null;default:'pending';index"`
	ServiceCategory ServiceCategory `json:"serviceCategory" gorm:"not null;default:'ride'"`
	EstimatedFare   float64         `json:"estimatedFare" gorm:"not null"`
	ActualFare      *float64        `json:"actualFare,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// HoldsDriver reports whether the booking currently occupies its driver.
func (b *Booking) HoldsDriver() bool {
	return b.DriverID != nil &&
		(b.Status == BookingStatusAssigned || b.Status == BookingStatusInProgress)
}

// Clone returns a deep copy so stored values never share pointer fields with callers.
func (b Booking) Clone() Booking {
	b.DriverID = cloneUint(b.DriverID)
	b.VehicleID = cloneUint(b.VehicleID)
	b.PickupAt = cloneTime(b.PickupAt)
	b.CompletedAt = cloneTime(b.CompletedAt)
	if b.ActualFare != nil {
		f := *b.ActualFare
		b.ActualFare = &f
	}
	return b
}

func cloneUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
