package models

import (
	"gorm.io/gorm"
)

// DriverStatus is a driver's dispatch availability.
type DriverStatus string

// DriverStatus constants
const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusBusy      DriverStatus = "busy"
	DriverStatusOffline   DriverStatus = "offline"
)

// Driver represents a driver that can be assigned to bookings
type Driver struct {
	gorm.Model
	UserID        uint         `json:"userId" gorm:"not null;index"`
	LicenseNumber string       `json:"licenseNumber" gorm:"not null;uniqueIndex"`
	Rating        float64      `json:"rating" gorm:"not null;default:0"`
	TotalRides    int          `json:"totalRides" gorm:"not null;default:0"`
	Status        DriverStatus `json:"status" gorm:"not null;default:'available';index"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}
