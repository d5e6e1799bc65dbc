package models

import "gorm.io/gorm"

// VehicleCategory is the class of a vehicle.
type VehicleCategory string

const (
	VehicleSedan  VehicleCategory = "sedan"
	VehicleSUV    VehicleCategory = "suv"
	VehicleVan    VehicleCategory = "van"
	VehicleLuxury VehicleCategory = "luxury"
)

// Valid reports whether c is a known vehicle category.
func (c VehicleCategory) Valid() bool {
	switch c {
	case VehicleSedan, VehicleSUV, VehicleVan, VehicleLuxury:
		return true
	}
	return false
}

// VehicleStatus is whether a vehicle can be dispatched.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusInactive    VehicleStatus = "inactive"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleStatusActive, VehicleStatusMaintenance, VehicleStatusInactive:
		return true
	}
	return false
}

// Vehicle belongs to exactly one driver.
type Vehicle struct {
	gorm.Model
	DriverID    uint            `json:"driverId" gorm:"not null;index"`
	Category    VehicleCategory `json:"category" gorm:"not null"`
	PlateNumber string          `json:"plateNumber"`
	Status      VehicleStatus   `json:"status" gorm:"not null;default:'active';index"`
	Driver      *Driver         `json:"-" gorm:"foreignKey:DriverID"`
}

// TableName specifies the table name
func (Vehicle) TableName() string {
	return "vehicles"
}
