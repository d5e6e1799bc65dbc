package database

import (
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"gorm.io/gorm"
)

// constraints are applied after AutoMigrate. Each statement is idempotent.
var constraints = []string{
	// At most one active booking may hold a driver.
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_one_active_per_driver
		ON bookings (driver_id)
		WHERE status IN ('assigned', 'in_progress') AND deleted_at IS NULL`,
	`ALTER TABLE drivers DROP CONSTRAINT IF EXISTS drivers_rating_range`,
	`ALTER TABLE drivers ADD CONSTRAINT drivers_rating_range CHECK (rating >= 0 AND rating <= 5)`,
	`ALTER TABLE drivers DROP CONSTRAINT IF EXISTS drivers_total_rides_non_negative`,
	`ALTER TABLE drivers ADD CONSTRAINT drivers_total_rides_non_negative CHECK (total_rides >= 0)`,
	`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_actual_fare_when_completed`,
	`ALTER TABLE bookings ADD CONSTRAINT bookings_actual_fare_when_completed
		CHECK ((status = 'completed') = (actual_fare IS NOT NULL))`,
}

// RunMigrations creates or updates the dispatch schema.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Driver{},
		&models.Vehicle{},
		&models.Booking{},
		&models.Payment{},
	)
	if err != nil {
		return err
	}

	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
