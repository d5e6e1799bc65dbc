package handlers

import (
	"errors"
	"log/slog"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/gin-gonic/gin"
)

// BookingAccess decides whether the caller may act on a booking. Customers
// must own it, drivers must be the one assigned to it, and dispatchers may
// act on any booking.
type BookingAccess struct {
	Bookings *services.BookingService
	Drivers  *services.DriverService
}

// authorize loads the booking and answers 403 when the caller has no claim to it.
func (a BookingAccess) authorize(c *gin.Context, log *slog.Logger, bookingID uint) (*models.Booking, bool) {
	ctx := c.Request.Context()
	booking, err := a.Bookings.Get(ctx, bookingID)
	if err != nil {
		respondError(c, log, err)
		return nil, false
	}

	userID := c.GetUint("userId")
	switch c.GetString("role") {
	case utils.RoleDispatcher:
		return booking, true

	case utils.RoleDriver:
		driver, err := a.Drivers.GetDriverByUser(ctx, userID)
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return nil, false
		}
		if err != nil {
			respondError(c, log, err)
			return nil, false
		}
		if booking.DriverID == nil || *booking.DriverID != driver.ID {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return nil, false
		}
		return booking, true

	default:
		if booking.CustomerID != userID {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return nil, false
		}
		return booking, true
	}
}
