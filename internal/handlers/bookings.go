package handlers

import (
	"log/slog"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/gin-gonic/gin"
)

// CreateBooking opens a Pending booking for the caller. Dispatchers may book
// on behalf of a customer by passing customerId.
func CreateBooking(svc *services.BookingService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CustomerID      uint                   `json:"customerId"`
			PickupLocation  string                 `json:"pickupLocation" binding:"required"`
			DropoffLocation string                 `json:"dropoffLocation" binding:"required"`
			ServiceCategory models.ServiceCategory `json:"serviceCategory"`
			EstimatedFare   *float64               `json:"estimatedFare"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		customerID := c.GetUint("userId")
		if c.GetString("role") == utils.RoleDispatcher && input.CustomerID != 0 {
			customerID = input.CustomerID
		}

		booking, err := svc.Create(c.Request.Context(), services.CreateBookingInput{
			CustomerID:      customerID,
			PickupLocation:  input.PickupLocation,
			DropoffLocation: input.DropoffLocation,
			ServiceCategory: input.ServiceCategory,
			EstimatedFare:   input.EstimatedFare,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(201, booking)
	}
}

func GetBooking(access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		booking, ok := access.authorize(c, log, id)
		if !ok {
			return
		}

		c.JSON(200, booking)
	}
}

func DeleteBooking(svc *services.BookingService, access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, ok := access.authorize(c, log, id); !ok {
			return
		}

		if err := svc.Delete(c.Request.Context(), id); err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, gin.H{"message": "Booking deleted"})
	}
}

// AssignBooking runs automatic assignment. A booking nobody can take yet is
// answered with 202 and stays Pending.
func AssignBooking(svc *services.AssignmentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		result, err := svc.AssignDriverToBooking(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		if !result.Assigned {
			c.JSON(202, result)
			return
		}
		c.JSON(200, result)
	}
}

func StartRide(svc *services.BookingService, access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, ok := access.authorize(c, log, id); !ok {
			return
		}

		booking, err := svc.StartRide(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, booking)
	}
}

func CompleteRide(svc *services.BookingService, access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, ok := access.authorize(c, log, id); !ok {
			return
		}

		var input struct {
			ActualFare float64 `json:"actualFare" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		booking, err := svc.CompleteRide(c.Request.Context(), id, input.ActualFare)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, booking)
	}
}

func CancelBooking(svc *services.BookingService, access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, ok := access.authorize(c, log, id); !ok {
			return
		}

		booking, err := svc.Cancel(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, booking)
	}
}
