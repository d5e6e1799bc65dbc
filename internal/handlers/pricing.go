package handlers

import (
	"log/slog"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/gin-gonic/gin"
)

// GetFareEstimate prices a trip without booking it.
func GetFareEstimate(svc *services.BookingService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		pickup := c.Query("pickup")
		dropoff := c.Query("dropoff")
		if pickup == "" || dropoff == "" {
			c.JSON(400, gin.H{"error": "pickup and dropoff are required"})
			return
		}

		quote, err := svc.EstimateFare(c.Request.Context(), pickup, dropoff, models.ServiceCategory(c.Query("category")))
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, quote)
	}
}
