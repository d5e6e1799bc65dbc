package handlers

import (
	"log/slog"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/gin-gonic/gin"
)

func RegisterDriver(svc *services.DriverService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			UserID        uint    `json:"userId" binding:"required"`
			LicenseNumber string  `json:"licenseNumber" binding:"required"`
			Rating        float64 `json:"rating"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		driver, err := svc.RegisterDriver(c.Request.Context(), services.RegisterDriverInput{
			UserID:        input.UserID,
			LicenseNumber: input.LicenseNumber,
			Rating:        input.Rating,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(201, driver)
	}
}

func RegisterVehicle(svc *services.DriverService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Category    models.VehicleCategory `json:"category" binding:"required"`
			PlateNumber string                 `json:"plateNumber" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		vehicle, err := svc.RegisterVehicle(c.Request.Context(), driverID, input.Category, input.PlateNumber)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(201, vehicle)
	}
}

// SetDriverAvailability lets a driver go on or off duty. Drivers may only
// toggle themselves; dispatchers may toggle anyone.
func SetDriverAvailability(svc *services.DriverService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Online *bool `json:"online" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if c.GetString("role") == utils.RoleDriver {
			driver, err := svc.GetDriver(c.Request.Context(), driverID)
			if err != nil {
				respondError(c, log, err)
				return
			}
			if driver.UserID != c.GetUint("userId") {
				c.JSON(403, gin.H{"error": "Drivers can only change their own availability"})
				return
			}
		}

		driver, err := svc.SetAvailability(c.Request.Context(), driverID, *input.Online)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, driver)
	}
}

func SetVehicleStatus(svc *services.DriverService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Status models.VehicleStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		vehicle, err := svc.SetVehicleStatus(c.Request.Context(), id, input.Status)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, vehicle)
	}
}

func GetDriverWorkload(svc *services.AssignmentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		workload, err := svc.GetDriverWorkload(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, gin.H{"driverId": id, "activeBookings": workload})
	}
}

func GetWorkloadReport(svc *services.AssignmentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.WorkloadReport(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, report)
	}
}
