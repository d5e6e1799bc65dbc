package handlers

import (
	"log/slog"

	"github.com/chachabrian/mooveit-dispatch/internal/middleware"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services are the dispatch operations the API exposes.
type Services struct {
	Bookings   *services.BookingService
	Assignment *services.AssignmentService
	Payments   *services.PaymentService
	Drivers    *services.DriverService
	// Events is optional; without it the live event stream is not mounted.
	Events *services.Hub
}

// NewRouter builds the gin engine with every dispatch route mounted.
func NewRouter(svc Services, jwtSecret string, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	dispatcher := middleware.RequireRole(utils.RoleDispatcher)
	driverOrDispatcher := middleware.RequireRole(utils.RoleDriver, utils.RoleDispatcher)
	customerOrDispatcher := middleware.RequireRole(utils.RoleCustomer, utils.RoleDispatcher)
	access := BookingAccess{Bookings: svc.Bookings, Drivers: svc.Drivers}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", customerOrDispatcher, CreateBooking(svc.Bookings, log))
			bookings.GET("/:id", GetBooking(access, log))
			bookings.DELETE("/:id", customerOrDispatcher, DeleteBooking(svc.Bookings, access, log))
			bookings.POST("/:id/assign", dispatcher, AssignBooking(svc.Assignment, log))
			bookings.POST("/:id/start", driverOrDispatcher, StartRide(svc.Bookings, access, log))
			bookings.POST("/:id/complete", driverOrDispatcher, CompleteRide(svc.Bookings, access, log))
			bookings.POST("/:id/cancel", customerOrDispatcher, CancelBooking(svc.Bookings, access, log))
			bookings.POST("/:id/payments", customerOrDispatcher, ProcessPayment(svc.Payments, access, log))
		}

		api.GET("/pricing/estimate", GetFareEstimate(svc.Bookings, log))

		payments := api.Group("/payments", dispatcher)
		{
			payments.GET("/revenue", GetRevenue(svc.Payments, log))
			payments.POST("/:id/complete", CompletePayment(svc.Payments, log))
			payments.POST("/:id/fail", FailPayment(svc.Payments, log))
			payments.POST("/:id/refund", RefundPayment(svc.Payments, log))
		}

		drivers := api.Group("/drivers")
		{
			drivers.POST("", dispatcher, RegisterDriver(svc.Drivers, log))
			drivers.GET("/workload-report", dispatcher, GetWorkloadReport(svc.Assignment, log))
			drivers.POST("/:id/vehicles", dispatcher, RegisterVehicle(svc.Drivers, log))
			drivers.POST("/:id/availability", driverOrDispatcher, SetDriverAvailability(svc.Drivers, log))
			drivers.GET("/:id/workload", driverOrDispatcher, GetDriverWorkload(svc.Assignment, log))
		}

		api.PATCH("/vehicles/:id/status", dispatcher, SetVehicleStatus(svc.Drivers, log))

		if svc.Events != nil {
			api.GET("/events/ws", dispatcher, EventStream(svc.Events))
		}
	}

	return r
}
