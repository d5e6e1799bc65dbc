package handlers

import (
	"log/slog"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/gin-gonic/gin"
)

// ProcessPayment settles a completed booking. Declined card and wallet
// payments still answer 201 with status "failed".
func ProcessPayment(svc *services.PaymentService, access BookingAccess, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, ok := access.authorize(c, log, bookingID); !ok {
			return
		}

		var input struct {
			Amount float64              `json:"amount" binding:"required"`
			Method models.PaymentMethod `json:"method" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		payment, err := svc.ProcessPayment(c.Request.Context(), bookingID, input.Amount, input.Method)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(201, payment)
	}
}

func CompletePayment(svc *services.PaymentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			TransactionID string `json:"transactionId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		payment, err := svc.MarkCompleted(c.Request.Context(), id, input.TransactionID)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, payment)
	}
}

func FailPayment(svc *services.PaymentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		payment, err := svc.MarkFailed(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, payment)
	}
}

func RefundPayment(svc *services.PaymentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		payment, err := svc.Refund(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, payment)
	}
}

// GetRevenue sums completed payments, optionally narrowed by method and an
// RFC 3339 paid-at window.
func GetRevenue(svc *services.PaymentService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter database.PaymentFilter

		if method := c.Query("method"); method != "" {
			filter.Method = models.PaymentMethod(method)
			if !filter.Method.Valid() {
				c.JSON(400, gin.H{"error": "Invalid payment method"})
				return
			}
		}
		for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
			raw := c.Query(key)
			if raw == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(400, gin.H{"error": "Invalid " + key + " time, expected RFC 3339"})
				return
			}
			*dst = &t
		}

		summary, err := svc.Revenue(c.Request.Context(), filter)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(200, summary)
	}
}
