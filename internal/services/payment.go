package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/google/uuid"
)

const defaultGatewayTimeout = 5 * time.Second

// PaymentService settles payments for completed bookings.
type PaymentService struct {
	core
	gateway  PaymentGateway
	timeout  time.Duration
	receipts ReceiptStore
}

// PaymentOption configures a PaymentService.
type PaymentOption func(*PaymentService)

// WithGatewayTimeout bounds each gateway call; expiry fails the payment.
func WithGatewayTimeout(d time.Duration) PaymentOption {
	return func(s *PaymentService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithReceipts archives a receipt whenever a payment completes or is refunded.
func WithReceipts(r ReceiptStore) PaymentOption {
	return func(s *PaymentService) { s.receipts = r }
}

// WithServiceOptions passes shared options (logger, events, clock) through.
func WithServiceOptions(opts ...Option) PaymentOption {
	return func(s *PaymentService) {
		for _, opt := range opts {
			opt(&s.core)
		}
	}
}

// NewPaymentService creates the settlement workflow.
func NewPaymentService(store database.Store, gateway PaymentGateway, opts ...PaymentOption) *PaymentService {
	if gateway == nil {
		gateway = DeclineGateway{}
	}
	s := &PaymentService{
		core:    newCore(store, nil),
		gateway: gateway,
		timeout: defaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// ProcessPayment records the single payment for a Completed booking. Cash
// settles immediately; card and wallet go through the gateway. On return the
// payment is Completed or Failed, never Pending. A decline is a Failed payment,
// not an error.
func (s *PaymentService) ProcessPayment(ctx context.Context, bookingID uint, amount float64, method models.PaymentMethod) (*models.Payment, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", models.ErrValidation, method)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount must be positive, got %v", models.ErrValidation, amount)
	}

	var payment *models.Payment
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		booking, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusCompleted || booking.ActualFare == nil {
			return fmt.Errorf("%w: booking %d is %s, payment requires completed", models.ErrInvalidState, booking.ID, booking.Status)
		}
		if _, err := tx.GetPaymentByBooking(ctx, bookingID); err == nil {
			return fmt.Errorf("%w: booking %d already has a payment", models.ErrInvalidState, bookingID)
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if utils.RoundMoney(amount) != utils.RoundMoney(*booking.ActualFare) {
			return fmt.Errorf("%w: amount %.2f does not match fare %.2f", models.ErrValidation, amount, *booking.ActualFare)
		}

		payment = &models.Payment{
			BookingID: bookingID,
			Amount:    utils.RoundMoney(amount),
			Method:    method,
			Status:    models.PaymentStatusPending,
		}
		if method == models.PaymentCash {
			now := s.now()
			txn := fmt.Sprintf("CASH-%d-%d", now.UnixNano(), bookingID)
			payment.Status = models.PaymentStatusCompleted
			payment.TransactionID = &txn
			payment.PaidAt = &now
		}
		return tx.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusPending {
		// The Pending row reserves the booking; the gateway call runs outside
		// any transaction so a slow processor holds no locks.
		payment, err = s.authorize(ctx, payment)
		if err != nil {
			return nil, err
		}
	}

	s.settled(ctx, payment)
	return payment, nil
}

func (s *PaymentService) authorize(ctx context.Context, pending *models.Payment) (*models.Payment, error) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	result, gerr := s.gateway.Authorize(gctx, pending.Amount, pending.Method)
	cancel()

	approved := gerr == nil && result.Approved
	if gerr != nil {
		s.log.Warn("gateway authorization failed", "action", "authorize_payment",
			"payment_id", pending.ID, "booking_id", pending.BookingID, "error", gerr)
	} else if !result.Approved {
		s.log.Info("gateway declined payment", "action", "authorize_payment",
			"payment_id", pending.ID, "booking_id", pending.BookingID, "message", result.Message)
	}

	// The outcome must be recorded even if the caller has gone away.
	finalizeCtx := context.WithoutCancel(ctx)
	var payment *models.Payment
	err := s.store.Transaction(finalizeCtx, func(tx database.Repository) error {
		var err error
		payment, err = tx.GetPayment(finalizeCtx, pending.ID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			// Settled out-of-band while the gateway was busy.
			return nil
		}
		if approved {
			now := s.now()
			txn := result.Reference
			if txn == "" {
				txn = "TXN-" + uuid.NewString()
			}
			payment.Status = models.PaymentStatusCompleted
			payment.TransactionID = &txn
			payment.PaidAt = &now
		} else {
			payment.Status = models.PaymentStatusFailed
			payment.TransactionID = nil
		}
		return tx.SavePayment(finalizeCtx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record gateway outcome for payment %d: %w", pending.ID, err)
	}
	return payment, nil
}

// MarkCompleted settles a Pending or Failed payment out-of-band, for example
// after a manual retry with the processor.
func (s *PaymentService) MarkCompleted(ctx context.Context, paymentID uint, transactionID string) (*models.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", models.ErrValidation)
	}

	payment, err := s.transition(ctx, paymentID, func(p *models.Payment) error {
		switch p.Status {
		case models.PaymentStatusPending, models.PaymentStatusFailed:
		default:
			return fmt.Errorf("%w: payment %d is %s", models.ErrInvalidState, p.ID, p.Status)
		}
		now := s.now()
		p.Status = models.PaymentStatusCompleted
		p.TransactionID = &transactionID
		p.PaidAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.settled(ctx, payment)
	return payment, nil
}

// MarkFailed fails a Pending payment.
func (s *PaymentService) MarkFailed(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := s.transition(ctx, paymentID, func(p *models.Payment) error {
		if p.Status != models.PaymentStatusPending {
			return fmt.Errorf("%w: payment %d is %s", models.ErrInvalidState, p.ID, p.Status)
		}
		p.Status = models.PaymentStatusFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.settled(ctx, payment)
	return payment, nil
}

// Refund reverses a Completed payment. The booking and driver are untouched.
func (s *PaymentService) Refund(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := s.transition(ctx, paymentID, func(p *models.Payment) error {
		if p.Status != models.PaymentStatusCompleted {
			return fmt.Errorf("%w: payment %d is %s, only completed payments can be refunded", models.ErrInvalidState, p.ID, p.Status)
		}
		p.Status = models.PaymentStatusRefunded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.settled(ctx, payment)
	return payment, nil
}

func (s *PaymentService) transition(ctx context.Context, paymentID uint, apply func(p *models.Payment) error) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.Transaction(ctx, func(tx database.Repository) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := apply(payment); err != nil {
			return err
		}
		return tx.SavePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// settled logs, publishes and archives a payment that reached a new status.
func (s *PaymentService) settled(ctx context.Context, p *models.Payment) {
	var eventType string
	switch p.Status {
	case models.PaymentStatusCompleted:
		eventType = EventPaymentCompleted
	case models.PaymentStatusFailed:
		eventType = EventPaymentFailed
	case models.PaymentStatusRefunded:
		eventType = EventPaymentRefunded
	default:
		return
	}

	s.log.Info("payment "+string(p.Status), "action", "settle_payment", "payment_id", p.ID,
		"booking_id", p.BookingID, "method", p.Method, "amount", p.Amount)
	s.publish(ctx, Event{
		Type:      eventType,
		BookingID: p.BookingID,
		PaymentID: p.ID,
		Status:    string(p.Status),
		Data:      map[string]interface{}{"amount": p.Amount, "method": p.Method},
	})

	if s.receipts == nil || eventType == EventPaymentFailed {
		return
	}
	location, err := s.receipts.Save(ctx, NewReceipt(p, s.now()))
	if err != nil {
		s.log.Warn("receipt archive failed", "action", "archive_receipt", "payment_id", p.ID, "error", err)
		return
	}
	s.log.Debug("receipt archived", "action", "archive_receipt", "payment_id", p.ID, "location", location)
}

// RevenueSummary totals Completed payments.
type RevenueSummary struct {
	Total    float64 `json:"total"`
	Payments int     `json:"payments"`
}

// Revenue sums Completed payment amounts matching the filter. The status
// constraint in the filter is replaced with Completed.
func (s *PaymentService) Revenue(ctx context.Context, filter database.PaymentFilter) (RevenueSummary, error) {
	filter.Statuses = []models.PaymentStatus{models.PaymentStatusCompleted}
	payments, err := s.store.ListPayments(ctx, filter)
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("failed to list payments: %w", err)
	}
	var sum RevenueSummary
	for _, p := range payments {
		sum.Total += p.Amount
		sum.Payments++
	}
	sum.Total = utils.RoundMoney(sum.Total)
	return sum, nil
}
