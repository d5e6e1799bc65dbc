package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod is how the customer settles a booking.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentWallet:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment settles one completed booking. BookingID is unique.
type Payment struct {
	gorm.Model
	BookingID     uint          `json:"bookingId" gorm:"not null;uniqueIndex"`
	Amount        float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Method        PaymentMethod `json:"method" gorm:"size:20;not null"`
	Status        PaymentStatus `json:"status" gorm:"size:20;not null;default:'pending';index"`
	TransactionID *string       `json:"transactionId,omitempty" gorm:"size:200"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" gorm:"index"`
	Booking       *Booking      `json:"-" gorm:"foreignKey:BookingID"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// Clone returns a deep copy of p.
func (p Payment) Clone() Payment {
	if p.TransactionID != nil {
		id := *p.TransactionID
		p.TransactionID = &id
	}
	p.PaidAt = cloneTime(p.PaidAt)
	p.Booking = nil
	return p
}
