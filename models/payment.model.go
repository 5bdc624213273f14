package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
	PaymentStatusCancelled = "CANCELLED"
)

const (
	PaymentMethodCard         = "CARD"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
)

// Payment is a financial record and is never deleted. It stays only loosely
// coupled to the enrollment it created so the audit trail survives.
type Payment struct {
	gorm.Model
	UserID      uint   `json:"user_id" gorm:"index;not null"`
	CourseID    *uint  `json:"course_id" gorm:"index"` // null for non-course payments
	GatewayTxID string `json:"gateway_tx_id" gorm:"uniqueIndex;not null"`
	Amount      float64 `json:"amount" gorm:"not null"`
	Currency    string  `json:"currency" gorm:"size:3;default:'USD'"`
	Status      string  `json:"status" gorm:"default:'PENDING';index"`
	Method      string  `json:"method" gorm:"default:'CARD'"`
	Description string  `json:"description"`

	Fees      float64  `json:"fees" gorm:"default:0"`
	NetAmount *float64 `json:"net_amount"` // amount - fees, set once completed

	ProcessedAt  *time.Time `json:"processed_at"`
	RefundAmount float64    `json:"refund_amount" gorm:"default:0"`
	RefundReason string     `json:"refund_reason"`
	RefundedAt   *time.Time `json:"refunded_at"`

	Metadata datatypes.JSON `json:"metadata"`
}

// paymentTransitions encodes the only legal status moves:
// pending -> completed | failed | cancelled, completed -> refunded.
var paymentTransitions = map[string][]string{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

// ValidPaymentTransition reports whether moving from one payment status to
// another is legal.
func ValidPaymentTransition(from, to string) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
