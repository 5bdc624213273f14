package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxEvent queues a notification for asynchronous delivery. Rows are
// written right after the domain change commits, best effort; a worker
// drains them so delivery failures never roll back or block the triggering
// operation. Notifications are not guaranteed if the process dies between
// the commit and the enqueue.
type OutboxEvent struct {
	gorm.Model
	EventType     string         `json:"event_type" gorm:"index;not null"`
	AggregateType string         `json:"aggregate_type" gorm:"not null"` // course, enrollment, payment
	AggregateID   uint           `json:"aggregate_id" gorm:"index;not null"`
	Payload       datatypes.JSON `json:"payload"`
	Status        string         `json:"status" gorm:"default:'PENDING';index"`
	Attempts      int            `json:"attempts" gorm:"default:0"`
	LastError     string         `json:"last_error"`
	SentAt        *time.Time     `json:"sent_at"`
}
