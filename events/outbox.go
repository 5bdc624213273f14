package events

import (
	"log"
	"time"

	"gorm.io/gorm"

	"lms/models"
)

// maxDeliveryAttempts bounds retries before a row is parked as FAILED.
const maxDeliveryAttempts = 5

// Sender delivers a single queued notification.
type Sender func(eventType string, payload []byte) error

// DrainOutbox delivers up to batch pending rows through send. Each row is
// marked SENT on success; on error the attempt count is bumped and the row
// stays PENDING until the attempt limit parks it as FAILED. Delivery errors
// are logged and swallowed.
func DrainOutbox(db *gorm.DB, send Sender, batch int) {
	var rows []models.OutboxEvent
	if err := db.
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(batch).
		Find(&rows).Error; err != nil {
		log.Printf("[OUTBOX] fetch pending rows failed: %v", err)
		return
	}

	for _, row := range rows {
		if err := send(row.EventType, row.Payload); err != nil {
			row.Attempts++
			row.LastError = err.Error()
			if row.Attempts >= maxDeliveryAttempts {
				row.Status = models.OutboxStatusFailed
			}
			log.Printf("[OUTBOX] delivery of %s (row %d, attempt %d) failed: %v",
				row.EventType, row.ID, row.Attempts, err)
		} else {
			now := time.Now()
			row.Status = models.OutboxStatusSent
			row.SentAt = &now
			row.LastError = ""
		}
		if err := db.Save(&row).Error; err != nil {
			log.Printf("[OUTBOX] update row %d failed: %v", row.ID, err)
		}
	}
}
