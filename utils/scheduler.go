package utils

import (
	"log"

	"github.com/robfig/cron/v3"

	"lms/database"
	"lms/events"
)

const outboxBatchSize = 50

// InitSchedulers starts the background jobs: the outbox drain every minute
// and a nightly recompute of course aggregates.
func InitSchedulers(catalogSvc interface{ RecomputeAll() error }) {
	log.Println("[SCHEDULER] Initializing background jobs...")

	c := cron.New()

	c.AddFunc("* * * * *", func() {
		events.DrainOutbox(database.Database.Db, NotificationSender(database.Database.Db), outboxBatchSize)
	})

	// Nightly sweep heals any drift in denormalized course counters
	c.AddFunc("0 3 * * *", func() {
		log.Println("[SCHEDULER] Running nightly aggregate recompute...")
		if err := catalogSvc.RecomputeAll(); err != nil {
			log.Printf("[SCHEDULER] Aggregate recompute failed: %v", err)
		}
	})

	c.Start()
	log.Println("[SCHEDULER] Background jobs started")
}
