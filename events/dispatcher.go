package events

import (
	"encoding/json"
	"log"
	"sync"

	"gorm.io/gorm"

	"lms/models"
)

// Handler applies a side effect of a domain event (aggregate counter update,
// recompute trigger). Handlers run synchronously within the request.
type Handler func(e Event) error

// Dispatcher routes domain events to registered handlers and persists
// notification-worthy events to the outbox table for asynchronous delivery.
// Handler and outbox failures are logged, never propagated: the aggregate
// counters are a cache healed by recomputation, and notification delivery
// must not fail the triggering operation.
type Dispatcher struct {
	db *gorm.DB

	mu         sync.RWMutex
	handlers   map[string][]Handler
	notifiable map[string]bool
}

// NewDispatcher creates a dispatcher persisting outbox rows through db.
func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{
		db:         db,
		handlers:   make(map[string][]Handler),
		notifiable: make(map[string]bool),
	}
}

// On registers a handler for an event type.
func (d *Dispatcher) On(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Notify marks event types that should be queued for notification delivery.
func (d *Dispatcher) Notify(eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range eventTypes {
		d.notifiable[t] = true
	}
}

// Dispatch runs handlers and queues outbox rows for each event.
func (d *Dispatcher) Dispatch(evts ...Event) {
	for _, e := range evts {
		d.mu.RLock()
		handlers := d.handlers[e.Type]
		notify := d.notifiable[e.Type]
		d.mu.RUnlock()

		for _, h := range handlers {
			if err := h(e); err != nil {
				log.Printf("[EVENTS] handler for %s (aggregate %s/%d) failed: %v",
					e.Type, e.AggregateType, e.AggregateID, err)
			}
		}

		if notify {
			d.enqueue(e)
		}
	}
}

func (d *Dispatcher) enqueue(e Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		log.Printf("[EVENTS] marshal payload for %s failed: %v", e.Type, err)
		return
	}

	row := models.OutboxEvent{
		EventType:     e.Type,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
		Status:        models.OutboxStatusPending,
	}
	if err := d.db.Create(&row).Error; err != nil {
		log.Printf("[EVENTS] enqueue outbox row for %s failed: %v", e.Type, err)
	}
}
