package events

// Domain event names. Mutating service operations dispatch these explicitly;
// aggregate updates and notifications are both driven by the dispatch, so
// no path can mutate state and silently skip the side effects.
const (
	CoursePublished     = "course.published"
	EnrollmentCreated   = "enrollment.created"
	EnrollmentCompleted = "enrollment.completed"
	EnrollmentReviewed  = "enrollment.reviewed"
	EnrollmentDropped   = "enrollment.dropped"
	EnrollmentRefunded  = "enrollment.refunded"
	PaymentCompleted    = "payment.completed"
	PaymentFailed       = "payment.failed"
	PaymentRefunded     = "payment.refunded"
)

const (
	AggregateCourse     = "course"
	AggregateEnrollment = "enrollment"
	AggregatePayment    = "payment"
)

// Event is a named fact emitted by a core operation.
type Event struct {
	Type          string
	AggregateType string
	AggregateID   uint
	Payload       map[string]interface{}
}

// New builds an event with an initialized payload map.
func New(eventType, aggregateType string, aggregateID uint) Event {
	return Event{
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       map[string]interface{}{},
	}
}

// With adds a payload field and returns the event for chaining.
func (e Event) With(key string, value interface{}) Event {
	e.Payload[key] = value
	return e
}
