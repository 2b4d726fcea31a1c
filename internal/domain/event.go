package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact raised by an aggregate. Events live on the aggregate
// until a successful save hands them to the dispatcher.
type Event interface {
	EventID() string
	EventType() string
	OccurredOn() time.Time
	AggregateID() string
}

// EventBase carries the fields every event has. Concrete events embed it and add
// EventType plus their payload.
type EventBase struct {
	ID        string    `json:"event_id"`
	Aggregate string    `json:"aggregate_id"`
	At        time.Time `json:"occurred_on"`
}

func NewEventBase(aggregateID string) EventBase {
	return EventBase{
		ID:        uuid.New().String(),
		Aggregate: aggregateID,
		At:        Now(),
	}
}

func (b EventBase) EventID() string       { return b.ID }
func (b EventBase) AggregateID() string   { return b.Aggregate }
func (b EventBase) OccurredOn() time.Time { return b.At }

// Now returns the current UTC time. Tests replace it to pin timestamps.
var Now = func() time.Time {
	return time.Now().UTC()
}
