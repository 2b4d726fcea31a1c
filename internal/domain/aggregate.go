package domain

// Aggregate is what the unit of work needs from an aggregate root: access to the
// queued events and the ability to roll in-memory state back to the last checkpoint.
type Aggregate interface {
	PendingEvents() []Event
	ClearEvents()

	// Checkpoint records the current state as the one Revert returns to.
	Checkpoint()
	// Revert drops every change, and every event queued, since Checkpoint.
	Revert()

	// Savepoint hands out the last checkpoint; RevertTo makes it current again
	// and reverts to it, even after later checkpoints.
	Savepoint() Savepoint
	RevertTo(sp Savepoint)
}

// Savepoint is a checkpoint held outside the aggregate: the state snapshot and
// the events that were queued when it was taken.
type Savepoint struct {
	State  any
	Events []Event
}

// AggregateRoot is embedded by aggregate roots to queue domain events.
// Its fields are unexported so gorm never maps them to columns.
type AggregateRoot struct {
	events []Event
	mark   int
}

// Raise queues an event for dispatch after the next successful save.
func (a *AggregateRoot) Raise(e Event) {
	a.events = append(a.events, e)
}

// PendingEvents returns a copy of the queued events in the order they were raised.
func (a *AggregateRoot) PendingEvents() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

func (a *AggregateRoot) ClearEvents() {
	a.events = nil
	a.mark = 0
}

// MarkEvents remembers how many events are queued; RevertEvents drops the rest.
// Aggregates call both from Checkpoint and Revert.
func (a *AggregateRoot) MarkEvents() {
	a.mark = len(a.events)
}

func (a *AggregateRoot) RevertEvents() {
	if a.mark < len(a.events) {
		a.events = a.events[:a.mark]
	}
}

// SavepointOf pairs an aggregate's snapshot with the events queued at its mark.
func (a *AggregateRoot) SavepointOf(state any) Savepoint {
	events := make([]Event, a.mark)
	copy(events, a.events[:a.mark])
	return Savepoint{State: state, Events: events}
}

// RestoreEvents replaces the queue with events and marks them all.
func (a *AggregateRoot) RestoreEvents(events []Event) {
	a.events = append([]Event(nil), events...)
	a.mark = len(a.events)
}

// Versioned is the optimistic-lock column of a row that is updated in place.
// The unit of work bumps it on every update and only writes when the stored
// version still equals the one that was loaded.
type Versioned struct {
	Version int64 `gorm:"not null;default:0" json:"-"`
}

// NextVersion advances the version and returns the previous one.
func (v *Versioned) NextVersion() int64 {
	prev := v.Version
	v.Version++
	return prev
}

// Outcome tells the persistence layer how an add-or-restore changed a child entity.
type Outcome int

const (
	// Created means a new row must be inserted.
	Created Outcome = iota + 1
	// Restored means an existing row was revived and must be updated.
	Restored
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}
