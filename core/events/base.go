package events

import "time"

// Kind names an event type, namespaced as "<namespace>.<event>".
type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries what every event has in common. Embed it and create it with
// NewBase.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
