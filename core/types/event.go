package types

import "strconv"

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType implements events.Event.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// NewEvent builds an event from alternating key/value pairs.
func NewEvent(eventType string, kv ...string) *Event {
	attrs := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i]] = kv[i+1]
	}
	return &Event{Type: eventType, Attributes: attrs}
}

// FormatAmount renders a ledger amount for event attributes.
func FormatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
