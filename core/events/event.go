package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the owner decides to publish or drop them. The
// batch executor uses it so aborted batches never leak events.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	return append([]Event(nil), b.events...)
}

// Flush forwards the buffered events to the target emitter and resets the
// buffer.
func (b *Buffer) Flush(target Emitter) {
	if b == nil {
		return
	}
	if target != nil {
		for _, evt := range b.events {
			target.Emit(evt)
		}
	}
	b.events = nil
}
