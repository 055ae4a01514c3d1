package events

import "admarket/core/types"

// Event represents a structured state change emitted by the marketplace core.
type Event interface {
	EventType() string
}

// Payloader is implemented by events that can render themselves into the
// generic attribute payload consumed by the indexer.
type Payloader interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the off-chain
// indexer or test assertions).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines until a real sink is configured.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
