// Package looptrack holds the sealed, immutable event data the loop
// engine schedules during playback: LoopEvent and LoopTrack.
package looptrack

// Event is one captured pad trigger within a cycle. Immutable after
// capture; OffsetMs is always in [0, loopLengthMs).
type Event struct {
	PadKey   rune
	OffsetMs uint32
}

// Track is one sealed overdub layer: an ordered, immutable sequence of
// Events recorded during a single pass, plus the cycle index it was
// sealed on.
type Track struct {
	ID           uint64
	Events       []Event
	CreatedCycle uint64
}

// Builder accumulates Events for a single in-progress recording pass.
// Insertion order is preserved, including ties within the same
// millisecond bucket.
type Builder struct {
	events []Event
}

// NewBuilder returns an empty event builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Append records an event at the end of the current pass, clamping its
// offset into [0, loopLengthMs).
func (b *Builder) Append(padKey rune, offsetMs uint32, loopLengthMs uint32) {
	if loopLengthMs > 0 && offsetMs >= loopLengthMs {
		offsetMs = loopLengthMs - 1
	}
	b.events = append(b.events, Event{PadKey: padKey, OffsetMs: offsetMs})
}

// Len returns the number of events captured so far.
func (b *Builder) Len() int {
	return len(b.events)
}

// Reset discards all captured events, for a cancelled (non-overdub)
// recording pass.
func (b *Builder) Reset() {
	b.events = nil
}

// Seal moves the builder's events into a new immutable Track, assigning
// it id and createdCycle, and resets the builder. Events with an offset
// at or beyond loopLengthMs are dropped; Append already clamps, so this
// only matters if loopLengthMs shrank mid-pass.
func (b *Builder) Seal(id uint64, createdCycle uint64, loopLengthMs uint32) Track {
	kept := make([]Event, 0, len(b.events))
	for _, e := range b.events {
		if loopLengthMs == 0 || e.OffsetMs < loopLengthMs {
			kept = append(kept, e)
		}
	}
	b.events = nil
	return Track{ID: id, Events: kept, CreatedCycle: createdCycle}
}
