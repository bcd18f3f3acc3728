package loopengine

import (
	"time"

	"github.com/shotatanemura/termigroove/looptrack"
)

// Kind tags which variant of LoopState the engine currently holds.
type Kind int

const (
	// Idle: no loop, no count-in, no playback.
	Idle Kind = iota
	// Ready: count-in active.
	Ready
	// Recording: capturing pad events.
	Recording
	// Playing: scheduled playback of sealed tracks.
	Playing
	// Paused: transport halted, a PauseSnapshot retained.
	Paused
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case Ready:
		return "Ready"
	case Recording:
		return "Recording"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// PauseSnapshot is captured at pause.
type PauseSnapshot struct {
	PlaybackOffsetMs uint32
	OverdubOffsetMs  *uint32 // nil unless an overdub was in progress
	WasRecording     bool
}

// state is the tagged-union representation of LoopState. Only the fields
// relevant to Kind are meaningful; transitions are total functions that
// construct a fresh state value rather than mutating one in place, so an
// illegal combination (e.g. Ready with a started_at) cannot be expressed
// by any reachable transition.
type state struct {
	kind Kind

	// Ready
	countdownRemaining int
	nextTickAt         time.Duration

	// Recording
	startedAt     time.Duration
	loopLengthMs  uint32
	pending       *looptrack.Builder
	isOverdub     bool

	// Playing
	cycleStart      time.Duration
	cursors         []int // per-track index of next event to fire this cycle
	lastCycleIndex  int64

	// Paused
	snapshot       PauseSnapshot
	priorWasPlay   bool // true: prior state was Playing; false: Recording
}

func idleState() state {
	return state{kind: Idle}
}

func readyState(countdown int, nextTickAt time.Duration) state {
	return state{kind: Ready, countdownRemaining: countdown, nextTickAt: nextTickAt}
}

func recordingState(startedAt time.Duration, loopLengthMs uint32, isOverdub bool, pending *looptrack.Builder) state {
	if pending == nil {
		pending = looptrack.NewBuilder()
	}
	return state{
		kind:         Recording,
		startedAt:    startedAt,
		loopLengthMs: loopLengthMs,
		isOverdub:    isOverdub,
		pending:      pending,
	}
}

func playingState(cycleStart time.Duration, loopLengthMs uint32, trackCount int) state {
	return state{
		kind:           Playing,
		cycleStart:     cycleStart,
		loopLengthMs:   loopLengthMs,
		cursors:        make([]int, trackCount),
		lastCycleIndex: 0,
	}
}

// pausedState constructs a Paused state. pending carries an in-progress
// overdub's captured events across the pause when priorWasPlay is false
// (prior state was Recording); it is nil when the prior state was
// Playing, since there is nothing in flight to preserve.
func pausedState(snap PauseSnapshot, priorWasPlay bool, loopLengthMs uint32, pending *looptrack.Builder) state {
	return state{
		kind:         Paused,
		snapshot:     snap,
		priorWasPlay: priorWasPlay,
		loopLengthMs: loopLengthMs,
		pending:      pending,
	}
}
