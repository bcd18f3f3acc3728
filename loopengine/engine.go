// Package loopengine implements the real-time loop-recording state
// machine and scheduler at the heart of TermiGroove: count-in, event
// capture, track sealing, per-cycle playback scheduling, and pause/
// resume/clear transport operations.
//
// The engine is single-threaded cooperative: it holds no locks, performs
// no blocking I/O, and every exported method is meant to be called from
// one goroutine (the application's main/event loop).
package loopengine

import (
	"log/slog"
	"time"

	"github.com/shotatanemura/termigroove/audiobus"
	"github.com/shotatanemura/termigroove/clock"
	"github.com/shotatanemura/termigroove/looptrack"
	"github.com/shotatanemura/termigroove/tempo"
)

// TrackSummary is a read-only view of one sealed track, supplementing
// LoopSnapshot's single TrackCount with enough detail to describe a
// loop's contents (used by the CLI and the natural-language assistant).
type TrackSummary struct {
	ID           uint64
	EventCount   int
	CreatedCycle uint64
}

// LoopSnapshot is the read-only view the engine exposes to the UI (or to
// anything else polling it).
type LoopSnapshot struct {
	StateKind             Kind
	Countdown             int
	CyclePositionMs       uint32
	TrackCount            int
	IsPaused              bool
	ActiveOverdubOffsetMs *uint32
	BPM                   uint16
	Bars                  uint16
}

// Engine is the loop-recording state machine. Construct with New; the
// zero value is not usable.
type Engine struct {
	state  state
	tracks []looptrack.Track

	nextTrackID uint64

	clock clock.Clock
	bus   audiobus.Bus
	log   *slog.Logger

	bpm  uint16
	bars uint16

	busClosed bool
	lastErr   error
}

// New constructs an Engine in the Idle state with no tracks. bpm and bars
// are assumed already clamped by the caller.
func New(clk clock.Clock, bus audiobus.Bus, bpm, bars uint16, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		state: idleState(),
		clock: clk,
		bus:   bus,
		bpm:   bpm,
		bars:  bars,
		log:   log,
	}
}

func (e *Engine) now() time.Duration {
	return e.clock.Now()
}

// State returns the current state's Kind, for callers that only need the
// tag without a full Snapshot.
func (e *Engine) State() Kind {
	return e.state.kind
}

// BusClosed reports whether the audio bus has been observed closed. Once
// true, the engine refuses further emissions.
func (e *Engine) BusClosed() bool {
	return e.busClosed
}

// LastError returns the most recent error observed from the audio bus,
// or nil. It does not clear on read; it is a diagnostic, not a queue.
func (e *Engine) LastError() error {
	return e.lastErr
}

// TrackSummaries returns a read-only summary of every sealed track, in
// creation order.
func (e *Engine) TrackSummaries() []TrackSummary {
	out := make([]TrackSummary, len(e.tracks))
	for i, t := range e.tracks {
		out[i] = TrackSummary{ID: t.ID, EventCount: len(t.Events), CreatedCycle: t.CreatedCycle}
	}
	return out
}

// Snapshot returns a read-only view of engine state for the UI.
func (e *Engine) Snapshot() LoopSnapshot {
	now := e.now()
	snap := LoopSnapshot{
		StateKind:  e.state.kind,
		TrackCount: len(e.tracks),
		BPM:        e.bpm,
		Bars:       e.bars,
	}

	switch e.state.kind {
	case Ready:
		snap.Countdown = e.state.countdownRemaining

	case Recording:
		pos := nonNegativeMs(now - e.state.startedAt)
		if e.state.loopLengthMs > 0 {
			pos %= e.state.loopLengthMs
		}
		snap.CyclePositionMs = pos
		if e.state.isOverdub {
			off := pos
			snap.ActiveOverdubOffsetMs = &off
		}

	case Playing:
		snap.CyclePositionMs = phaseMs(now-e.state.cycleStart, e.state.loopLengthMs)

	case Paused:
		snap.IsPaused = true
		snap.CyclePositionMs = e.state.snapshot.PlaybackOffsetMs
		if e.state.snapshot.OverdubOffsetMs != nil {
			off := *e.state.snapshot.OverdubOffsetMs
			snap.ActiveOverdubOffsetMs = &off
		}
	}

	return snap
}

// sendCommand forwards cmd to the audio bus, applying this package's failure
// semantics: a closed bus tears the engine down to Idle and is fatal to
// the caller; any other error is logged and returned for the caller to
// interpret (retry, drop, or ignore, depending on context).
func (e *Engine) sendCommand(cmd audiobus.Command) error {
	if e.busClosed {
		return audiobus.ErrClosed
	}

	err := e.bus.Send(cmd)
	if err == nil {
		return nil
	}

	e.lastErr = err
	if err == audiobus.ErrClosed {
		e.busClosed = true
		e.log.Error("loopengine: audio bus closed, tearing down", "err", err)
		e.tracks = nil
		e.state = idleState()
		return err
	}

	e.log.Warn("loopengine: audio bus send failed", "kind", cmd.Kind.String(), "err", err)
	return err
}

// cursorsForPhase returns, for every current track, the index of the
// first event whose offset is > phaseMs — i.e. "already fired" up to
// phaseMs, "not yet fired" after it. Used whenever the engine (re)enters
// Playing or an overdub Recording pass mid-cycle, so playback resumes
// from the correct point rather than replaying what already happened.
func (e *Engine) cursorsForPhase(phaseMs uint32) []int {
	cursors := make([]int, len(e.tracks))
	for i, tr := range e.tracks {
		idx := 0
		// Matches runSchedule's firing condition (OffsetMs <= phase): an
		// event exactly at the seed phase is treated as already fired, so
		// resuming right after it fired does not refire it.
		for idx < len(tr.Events) && tr.Events[idx].OffsetMs <= phaseMs {
			idx++
		}
		cursors[i] = idx
	}
	return cursors
}

// seedCursors computes the cursor set and cycle index for a fresh
// cycleStart at the current instant, so the very next scheduling pass
// neither replays already-passed events nor spuriously treats the seed
// itself as a cycle wrap.
func (e *Engine) seedCursors(cycleStart time.Duration, loopLengthMs uint32, now time.Duration) ([]int, int64) {
	if loopLengthMs == 0 {
		return make([]int, len(e.tracks)), 0
	}
	loopLenDur := time.Duration(loopLengthMs) * time.Millisecond
	elapsed := now - cycleStart
	if elapsed < 0 {
		elapsed = 0
	}
	k := int64(elapsed / loopLenDur)
	phase := uint32((elapsed % loopLenDur).Milliseconds())
	return e.cursorsForPhase(phase), k
}

// runSchedule fires every PlayPad due between the last scheduling pass
// and now, for tracks played back against cycleStart/loopLengthMs, using
// and mutating cursors/lastCycleIndex in place. It drives both the
// Playing scheduling pass and the additive base-layer playback that
// continues underneath an overdub pass.
func (e *Engine) runSchedule(cycleStart time.Duration, loopLengthMs uint32, cursors []int, lastCycleIndex *int64, now time.Duration) {
	if loopLengthMs == 0 || len(e.tracks) == 0 {
		return
	}

	loopLenDur := time.Duration(loopLengthMs) * time.Millisecond
	elapsed := now - cycleStart
	if elapsed < 0 {
		elapsed = 0
	}
	k := int64(elapsed / loopLenDur)
	phase := uint32((elapsed % loopLenDur).Milliseconds())

	if k != *lastCycleIndex {
		// Cycle wrap (possibly several, on a stalled frame): reset every
		// cursor to the start of the cycle we just landed in. Events from
		// skipped cycles are never visited, so they are dropped silently.
		*lastCycleIndex = k
		for i := range cursors {
			cursors[i] = 0
		}
	}

	for i, tr := range e.tracks {
		if i >= len(cursors) {
			continue
		}
		for cursors[i] < len(tr.Events) && tr.Events[cursors[i]].OffsetMs <= phase {
			ev := tr.Events[cursors[i]]
			if err := e.sendCommand(audiobus.Command{Kind: audiobus.PlayPad, Key: ev.PadKey}); err != nil {
				if err == audiobus.ErrClosed {
					return
				}
				// Transient failure: leave the cursor in place so the same
				// event is retried on the next Update call.
				return
			}
			cursors[i]++
		}
	}
}

func cycleIndexFor(elapsed time.Duration, loopLengthMs uint32) uint64 {
	if loopLengthMs == 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return uint64(elapsed/time.Millisecond) / uint64(loopLengthMs)
}

func nonNegativeMs(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}

func phaseMs(elapsed time.Duration, loopLengthMs uint32) uint32 {
	if loopLengthMs == 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	loopLenDur := time.Duration(loopLengthMs) * time.Millisecond
	return uint32((elapsed % loopLenDur).Milliseconds())
}

// HandleSpace dispatches the transport's single most-overloaded input,
// entirely by current state. ok reports whether a state transition
// occurred; err is non-nil only for a reported (not ignored) failure —
// a closed audio bus.
func (e *Engine) HandleSpace() (ok bool, err error) {
	now := e.now()

	switch e.state.kind {
	case Idle:
		e.state = readyState(4, now)
		return true, nil

	case Ready:
		e.state = idleState()
		return true, nil

	case Recording:
		if !e.state.isOverdub {
			e.log.Debug("loopengine: cancelling base take")
			e.state.pending.Reset()
			e.state = idleState()
			return true, nil
		}

		// Punch-out: seal the overdub pass and resume playback of all
		// tracks, including the one just sealed.
		elapsed := now - e.state.startedAt
		loopLengthMs := e.state.loopLengthMs
		createdCycle := cycleIndexFor(elapsed, loopLengthMs)
		track := e.state.pending.Seal(e.nextTrackID, createdCycle, loopLengthMs)
		e.nextTrackID++
		e.tracks = append(e.tracks, track)

		cycleStart := e.state.startedAt
		cursors, lastK := e.seedCursors(cycleStart, loopLengthMs, now)
		e.state = playingState(cycleStart, loopLengthMs, len(e.tracks))
		e.state.cursors = cursors
		e.state.lastCycleIndex = lastK
		return true, nil

	case Playing:
		phase := phaseMs(now-e.state.cycleStart, e.state.loopLengthMs)
		snap := PauseSnapshot{PlaybackOffsetMs: phase, WasRecording: false}
		e.state = pausedState(snap, true, e.state.loopLengthMs, nil)
		if sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.PauseAll}); sendErr == audiobus.ErrClosed {
			// The engine still transitions; the UI must reflect the
			// user's intent even if the bus could not be reached.
			return true, sendErr
		}
		return true, nil

	case Paused:
		loopLengthMs := e.state.loopLengthMs
		if !e.state.snapshot.WasRecording {
			offset := e.state.snapshot.PlaybackOffsetMs
			cycleStart := now - time.Duration(offset)*time.Millisecond
			cursors, lastK := e.seedCursors(cycleStart, loopLengthMs, now)
			e.state = playingState(cycleStart, loopLengthMs, len(e.tracks))
			e.state.cursors = cursors
			e.state.lastCycleIndex = lastK
			if sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.ResumeAll}); sendErr == audiobus.ErrClosed {
				return true, sendErr
			}
			return true, nil
		}

		// WasRecording: resume the overdub pass in progress when paused.
		// Reachable only by directly constructing a Paused state: this
		// dispatch table never pauses out of Recording (see DESIGN.md's
		// Open Question decision).
		var overdubOffset time.Duration
		if e.state.snapshot.OverdubOffsetMs != nil {
			overdubOffset = time.Duration(*e.state.snapshot.OverdubOffsetMs) * time.Millisecond
		}
		startedAt := now - overdubOffset
		cursors, lastK := e.seedCursors(startedAt, loopLengthMs, now)
		pending := e.state.pending
		e.state = recordingState(startedAt, loopLengthMs, true, pending)
		e.state.cursors = cursors
		e.state.lastCycleIndex = lastK
		if sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.ResumeAll}); sendErr == audiobus.ErrClosed {
			return true, sendErr
		}
		return true, nil
	}

	return false, nil
}

// HandlePad dispatches pad input by current state.
func (e *Engine) HandlePad(key rune) (ok bool, err error) {
	now := e.now()

	switch e.state.kind {
	case Idle, Ready, Paused:
		e.log.Debug("loopengine: ignoring pad input", "state", e.state.kind.String(), "pad", string(key))
		return false, nil

	case Recording:
		sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.PlayPad, Key: key})
		if sendErr == audiobus.ErrClosed {
			return false, sendErr
		}
		offset := nonNegativeMs(now - e.state.startedAt)
		e.state.pending.Append(key, offset, e.state.loopLengthMs)
		return true, nil

	case Playing:
		sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.PlayPad, Key: key})
		if sendErr == audiobus.ErrClosed {
			return false, sendErr
		}

		loopLengthMs := e.state.loopLengthMs
		loopLenDur := time.Duration(loopLengthMs) * time.Millisecond
		elapsed := now - e.state.cycleStart
		if elapsed < 0 {
			elapsed = 0
		}
		var k int64
		if loopLenDur > 0 {
			k = int64(elapsed / loopLenDur)
		}
		cycleStart := e.state.cycleStart + time.Duration(k)*loopLenDur

		cursors, lastK := e.seedCursors(cycleStart, loopLengthMs, now)
		e.state = recordingState(cycleStart, loopLengthMs, true, looptrack.NewBuilder())
		e.state.cursors = cursors
		e.state.lastCycleIndex = lastK
		e.state.pending.Append(key, nonNegativeMs(now-cycleStart), loopLengthMs)
		return true, nil
	}

	return false, nil
}

// HandleControlSpace implements the engine's hard-clear transition: any
// state to Idle, clearing tracks and in-flight capture, emitting
// StopAll — except from an already-empty Idle, where it is a no-op
// (see DESIGN.md).
func (e *Engine) HandleControlSpace() (ok bool, err error) {
	if e.state.kind == Idle && len(e.tracks) == 0 {
		return false, nil
	}

	sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.StopAll})
	e.tracks = nil
	e.state = idleState()

	if sendErr == audiobus.ErrClosed {
		return true, sendErr
	}
	return true, nil
}

// ResetForTempoChange clears all state for a tempo/meter change.
// bpm and bars are assumed already clamped by the caller.
func (e *Engine) ResetForTempoChange(bpm, bars uint16) (ok bool, err error) {
	sendErr := e.sendCommand(audiobus.Command{Kind: audiobus.StopAll})
	e.tracks = nil
	e.state = idleState()
	e.bpm = bpm
	e.bars = bars

	if sendErr == audiobus.ErrClosed {
		return true, sendErr
	}
	return true, nil
}

// Update is polled once per frame from the
// application's main loop. It must complete in microseconds; it performs
// no blocking I/O.
func (e *Engine) Update() error {
	now := e.now()

	switch e.state.kind {
	case Ready:
		interval := tempo.TickInterval(e.bpm)
		for e.state.kind == Ready && e.state.countdownRemaining > 0 && e.state.nextTickAt <= now {
			if err := e.sendCommand(audiobus.Command{Kind: audiobus.PlayMetronomeTick}); err != nil {
				if err == audiobus.ErrClosed {
					return err
				}
				// Metronome synthesis failure: log already happened in
				// sendCommand; keep ticking the countdown regardless.
			}

			e.state.countdownRemaining--
			e.state.nextTickAt += interval

			if e.state.countdownRemaining == 0 {
				startedAt := e.state.nextTickAt
				loopLengthMs := tempo.LoopLengthMs(e.bpm, e.bars)
				e.state = recordingState(startedAt, loopLengthMs, false, nil)
				e.state.cursors, e.state.lastCycleIndex = e.seedCursors(startedAt, loopLengthMs, now)
				break
			}
		}

	case Recording:
		if e.state.isOverdub {
			e.runSchedule(e.state.startedAt, e.state.loopLengthMs, e.state.cursors, &e.state.lastCycleIndex, now)
			if e.busClosed {
				return audiobus.ErrClosed
			}
		}

		elapsed := nonNegativeMs(now - e.state.startedAt)
		if elapsed >= e.state.loopLengthMs {
			loopLengthMs := e.state.loopLengthMs
			createdCycle := cycleIndexFor(now-e.state.startedAt, loopLengthMs)
			track := e.state.pending.Seal(e.nextTrackID, createdCycle, loopLengthMs)
			e.nextTrackID++
			e.tracks = append(e.tracks, track)

			cycleStart := e.state.startedAt + time.Duration(loopLengthMs)*time.Millisecond
			cursors, lastK := e.seedCursors(cycleStart, loopLengthMs, now)
			e.state = playingState(cycleStart, loopLengthMs, len(e.tracks))
			e.state.cursors = cursors
			e.state.lastCycleIndex = lastK
		}

	case Playing:
		e.runSchedule(e.state.cycleStart, e.state.loopLengthMs, e.state.cursors, &e.state.lastCycleIndex, now)
		if e.busClosed {
			return audiobus.ErrClosed
		}

	case Paused, Idle:
		// No work.
	}

	return nil
}
