// Package tempo holds the pure tempo-derived arithmetic shared by the
// loop engine and its callers: loop length and metronome tick interval.
package tempo

import "time"

// LoopLengthMs returns the duration of one loop cycle in milliseconds for
// the given tempo: bars * 4 * 60_000 / bpm.
func LoopLengthMs(bpm, bars uint16) uint32 {
	return uint32(uint64(bars) * 4 * 60_000 / uint64(bpm))
}

// TickInterval returns the spacing between count-in metronome ticks:
// 60_000 / bpm milliseconds, one quarter note.
func TickInterval(bpm uint16) time.Duration {
	return time.Duration(60_000/uint64(bpm)) * time.Millisecond
}

// LoopLength returns LoopLengthMs as a time.Duration, for callers that
// work directly in time.Duration rather than raw milliseconds.
func LoopLength(bpm, bars uint16) time.Duration {
	return time.Duration(LoopLengthMs(bpm, bars)) * time.Millisecond
}
