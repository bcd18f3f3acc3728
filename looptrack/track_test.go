package looptrack

import "testing"

func TestBuilderAppendAndSeal(t *testing.T) {
	b := NewBuilder()
	b.Append('q', 100, 2000)
	b.Append('w', 1000, 2000)

	if got := b.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	track := b.Seal(1, 0, 2000)
	if track.ID != 1 {
		t.Errorf("Seal() ID = %d, want 1", track.ID)
	}
	if len(track.Events) != 2 {
		t.Fatalf("Seal() produced %d events, want 2", len(track.Events))
	}
	if track.Events[0] != (Event{PadKey: 'q', OffsetMs: 100}) {
		t.Errorf("Seal() Events[0] = %+v, want q@100", track.Events[0])
	}
	if track.Events[1] != (Event{PadKey: 'w', OffsetMs: 1000}) {
		t.Errorf("Seal() Events[1] = %+v, want w@1000", track.Events[1])
	}

	// Builder is empty after sealing.
	if got := b.Len(); got != 0 {
		t.Errorf("Len() after Seal() = %d, want 0", got)
	}
}

func TestBuilderAppendClampsOffset(t *testing.T) {
	b := NewBuilder()
	b.Append('q', 5000, 2000)
	track := b.Seal(1, 0, 2000)

	if len(track.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(track.Events))
	}
	if track.Events[0].OffsetMs >= 2000 {
		t.Errorf("clamped offset %d not < loop length 2000", track.Events[0].OffsetMs)
	}
}

func TestBuilderSealDropsOutOfBoundsEvents(t *testing.T) {
	b := NewBuilder()
	b.events = append(b.events, Event{PadKey: 'e', OffsetMs: 2500})
	b.events = append(b.events, Event{PadKey: 'r', OffsetMs: 100})

	track := b.Seal(2, 1, 2000)
	if len(track.Events) != 1 {
		t.Fatalf("Seal() kept %d events, want 1 (one out of bounds)", len(track.Events))
	}
	if track.Events[0].PadKey != 'r' {
		t.Errorf("Seal() kept wrong event: %+v", track.Events[0])
	}
}

func TestBuilderReset(t *testing.T) {
	b := NewBuilder()
	b.Append('q', 0, 2000)
	b.Reset()
	if got := b.Len(); got != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", got)
	}
}

func TestBuilderPreservesArrivalOrderWithinSameMillisecond(t *testing.T) {
	b := NewBuilder()
	b.Append('q', 100, 2000)
	b.Append('w', 100, 2000)
	b.Append('e', 100, 2000)

	track := b.Seal(1, 0, 2000)
	want := []rune{'q', 'w', 'e'}
	for i, e := range track.Events {
		if e.PadKey != want[i] {
			t.Errorf("Events[%d].PadKey = %q, want %q", i, e.PadKey, want[i])
		}
	}
}
