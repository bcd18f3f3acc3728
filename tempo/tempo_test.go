package tempo

import (
	"testing"
	"time"
)

func TestLoopLengthMs(t *testing.T) {
	tests := []struct {
		name string
		bpm  uint16
		bars uint16
		want uint32
	}{
		{"120bpm 1bar", 120, 1, 2000},
		{"120bpm 2bars", 120, 2, 4000},
		{"60bpm 1bar", 60, 1, 4000},
		{"140bpm 2bars", 140, 2, 3428},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoopLengthMs(tt.bpm, tt.bars); got != tt.want {
				t.Errorf("LoopLengthMs(%d, %d) = %d, want %d", tt.bpm, tt.bars, got, tt.want)
			}
		})
	}
}

func TestTickInterval(t *testing.T) {
	if got := TickInterval(120); got != 500*time.Millisecond {
		t.Errorf("TickInterval(120) = %v, want 500ms", got)
	}
	if got := TickInterval(60); got != time.Second {
		t.Errorf("TickInterval(60) = %v, want 1s", got)
	}
}

func TestLoopLength(t *testing.T) {
	if got := LoopLength(120, 1); got != 2*time.Second {
		t.Errorf("LoopLength(120, 1) = %v, want 2s", got)
	}
}
