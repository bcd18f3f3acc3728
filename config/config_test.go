package config

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"within range", Config{BPM: 120, Bars: 4}, Config{BPM: 120, Bars: 4}},
		{"bpm too low", Config{BPM: 5, Bars: 1}, Config{BPM: MinBPM, Bars: 1}},
		{"bpm too high", Config{BPM: 1000, Bars: 1}, Config{BPM: MaxBPM, Bars: 1}},
		{"bars too low", Config{BPM: 120, Bars: 0}, Config{BPM: 120, Bars: MinBars}},
		{"bars too high", Config{BPM: 120, Bars: 500}, Config{BPM: 120, Bars: MaxBars}},
		{"boundary values", Config{BPM: MinBPM, Bars: MaxBars}, Config{BPM: MinBPM, Bars: MaxBars}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Clamp()
			if got != tt.want {
				t.Errorf("Clamp() on %+v = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if d.BPM != 120 || d.Bars != 1 {
		t.Errorf("Default() = %+v, want {BPM:120 Bars:1}", d)
	}
	d.Clamp()
	if d != Default() {
		t.Errorf("Default() is not already in clamped range: %+v", d)
	}
}
