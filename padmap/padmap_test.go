package padmap

import (
	"os"
	"testing"
)

func TestDefaultPadMap(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    map[rune]string
	}{
		{"empty", nil, map[rune]string{}},
		{"fewer than eight", []string{"kick", "snare"}, map[rune]string{'Q': "kick", 'W': "snare"}},
		{
			"exactly eight",
			[]string{"kick", "snare", "hat", "clap", "tom1", "tom2", "crash", "ride"},
			map[rune]string{
				'Q': "kick", 'W': "snare", 'E': "hat", 'R': "clap",
				'T': "tom1", 'Y': "tom2", 'U': "crash", 'I': "ride",
			},
		},
		{
			"more than eight ignores the rest",
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
			map[rune]string{
				'Q': "a", 'W': "b", 'E': "c", 'R': "d",
				'T': "e", 'Y': "f", 'U': "g", 'I': "h",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultPadMap(tt.samples).Entries
			if len(got) != len(tt.want) {
				t.Fatalf("DefaultPadMap(%v) = %v, want %v", tt.samples, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("DefaultPadMap(%v)[%q] = %q, want %q", tt.samples, k, got[k], v)
				}
			}
		})
	}
}

func TestValidateRejectsControlRune(t *testing.T) {
	m := PadMap{Entries: map[rune]string{'\n': "kick"}}
	if err := m.Validate(); err == nil {
		t.Error("Validate() = nil for a control-rune pad key, want error")
	}
}

func TestDuplicateSamples(t *testing.T) {
	m := PadMap{Entries: map[rune]string{'Q': "kick", 'W': "kick", 'E': "snare"}}
	dups := m.DuplicateSamples()
	if len(dups) != 1 || dups[0] != "kick" {
		t.Errorf("DuplicateSamples() = %v, want [kick]", dups)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	want := DefaultPadMap([]string{"kick", "snare", "hat"})
	if err := Save("house-kit", want); err != nil {
		t.Fatalf("Save() = %v, want nil", err)
	}

	got, err := Load("house-kit")
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if len(got.Entries) != len(want.Entries) {
		t.Fatalf("Load() = %+v, want %+v", got.Entries, want.Entries)
	}
	for k, v := range want.Entries {
		if got.Entries[k] != v {
			t.Errorf("Load().Entries[%q] = %q, want %q", k, got.Entries[k], v)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := Load("missing"); err == nil {
		t.Error("Load(\"missing\") = nil error, want a not-found error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"house kit", "house_kit"},
		{"../../etc/passwd", "etcpasswd"},
		{"", "unnamed"},
		{"!!!", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
