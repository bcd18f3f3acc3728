// Package padmap loads and saves the mapping from a pad key character to
// a sample name, the external configuration surface a LoopEngine's
// PlayPad commands are eventually routed through. The engine itself
// never imports this package; only the CLI and the assistant do.
package padmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// PadsDir is the directory pad-mapping JSON files are read from and
// written to.
const PadsDir = "pads"

// DefaultPadKeys is the default 8-pad layout.
var DefaultPadKeys = []rune{'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I'}

// PadMap assigns a sample name to each pad key.
type PadMap struct {
	Entries map[rune]string
}

// padMapFile is the JSON-serializable form of a PadMap: a flat list
// keeps the file readable and ordered, instead of an object keyed by a
// single-character string.
type padMapFile struct {
	Name    string        `json:"name"`
	Entries []padMapEntry `json:"entries"`
}

type padMapEntry struct {
	Pad    string `json:"pad"`
	Sample string `json:"sample"`
}

// DefaultPadMap assigns the first up to 8 sampleNames to Q W E R T Y U I,
// in order. Fewer than 8 names leaves the remaining keys unmapped; more
// than 8 names are ignored beyond the eighth.
func DefaultPadMap(sampleNames []string) PadMap {
	m := PadMap{Entries: make(map[rune]string)}
	for i, key := range DefaultPadKeys {
		if i >= len(sampleNames) {
			break
		}
		m.Entries[key] = sampleNames[i]
	}
	return m
}

// Validate checks that every pad key is a single printable, non-control
// rune, matching the constraint on a captured Event's PadKey. Duplicate sample
// assignments across keys are legal (the same sample may deliberately be
// mapped to more than one pad) and are not reported as errors here;
// callers that want to flag likely-typo duplicates should use
// DuplicateSamples.
func (m PadMap) Validate() error {
	for k := range m.Entries {
		if !unicode.IsPrint(k) || unicode.IsControl(k) {
			return fmt.Errorf("padmap: pad key %q is not a single printable character", k)
		}
	}
	return nil
}

// DuplicateSamples returns every sample name assigned to more than one
// pad key, for callers that want to warn about likely-typo duplicates
// without rejecting them.
func (m PadMap) DuplicateSamples() []string {
	counts := make(map[string]int, len(m.Entries))
	for _, sample := range m.Entries {
		counts[sample]++
	}
	var dups []string
	for sample, n := range counts {
		if n > 1 {
			dups = append(dups, sample)
		}
	}
	return dups
}

// Load reads a pad map from pads/<name>.json.
func Load(name string) (PadMap, error) {
	path := filepath.Join(PadsDir, sanitizeFilename(name)+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PadMap{}, fmt.Errorf("padmap: %q not found", name)
		}
		return PadMap{}, fmt.Errorf("padmap: read %s: %w", path, err)
	}

	var pf padMapFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return PadMap{}, fmt.Errorf("padmap: parse %s: %w", path, err)
	}

	m := PadMap{Entries: make(map[rune]string, len(pf.Entries))}
	for _, e := range pf.Entries {
		keys := []rune(e.Pad)
		if len(keys) != 1 {
			return PadMap{}, fmt.Errorf("padmap: entry %q is not a single character", e.Pad)
		}
		m.Entries[keys[0]] = e.Sample
	}

	if err := m.Validate(); err != nil {
		return PadMap{}, err
	}
	return m, nil
}

// Save writes m to pads/<name>.json, creating the directory if needed.
func Save(name string, m PadMap) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(PadsDir, 0755); err != nil {
		return fmt.Errorf("padmap: create %s: %w", PadsDir, err)
	}

	pf := padMapFile{Name: name, Entries: make([]padMapEntry, 0, len(m.Entries))}
	for _, key := range DefaultPadKeys {
		if sample, ok := m.Entries[key]; ok {
			pf.Entries = append(pf.Entries, padMapEntry{Pad: string(key), Sample: sample})
		}
	}
	// Any non-default keys (a caller-extended layout) follow in map
	// iteration order; their relative order among themselves is not
	// meaningful.
	seen := make(map[rune]bool, len(DefaultPadKeys))
	for _, key := range DefaultPadKeys {
		seen[key] = true
	}
	for key, sample := range m.Entries {
		if !seen[key] {
			pf.Entries = append(pf.Entries, padMapEntry{Pad: string(key), Sample: sample})
		}
	}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("padmap: marshal: %w", err)
	}

	path := filepath.Join(PadsDir, sanitizeFilename(name)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("padmap: write %s: %w", path, err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "unnamed"
	}
	return sb.String()
}
