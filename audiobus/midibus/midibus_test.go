package midibus

import "testing"

// TestListPorts only checks that ListPorts returns without error; the
// actual port list depends on what MIDI devices the host has attached.
func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts() unexpected error: %v", err)
	}
	if ports == nil {
		t.Error("ListPorts() returned nil instead of an empty slice")
	}
}

// TestOpenInvalidPort checks that an out-of-range port index is rejected
// rather than silently producing an unusable Bus.
func TestOpenInvalidPort(t *testing.T) {
	_, err := Open(9999, PadNoteMap{}, nil)
	if err == nil {
		t.Error("Open(9999, ...) should return an error for an invalid port index")
	}
}
