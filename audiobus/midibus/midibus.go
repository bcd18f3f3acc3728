// Package midibus is the production audiobus.Bus adapter: it turns
// AudioCommand traffic into MIDI messages for an outboard sampler/DAW,
// since TermiGroove's own sample decode/mix is out of scope.
// It is adapted from iltempo-interplay's midi package, generalized from
// "one sequencer pattern" to "one audio-command stream."
package midibus

import (
	"fmt"
	"log/slog"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // auto-register RtMIDI driver

	"github.com/shotatanemura/termigroove/audiobus"
)

const (
	padChannel       = 0
	metronomeChannel = 9 // conventional percussion channel
	padVelocity      = 100
	metronomeNote    = 37 // side stick, a common metronome-click voice
	metronomeGate    = 40 * time.Millisecond
	sustainCC        = 64
	allNotesOffCC    = 123
)

// ListPorts returns the names of available MIDI output ports.
func ListPorts() ([]string, error) {
	ports := gomidi.GetOutPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// PadNoteMap assigns each pad key a MIDI note number to trigger on an
// outboard device. Keys absent from the map are ignored with a logged
// warning (pad-trigger failures never block playback).
type PadNoteMap map[rune]uint8

// Bus sends AudioCommands as MIDI messages over a single output port. It
// implements audiobus.Bus. The zero value is not usable; construct with
// Open.
type Bus struct {
	port    drivers.Out
	send    func(msg gomidi.Message) error
	padNote PadNoteMap
	log     *slog.Logger
	closed  bool
}

// Open opens MIDI output port portIndex and returns a Bus ready to
// accept commands.
func Open(portIndex int, padNote PadNoteMap, log *slog.Logger) (*Bus, error) {
	port, err := gomidi.OutPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("midibus: open port %d: %w", portIndex, err)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("midibus: create sender: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Bus{port: port, send: send, padNote: padNote, log: log}, nil
}

// Close closes the underlying MIDI port.
func (b *Bus) Close() error {
	b.closed = true
	return b.port.Close()
}

// Send implements audiobus.Bus.
func (b *Bus) Send(cmd audiobus.Command) error {
	if b.closed {
		return audiobus.ErrClosed
	}

	switch cmd.Kind {
	case audiobus.PlayPad:
		note, ok := b.padNote[cmd.Key]
		if !ok {
			b.log.Warn("midibus: no MIDI note mapped for pad", "pad", string(cmd.Key))
			return nil
		}
		return b.send(gomidi.NoteOn(padChannel, note, padVelocity))

	case audiobus.PlayMetronomeTick:
		if err := b.send(gomidi.NoteOn(metronomeChannel, metronomeNote, padVelocity)); err != nil {
			return err
		}
		// The click's duration is the gate between note-on and note-off; the
		// off is sent off the consumer goroutine so it never delays the next
		// queued command.
		go func() {
			time.Sleep(metronomeGate)
			if sendErr := b.send(gomidi.NoteOff(metronomeChannel, metronomeNote)); sendErr != nil {
				b.log.Warn("midibus: metronome note-off failed", "err", sendErr)
			}
		}()
		return nil

	case audiobus.PauseAll:
		return b.send(gomidi.ControlChange(padChannel, sustainCC, 0))

	case audiobus.ResumeAll:
		return b.send(gomidi.ControlChange(padChannel, sustainCC, 127))

	case audiobus.StopAll:
		if err := b.send(gomidi.ControlChange(padChannel, allNotesOffCC, 0)); err != nil {
			return err
		}
		return b.send(gomidi.ControlChange(metronomeChannel, allNotesOffCC, 0))

	default:
		return fmt.Errorf("midibus: unknown command kind %v", cmd.Kind)
	}
}
