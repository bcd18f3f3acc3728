package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"github.com/shotatanemura/termigroove/assistant"
	"github.com/shotatanemura/termigroove/audiobus"
	"github.com/shotatanemura/termigroove/audiobus/midibus"
	"github.com/shotatanemura/termigroove/clock"
	"github.com/shotatanemura/termigroove/config"
	"github.com/shotatanemura/termigroove/logging"
	"github.com/shotatanemura/termigroove/loopengine"
	"github.com/shotatanemura/termigroove/padmap"
)

// updateInterval is the application frame rate the engine is polled at.
const updateInterval = 5 * time.Millisecond

// defaultDemoSamples backs a built-in demo pad map when -pads is omitted.
var defaultDemoSamples = []string{"kick", "snare", "hat-closed", "hat-open", "clap", "tom-low", "tom-high", "crash"}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// session bundles everything a command line needs to act on.
type session struct {
	eng  *loopengine.Engine
	pads padmap.PadMap
	ai   *assistant.Client // nil if no API key is configured
	log  *slog.Logger
}

// dispatch parses and executes a single command line. shouldExit reports
// an explicit quit/exit request.
func (s *session) dispatch(line string) (shouldExit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "#") {
		fmt.Println(line)
		return false, nil
	}

	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "quit", "exit":
		return true, nil

	case "space":
		ok, sendErr := s.eng.HandleSpace()
		s.reportTransition("space", ok, sendErr)
		return false, sendErr

	case "cspace":
		ok, sendErr := s.eng.HandleControlSpace()
		s.reportTransition("cspace", ok, sendErr)
		return false, sendErr

	case "tempo":
		return false, s.handleTempo(fields)

	case "status":
		if len(fields) > 1 && fields[1] == "--ai" {
			return false, s.handleExplain()
		}
		s.printStatus()
		return false, nil

	case "tracks":
		s.printTracks()
		return false, nil

	case "pads":
		s.printPads()
		return false, nil

	case "assist":
		return false, s.handleAssist(fields)

	case "help":
		printHelp()
		return false, nil

	default:
		if len([]rune(cmd)) == 1 {
			key := []rune(line)[0]
			ok, sendErr := s.eng.HandlePad(key)
			s.reportTransition("pad "+string(key), ok, sendErr)
			return false, sendErr
		}
		return false, fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (s *session) reportTransition(what string, ok bool, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if !ok {
		s.log.Debug("ignored input", "command", what, "state", s.eng.State().String())
		return
	}
	fmt.Printf("%s -> %s\n", what, s.eng.State().String())
}

func (s *session) handleTempo(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("usage: tempo <bpm> <bars>")
	}
	bpm, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("invalid bpm: %s", fields[1])
	}
	bars, err := strconv.Atoi(fields[2])
	if err != nil {
		return fmt.Errorf("invalid bars: %s", fields[2])
	}

	cfg := config.Config{BPM: uint16(bpm), Bars: uint16(bars)}
	cfg.Clamp()
	if uint16(bpm) != cfg.BPM || uint16(bars) != cfg.Bars {
		fmt.Printf("tempo clamped to %d bpm, %d bars\n", cfg.BPM, cfg.Bars)
	}

	ok, sendErr := s.eng.ResetForTempoChange(cfg.BPM, cfg.Bars)
	s.reportTransition("tempo", ok, sendErr)
	return sendErr
}

func (s *session) printStatus() {
	snap := s.eng.Snapshot()
	fmt.Printf("state=%s bpm=%d bars=%d tracks=%d cycle_position_ms=%d paused=%v",
		snap.StateKind, snap.BPM, snap.Bars, snap.TrackCount, snap.CyclePositionMs, snap.IsPaused)
	if snap.StateKind == loopengine.Ready {
		fmt.Printf(" countdown=%d", snap.Countdown)
	}
	if snap.ActiveOverdubOffsetMs != nil {
		fmt.Printf(" overdub_offset_ms=%d", *snap.ActiveOverdubOffsetMs)
	}
	fmt.Println()
}

func (s *session) printTracks() {
	summaries := s.eng.TrackSummaries()
	if len(summaries) == 0 {
		fmt.Println("no tracks recorded yet")
		return
	}
	for _, t := range summaries {
		fmt.Printf("track %d: %d events, recorded on cycle %d\n", t.ID, t.EventCount, t.CreatedCycle)
	}
}

func (s *session) printPads() {
	for _, key := range padmap.DefaultPadKeys {
		if sample, ok := s.pads.Entries[key]; ok {
			fmt.Printf("%c -> %s\n", key, sample)
		}
	}
}

// handleExplain backs "status --ai": it never mutates engine state, only
// narrates the current snapshot.
func (s *session) handleExplain() error {
	if s.ai == nil {
		return fmt.Errorf("status --ai: no ANTHROPIC_API_KEY configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := s.eng.Snapshot()
	summaries := s.eng.TrackSummaries()
	lines := make([]string, len(summaries))
	for i, t := range summaries {
		lines[i] = fmt.Sprintf("track %d: %d events", t.ID, t.EventCount)
	}

	text, err := s.ai.ExplainLoop(ctx, snap, lines)
	if err != nil {
		s.log.Warn("status --ai request failed", "err", err)
		return fmt.Errorf("status --ai: %w", err)
	}
	fmt.Println(text)
	return nil
}

// handleAssist backs "assist <description>": it asks the assistant to pick
// samples from the demo library for the described kit, saves the result
// as pads/suggested.json, and updates the in-session pad listing. It does
// not hot-swap the already-open MIDI bus's note mapping; the suggestion
// takes effect on the next launch via "-pads suggested".
func (s *session) handleAssist(fields []string) error {
	if s.ai == nil {
		return fmt.Errorf("assist: no ANTHROPIC_API_KEY configured")
	}
	if len(fields) < 2 {
		return fmt.Errorf("usage: assist <description>")
	}
	prompt := strings.Join(fields[1:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	suggested, err := s.ai.SuggestPadMap(ctx, prompt, defaultDemoSamples)
	if err != nil {
		s.log.Warn("assist request failed", "err", err)
		return fmt.Errorf("assist: %w", err)
	}

	if err := padmap.Save("suggested", suggested); err != nil {
		return fmt.Errorf("assist: saving suggestion: %w", err)
	}
	s.pads = suggested

	fmt.Println("suggested pad map (saved to pads/suggested.json, relaunch with -pads suggested to use it):")
	s.printPads()
	return nil
}

func printHelp() {
	fmt.Println(`Commands:
  space                 toggle count-in / cancel / punch-out / pause / resume
  cspace                clear everything and return to Idle
  <pad key>             trigger/capture a pad hit, e.g. "Q"
  tempo <bpm> <bars>    change tempo and meter (clamped to valid ranges)
  status                print a snapshot of the current state
  status --ai           ask the assistant to narrate the current state
  tracks                list recorded tracks
  pads                  list the current pad-to-sample assignments
  assist <description>  ask the assistant to suggest a pad map
  quit, exit            leave TermiGroove`)
}

// produceBatchLines scans r for commands, one per line, skipping blank
// lines, echoing "#" comments directly and sending everything else to out.
// It never touches the engine: only the event loop goroutine reading
// out does that. closeFn, if non-nil, is called once r is exhausted
// (used to close a script file; stdin is left open).
func produceBatchLines(r io.Reader, out chan<- string, closeFn func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fmt.Println(line)
			continue
		}
		fmt.Println(">", line)
		out <- line
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
	if closeFn != nil {
		closeFn()
	}
	close(out)
}

// produceReadlineLines reads interactive lines one at a time, sending
// each to out. It owns the readline prompt entirely and never touches
// the engine, so it runs safely alongside the event loop goroutine.
func produceReadlineLines(rl *readline.Instance, out chan<- string) {
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			close(out)
			return
		}
		out <- line
	}
}

// runEventLoop is the single goroutine allowed to touch eng: it polls
// the engine once per updateInterval and dispatches every line that
// arrives on lines, so Update and the handle_*-driven dispatch calls
// never run concurrently. This mirrors a single-threaded event loop
// polling terminal events and ticking playback off the same thread.
//
// If keepRunningAfterInputEnds is false (interactive mode), lines
// closing ends the loop once cleanup runs. If true (script/batch
// mode), the loop keeps ticking the engine after input is exhausted,
// until an explicit exit/quit command, a SIGINT/SIGTERM, or a closed
// audio bus ends the process.
func runEventLoop(eng *loopengine.Engine, s *session, lines <-chan string, sigChan <-chan os.Signal, cleanup func(), keepRunningAfterInputEnds bool) {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	hadErrors := false
	announcedInputDone := false

	for {
		select {
		case <-ticker.C:
			if err := eng.Update(); err != nil {
				s.log.Error("engine update failed, audio bus is gone", "err", err)
				cleanup()
				os.Exit(1)
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				if !keepRunningAfterInputEnds {
					cleanup()
					return
				}
				if !announcedInputDone {
					fmt.Println("\nInput completed. Looping continues. Press Ctrl+C to exit.")
					announcedInputDone = true
				}
				continue
			}
			shouldExit, err := s.dispatch(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				hadErrors = true
			}
			if shouldExit {
				cleanup()
				if hadErrors {
					os.Exit(1)
				}
				os.Exit(0)
			}

		case <-sigChan:
			fmt.Println("\nShutting down gracefully...")
			cleanup()
			os.Exit(0)
		}
	}
}

// padNoteMapFrom assigns each pad key in m an ascending MIDI note number
// starting at 60, in the default layout's order followed by any
// caller-extended keys in sorted order, so the assignment is
// deterministic across runs of the same pad map.
func padNoteMapFrom(m padmap.PadMap) midibus.PadNoteMap {
	notes := make(midibus.PadNoteMap, len(m.Entries))
	seen := make(map[rune]bool, len(m.Entries))
	next := uint8(60)

	assign := func(key rune) {
		if _, ok := m.Entries[key]; ok && !seen[key] {
			notes[key] = next
			seen[key] = true
			next++
		}
	}
	for _, key := range padmap.DefaultPadKeys {
		assign(key)
	}

	var extra []rune
	for key := range m.Entries {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, key := range extra {
		assign(key)
	}

	return notes
}

func loadPadMap(path string) padmap.PadMap {
	if path != "" {
		m, err := padmap.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading pad map %q: %v\n", path, err)
			os.Exit(2)
		}
		return m
	}
	return padmap.DefaultPadMap(defaultDemoSamples)
}

func main() {
	scriptFile := flag.String("script", "", "execute commands from file")
	padsFile := flag.String("pads", "", "load a pad map by name from pads/<name>.json")
	flag.Parse()

	if err := logging.InitLogger("info"); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.Logger()

	pads := loadPadMap(*padsFile)
	if dups := pads.DuplicateSamples(); len(dups) > 0 {
		log.Debug("pad map assigns the same sample to multiple pads", "samples", dups)
	}

	ports, err := midibus.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing MIDI ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Fprintf(os.Stderr, "No MIDI output ports found\n")
		os.Exit(1)
	}
	fmt.Printf("Using MIDI port 0: %s\n", ports[0])

	bus, err := midibus.Open(0, padNoteMapFrom(pads), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening MIDI port: %v\n", err)
		os.Exit(1)
	}
	queue := audiobus.NewQueue(bus, 64, log)

	cfg := config.Default()
	eng := loopengine.New(clock.NewReal(), queue, cfg.BPM, cfg.Bars, log)

	var ai *assistant.Client
	if aiClient, err := assistant.NewFromEnv(); err != nil {
		log.Debug("assistant unavailable", "err", err)
	} else {
		ai = aiClient
	}

	s := &session{eng: eng, pads: pads, ai: ai, log: log}

	cleanup := func() {
		eng.HandleControlSpace()
		queue.Close()
		bus.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("TermiGroove ready. Type 'help' for commands, 'quit' to exit.")
	fmt.Println()

	if *scriptFile != "" {
		f, err := os.Open(*scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script file: %v\n", err)
			os.Exit(2)
		}
		lines := make(chan string)
		go produceBatchLines(f, lines, func() { f.Close() })
		runEventLoop(eng, s, lines, sigChan, cleanup, true)
		return
	}

	if isTerminal() {
		rl, err := readline.New("termigroove> ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating readline: %v\n", err)
			os.Exit(1)
		}
		defer rl.Close()

		lines := make(chan string)
		go produceReadlineLines(rl, lines)
		runEventLoop(eng, s, lines, sigChan, cleanup, false)
	} else {
		lines := make(chan string)
		go produceBatchLines(os.Stdin, lines, nil)
		runEventLoop(eng, s, lines, sigChan, cleanup, true)
		return
	}

	fmt.Println("Goodbye!")
}
