package audiobus

import (
	"log/slog"
	"sync"
)

// Queue decouples a possibly-slow Bus (e.g. a MIDI port) from the loop
// engine's caller: Send enqueues onto a buffered channel and returns
// immediately, never blocking on the underlying sink. A single goroutine
// drains the channel in FIFO order and forwards to sink: a single
// producer, single consumer, non-blocking send.
type Queue struct {
	sink     Bus
	commands chan Command
	done     chan struct{}
	log      *slog.Logger
	once     sync.Once
}

// NewQueue returns a Queue forwarding to sink, with the given channel
// capacity. A full queue makes Send return ErrBackpressure rather than
// block.
func NewQueue(sink Bus, capacity int, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		sink:     sink,
		commands: make(chan Command, capacity),
		done:     make(chan struct{}),
		log:      log,
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for cmd := range q.commands {
		if err := q.sink.Send(cmd); err != nil {
			q.log.Warn("audiobus: sink rejected command", "kind", cmd.Kind.String(), "err", err)
		}
	}
}

// Send implements Bus. It never blocks: if the channel is full it returns
// ErrBackpressure immediately.
func (q *Queue) Send(cmd Command) error {
	select {
	case q.commands <- cmd:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close stops accepting new commands and waits for the consumer goroutine
// to drain what's already queued. Calling it again is a no-op.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.commands) })
	<-q.done
}
