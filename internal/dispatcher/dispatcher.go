// Package dispatcher routes typed host messages to registered handlers.
package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrQueueFull   = errors.New("queue full")
	ErrClosed      = errors.New("dispatcher closed")
)

// Event is one message received from a host connection.
type Event struct {
	Type      string
	Payload   json.RawMessage
	Session   string
	Timestamp time.Time
}

// Decode unmarshals the payload into v. An empty payload leaves v as is.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

type route struct {
	queue    int
	blocking bool
	logged   bool
}

// Buffered runs the handler on its own goroutine behind a queue of size
// entries. Queued events are handled in arrival order and Dispatch
// returns Queued.
func Buffered(size int) Option {
	return func(r *route) { r.queue = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of
// failing with ErrQueueFull.
func Blocking() Option {
	return func(r *route) { r.blocking = true }
}

// Logged logs each event at debug level and failures at error level.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

// Queued is the result of a buffered dispatch.
const Queued = "queued"

// Dispatcher routes events to registered handlers. Register all handlers
// before the first Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments

	mu     sync.RWMutex
	queues map[string]chan Event
	wg     sync.WaitGroup
	closed bool
}

// New creates a Dispatcher that records metrics on the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}
	m, err := newInstruments(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register adds the handler for typ, replacing any earlier one.
func (d *Dispatcher) Register(typ string, h HandlerFunc, opts ...Option) {
	var r route
	for _, opt := range opts {
		opt(&r)
	}

	if r.logged {
		h = d.logged(typ, h)
	}
	if r.queue > 0 {
		h = d.queued(typ, r.queue, r.blocking, h)
	} else {
		h = d.measured(typ, h)
	}
	d.handlers[typ] = h
}

// Dispatch routes an event to its handler, stamping it with the current
// time when it has none.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, e.Type)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler reports whether typ has a handler.
func (d *Dispatcher) HasHandler(typ string) bool {
	_, ok := d.handlers[typ]
	return ok
}

// Close drains every queue, waits for the queued events to be handled and
// unregisters the metric callback. Buffered dispatches after Close fail
// with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	return d.metrics.close()
}

func (d *Dispatcher) queueDepths(observe func(typ string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for typ, q := range d.queues {
		observe(typ, len(q))
	}
}

func (d *Dispatcher) measured(typ string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		result, err := h(e)
		d.metrics.handled(typ, e.Timestamp, err)
		return result, err
	}
}

func (d *Dispatcher) queued(typ string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)

	d.mu.Lock()
	d.queues[typ] = q
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range q {
			_, err := h(e)
			d.metrics.handled(typ, e.Timestamp, err)
		}
	}()

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, typ)
		}
		if blocking {
			q <- e
			return Queued, nil
		}
		select {
		case q <- e:
			return Queued, nil
		default:
			d.metrics.drop(typ)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, typ)
		}
	}
}

func (d *Dispatcher) logged(typ string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling message", "type", typ, "session", e.Session, "bytes", len(e.Payload))

		result, err := h(e)
		if err != nil {
			d.logger.Error("message failed", "type", typ, "session", e.Session, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("message complete", "type", typ, "session", e.Session, "duration", time.Since(start))
		return result, nil
	}
}
