package events

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Kind names a notification a view emits.
type Kind string

const (
	Create       Kind = "create"
	Close        Kind = "close"
	Load         Kind = "load"
	Select       Kind = "select"
	Hover        Kind = "hover"
	PointerDown  Kind = "pointerdown"
	PointerMove  Kind = "pointermove"
	PointerUp    Kind = "pointerup"
	PointerEnter Kind = "pointerenter"
	PointerLeave Kind = "pointerleave"
)

var allKinds = []Kind{
	Create, Close, Load, Select, Hover,
	PointerDown, PointerMove, PointerUp, PointerEnter, PointerLeave,
}

// Kinds returns every notification kind.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind resolves a kind name. "over" is accepted for Hover.
func ParseKind(s string) (Kind, error) {
	if s == "over" {
		return Hover, nil
	}
	for _, k := range allKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %s", s)
}

// Token identifies one subscription so it can be removed later.
type Token uint64

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a Registry.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging of every emission and subscription change.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Registry hands out subscription tokens for a set of channels and records
// emission metrics for them.
type Registry struct {
	logger Logger
	logged bool
	next   Token

	// OTEL metrics
	emitted      metric.Int64Counter
	subscribers  metric.Int64ObservableGauge
	registration metric.Registration

	// Subscriber counts are read by the gauge callback on the SDK's goroutine.
	mu     sync.RWMutex
	counts map[Kind]int
}

// New creates a Registry with the given logger (nil discards logs).
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, opts ...Option) (*Registry, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if logger == nil {
		logger = nopLogger{}
	}

	r := &Registry{
		logger: logger,
		logged: cfg.logged,
		counts: make(map[Kind]int),
	}

	m := meter()

	var err error

	r.emitted, err = m.Int64Counter(
		"markerview.events.emitted",
		metric.WithDescription("Total notifications delivered to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	r.subscribers, err = m.Int64ObservableGauge(
		"markerview.events.subscribers",
		metric.WithDescription("Current number of subscribers per event kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating subscribers gauge: %w", err)
	}

	r.registration, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			for kind, n := range r.counts {
				o.ObserveInt64(r.subscribers, int64(n),
					metric.WithAttributes(attribute.String("kind", string(kind))))
			}
			return nil
		},
		r.subscribers,
	)
	if err != nil {
		return nil, fmt.Errorf("registering subscribers callback: %w", err)
	}

	return r, nil
}

// Close releases the metric callback.
func (r *Registry) Close() error {
	if r.registration == nil {
		return nil
	}
	err := r.registration.Unregister()
	r.registration = nil
	return err
}

// Subscribers returns the number of live subscriptions for kind.
func (r *Registry) Subscribers(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[kind]
}

func (r *Registry) adjust(kind Kind, delta int) {
	r.mu.Lock()
	r.counts[kind] += delta
	r.mu.Unlock()
}

func (r *Registry) issue() Token {
	r.next++
	return r.next
}

type entry[H any] struct {
	token   Token
	handler H
}

// Channel holds the ordered subscribers of one notification kind, all
// sharing the handler signature H.
type Channel[H any] struct {
	kind    Kind
	reg     *Registry
	entries []entry[H]
}

// NewChannel creates the channel for kind on r.
func NewChannel[H any](r *Registry, kind Kind) *Channel[H] {
	return &Channel[H]{kind: kind, reg: r}
}

// Kind returns the notification kind the channel carries.
func (c *Channel[H]) Kind() Kind { return c.kind }

// Add subscribes h and returns the token that removes it.
func (c *Channel[H]) Add(h H) Token {
	t := c.reg.issue()
	c.entries = append(c.entries, entry[H]{token: t, handler: h})
	c.reg.adjust(c.kind, 1)
	if c.reg.logged {
		c.reg.logger.Debug("subscribed", "kind", c.kind, "token", t)
	}
	return t
}

// Remove unsubscribes the handler added under t. It reports whether a
// subscription was removed.
func (c *Channel[H]) Remove(t Token) bool {
	for i, e := range c.entries {
		if e.token == t {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			c.reg.adjust(c.kind, -1)
			if c.reg.logged {
				c.reg.logger.Debug("unsubscribed", "kind", c.kind, "token", t)
			}
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (c *Channel[H]) Len() int { return len(c.entries) }

// Emit calls invoke once per subscriber in subscription order. Subscribers
// added or removed by a handler take effect from the next Emit. Panics in
// handlers propagate to the caller.
func (c *Channel[H]) Emit(invoke func(H)) {
	if len(c.entries) == 0 {
		return
	}
	snapshot := make([]entry[H], len(c.entries))
	copy(snapshot, c.entries)

	if c.reg.logged {
		c.reg.logger.Debug("emitting", "kind", c.kind, "subscribers", len(snapshot))
	}
	for _, e := range snapshot {
		invoke(e.handler)
	}
	c.reg.emitted.Add(context.Background(), int64(len(snapshot)),
		metric.WithAttributes(attribute.String("kind", string(c.kind))))
}
