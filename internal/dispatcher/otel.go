package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/markerview/internal/dispatcher"

// instruments holds the dispatcher metrics. With no meter provider
// installed they are no-ops.
type instruments struct {
	processed    metric.Int64Counter
	failed       metric.Int64Counter
	dropped      metric.Int64Counter
	latency      metric.Float64Histogram
	registration metric.Registration
}

func newInstruments(depths func(observe func(typ string, depth int))) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)

	if in.processed, err = m.Int64Counter("markerview.dispatcher.messages.processed",
		metric.WithDescription("Messages handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.failed, err = m.Int64Counter("markerview.dispatcher.messages.failed",
		metric.WithDescription("Messages whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("markerview.dispatcher.messages.dropped",
		metric.WithDescription("Messages rejected by a full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if in.latency, err = m.Float64Histogram("markerview.dispatcher.message.latency",
		metric.WithDescription("Time from receipt to handled"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	depth, err := m.Int64ObservableGauge("markerview.dispatcher.queue.size",
		metric.WithDescription("Events waiting in a handler queue"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	in.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(typ string, n int) {
			o.ObserveInt64(depth, int64(n), typeAttr(typ))
		})
		return nil
	}, depth)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	return &in, nil
}

func typeAttr(typ string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("type", typ))
}

func (in *instruments) handled(typ string, received time.Time, err error) {
	ctx := context.Background()
	attr := typeAttr(typ)
	in.processed.Add(ctx, 1, attr)
	if err != nil {
		in.failed.Add(ctx, 1, attr)
	}
	if !received.IsZero() {
		in.latency.Record(ctx, time.Since(received).Seconds(), attr)
	}
}

func (in *instruments) drop(typ string) {
	in.dropped.Add(context.Background(), 1, typeAttr(typ))
}

func (in *instruments) close() error {
	return in.registration.Unregister()
}
