package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record("DEBUG", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record("INFO", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record("ERROR", msg, kv) }

func (l *recordingLogger) find(prefix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

func newDispatcher(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, logger
}

func TestDispatch_Inline(t *testing.T) {
	d, _ := newDispatcher(t)

	var got Event
	d.Register("pointer_move", func(e Event) (any, error) {
		got = e
		return "moved", nil
	})

	result, err := d.Dispatch(Event{Type: "pointer_move", Session: "s1", Payload: []byte(`{"x":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "moved", result)
	assert.Equal(t, "s1", got.Session)
	assert.JSONEq(t, `{"x":1}`, string(got.Payload))
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatch_KeepsTimestamp(t *testing.T) {
	d, _ := newDispatcher(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var got time.Time
	d.Register("open", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})
	_, err := d.Dispatch(Event{Type: "open", Timestamp: at})
	require.NoError(t, err)
	assert.Equal(t, at, got)
}

func TestDispatch_UnknownType(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(Event{Type: "persist"})
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.EqualError(t, err, "unknown message type: persist")
	assert.False(t, d.HasHandler("persist"))
}

func TestDispatch_HandlerError(t *testing.T) {
	d, _ := newDispatcher(t)
	boom := errors.New("no view")
	d.Register("resize", func(Event) (any, error) { return nil, boom })

	_, err := d.Dispatch(Event{Type: "resize"})
	assert.ErrorIs(t, err, boom)
}

func TestRegister_Replaces(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register("save", func(Event) (any, error) { return 1, nil })
	d.Register("save", func(Event) (any, error) { return 2, nil })

	result, err := d.Dispatch(Event{Type: "save"})
	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.True(t, d.HasHandler("save"))
}

func TestBuffered_HandlesInOrder(t *testing.T) {
	d, _ := newDispatcher(t)

	var (
		mu  sync.Mutex
		got []string
	)
	d.Register("persist", func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(e.Payload))
		return nil, nil
	}, Buffered(8))

	for _, p := range []string{`"a"`, `"b"`, `"c"`} {
		result, err := d.Dispatch(Event{Type: "persist", Payload: []byte(p)})
		require.NoError(t, err)
		assert.Equal(t, Queued, result)
	}
	require.NoError(t, d.Close())

	assert.Equal(t, []string{`"a"`, `"b"`, `"c"`}, got)
}

func TestBuffered_QueueFull(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("persist", func(Event) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, Buffered(1))

	_, err := d.Dispatch(Event{Type: "persist"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Type: "persist"})
	require.NoError(t, err, "one event fits in the queue while the first runs")

	_, err = d.Dispatch(Event{Type: "persist"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestBuffered_Blocking(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	var (
		mu    sync.Mutex
		count int
	)
	d.Register("persist", func(Event) (any, error) {
		<-release
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}, Buffered(1), Blocking())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			_, err := d.Dispatch(Event{Type: "persist"})
			assert.NoError(t, err)
		}
	}()

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking dispatch never returned")
	}
	require.NoError(t, d.Close())
	assert.Equal(t, 3, count)
}

func TestBuffered_AfterClose(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register("persist", func(Event) (any, error) { return nil, nil }, Buffered(4))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Dispatch(Event{Type: "persist"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLogged(t *testing.T) {
	d, logger := newDispatcher(t)
	d.Register("open", func(Event) (any, error) { return nil, nil }, Logged())
	d.Register("get_state", func(Event) (any, error) { return nil, errors.New("view is not open") }, Logged())

	_, err := d.Dispatch(Event{Type: "open", Session: "s1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Type: "get_state", Session: "s1"})
	require.Error(t, err)

	debug := logger.find("DEBUG")
	require.Len(t, debug, 3)
	assert.Contains(t, debug[0], "handling message")
	assert.Contains(t, debug[0], "open")
	assert.Contains(t, debug[1], "message complete")

	failed := logger.find("ERROR")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "get_state")
	assert.Contains(t, failed[0], "view is not open")
}

func TestLogged_Buffered(t *testing.T) {
	d, logger := newDispatcher(t)
	d.Register("persist", func(Event) (any, error) { return nil, errors.New("disk full") },
		Buffered(2), Logged())

	_, err := d.Dispatch(Event{Type: "persist"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	failed := logger.find("ERROR")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "disk full")
}

func TestEvent_Decode(t *testing.T) {
	var v struct{ Width float64 }

	require.NoError(t, Event{Type: "resize"}.Decode(&v))
	assert.Zero(t, v.Width)

	require.NoError(t, Event{Type: "resize", Payload: []byte(`{"width":640}`)}.Decode(&v))
	assert.Equal(t, 640.0, v.Width)

	err := Event{Type: "resize", Payload: []byte(`{`)}.Decode(&v)
	assert.ErrorContains(t, err, "decoding resize payload")
}
