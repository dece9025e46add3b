package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerview/internal/export"
	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/core"
	"github.com/OCAP2/markerview/pkg/streaming"
)

const readTimeout = 5 * time.Second

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = s.Close()
	})
	return s, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *httptest.Server) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *ws.Conn, typ string, payload any) {
	t.Helper()
	data, err := streaming.Marshal(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
}

// readUntil reads messages until one of type typ arrives and returns it
// along with everything read before it.
func readUntil(t *testing.T, conn *ws.Conn, typ string) (streaming.Envelope, []streaming.Envelope) {
	t.Helper()
	var seen []streaming.Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var env streaming.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env, seen
		}
		seen = append(seen, env)
	}
}

func decode[T any](t *testing.T, env streaming.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func eventKinds(t *testing.T, envs []streaming.Envelope) []string {
	t.Helper()
	var kinds []string
	for _, env := range envs {
		if env.Type == streaming.TypeEvent {
			kinds = append(kinds, decode[streaming.EventPayload](t, env).Kind)
		}
	}
	return kinds
}

func open(t *testing.T, conn *ws.Conn, p streaming.OpenPayload) streaming.OpenedPayload {
	t.Helper()
	send(t, conn, streaming.TypeOpen, p)
	env, _ := readUntil(t, conn, streaming.TypeOpened)
	opened := decode[streaming.OpenedPayload](t, env)
	readUntil(t, conn, streaming.TypeScene)
	return opened
}

func drawFrame(t *testing.T, conn *ws.Conn, from, to core.Point) {
	t.Helper()
	send(t, conn, streaming.TypeCreateMarker, streaming.CreateMarkerPayload{TypeName: marker.FrameType})
	readUntil(t, conn, streaming.TypeScene)
	for _, step := range []struct {
		typ string
		p   core.Point
	}{
		{streaming.TypePointerDown, from},
		{streaming.TypePointerMove, to},
		{streaming.TypePointerUp, to},
	} {
		send(t, conn, step.typ, streaming.PointerPayload{PointerType: view.PointerMouse, X: step.p.X, Y: step.p.Y})
		readUntil(t, conn, streaming.TypeScene)
	}
}

func getState(t *testing.T, conn *ws.Conn) core.AnnotationSet {
	t.Helper()
	send(t, conn, streaming.TypeGetState, nil)
	env, _ := readUntil(t, conn, streaming.TypeState)
	return decode[core.AnnotationSet](t, env)
}

func TestOpen_EmitsLifecycleEvents(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	send(t, conn, streaming.TypeOpen, streaming.OpenPayload{Width: 800, Height: 600})
	env, before := readUntil(t, conn, streaming.TypeOpened)

	assert.Equal(t, []string{"create", "load"}, eventKinds(t, before))
	opened := decode[streaming.OpenedPayload](t, env)
	assert.NotEmpty(t, opened.Session)
	assert.Contains(t, opened.MarkerTypes, marker.FrameType)
	assert.Zero(t, opened.Restored)

	scene, _ := readUntil(t, conn, streaming.TypeScene)
	nodes := decode[streaming.ScenePayload](t, scene).Nodes
	require.NotEmpty(t, nodes)
}

func TestOpen_Twice(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})

	send(t, conn, streaming.TypeOpen, streaming.OpenPayload{Width: 800, Height: 600})
	env, _ := readUntil(t, conn, streaming.TypeError)
	e := decode[streaming.ErrorPayload](t, env)
	assert.Equal(t, streaming.TypeOpen, e.For)
	assert.Contains(t, e.Message, view.ErrAlreadyOpen.Error())
}

func TestOpen_InvalidSize(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	send(t, conn, streaming.TypeOpen, streaming.OpenPayload{Width: 0, Height: 600})
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Contains(t, decode[streaming.ErrorPayload](t, env).Message, view.ErrInvalidSize.Error())
}

func TestPointerBeforeOpen(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	send(t, conn, streaming.TypePointerDown, streaming.PointerPayload{X: 10, Y: 10})
	env, _ := readUntil(t, conn, streaming.TypeError)
	e := decode[streaming.ErrorPayload](t, env)
	assert.Equal(t, streaming.TypePointerDown, e.For)
	assert.Equal(t, ErrNotOpen.Error(), e.Message)
}

func TestUnknownMessageType(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	send(t, conn, "launch_rockets", nil)
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Equal(t, "launch_rockets", decode[streaming.ErrorPayload](t, env).For)

	send(t, conn, typePersist, nil)
	env, _ = readUntil(t, conn, streaming.TypeError)
	assert.Equal(t, typePersist, decode[streaming.ErrorPayload](t, env).For)
}

func TestMalformedEnvelope(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Contains(t, decode[streaming.ErrorPayload](t, env).Message, "malformed envelope")
}

func TestDrawAndGetState(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})

	drawFrame(t, conn, core.Point{X: 10, Y: 10}, core.Point{X: 110, Y: 60})

	set := getState(t, conn)
	assert.Equal(t, 800.0, set.Width)
	require.Len(t, set.Markers, 1)
	rec := set.Markers[0]
	assert.Equal(t, marker.FrameType, rec.TypeName)
	assert.JSONEq(t, "100", string(rec.Fields["width"]))
	assert.JSONEq(t, "50", string(rec.Fields["height"]))
}

func TestDraw_EmitsSelect(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})

	send(t, conn, streaming.TypeCreateMarker, streaming.CreateMarkerPayload{TypeName: marker.FrameType})
	readUntil(t, conn, streaming.TypeScene)
	send(t, conn, streaming.TypePointerDown, streaming.PointerPayload{X: 10, Y: 10})
	_, before := readUntil(t, conn, streaming.TypeScene)

	var sel *streaming.EventPayload
	for _, env := range before {
		if env.Type != streaming.TypeEvent {
			continue
		}
		p := decode[streaming.EventPayload](t, env)
		if p.Kind == "select" {
			sel = &p
		}
	}
	require.NotNil(t, sel)
	assert.Equal(t, 0, sel.MarkerIndex)
	assert.Equal(t, marker.FrameType, sel.TypeName)
}

func TestCreateMarker_UnknownType(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600, MarkerTypes: []string{marker.FrameType}})

	send(t, conn, streaming.TypeCreateMarker, streaming.CreateMarkerPayload{TypeName: marker.ArrowType})
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Contains(t, decode[streaming.ErrorPayload](t, env).Message, marker.ArrowType)
}

func TestConfigMarkerTypes(t *testing.T) {
	_, srv := newTestServer(t, Config{MarkerTypes: []string{marker.FrameType, marker.ArrowType}})
	conn := dial(t, srv)

	opened := open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})
	assert.ElementsMatch(t, []string{marker.FrameType, marker.ArrowType}, opened.MarkerTypes)
}

func TestOpen_RestoresState(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	first := dial(t, srv)
	open(t, first, streaming.OpenPayload{Width: 400, Height: 300})
	drawFrame(t, first, core.Point{X: 10, Y: 10}, core.Point{X: 110, Y: 60})
	saved := getState(t, first)

	saved.Markers = append(saved.Markers, core.MarkerState{TypeName: "NoSuchMarker"})

	second := dial(t, srv)
	opened := open(t, second, streaming.OpenPayload{Width: 800, Height: 600, State: &saved})
	assert.Equal(t, 1, opened.Restored)
	assert.True(t, opened.Rescaled)
	require.Len(t, opened.Skipped, 1)
	assert.Equal(t, 1, opened.Skipped[0].Index)
	assert.Equal(t, "NoSuchMarker", opened.Skipped[0].TypeName)
	assert.NotEmpty(t, opened.Skipped[0].Reason)

	set := getState(t, second)
	require.Len(t, set.Markers, 1)
	assert.JSONEq(t, "200", string(set.Markers[0].Fields["width"]))
	assert.JSONEq(t, "100", string(set.Markers[0].Fields["height"]))
}

func TestResize_ScalesMarkers(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 400, Height: 300})
	drawFrame(t, conn, core.Point{X: 10, Y: 10}, core.Point{X: 110, Y: 60})

	send(t, conn, streaming.TypeResize, streaming.ResizePayload{Width: 800, Height: 300})
	readUntil(t, conn, streaming.TypeScene)

	set := getState(t, conn)
	assert.Equal(t, 800.0, set.Width)
	require.Len(t, set.Markers, 1)
	assert.JSONEq(t, "200", string(set.Markers[0].Fields["width"]))
	assert.JSONEq(t, "50", string(set.Markers[0].Fields["height"]))

	send(t, conn, streaming.TypeResize, streaming.ResizePayload{Width: -1, Height: 300})
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Contains(t, decode[streaming.ErrorPayload](t, env).Message, view.ErrInvalidSize.Error())
}

func TestKeyUp_DeletesCurrent(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})
	drawFrame(t, conn, core.Point{X: 10, Y: 10}, core.Point{X: 110, Y: 60})

	send(t, conn, streaming.TypeKeyUp, streaming.KeyPayload{Key: view.KeyDelete})
	readUntil(t, conn, streaming.TypeScene)

	assert.Empty(t, getState(t, conn).Markers)
}

func TestSave_Disabled(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})

	send(t, conn, streaming.TypeSave, streaming.SavePayload{Name: "review"})
	env, _ := readUntil(t, conn, streaming.TypeError)
	assert.Equal(t, ErrSaveDisabled.Error(), decode[streaming.ErrorPayload](t, env).Message)
}

func TestSave_WritesFile(t *testing.T) {
	dir := t.TempDir()
	_, srv := newTestServer(t, Config{SaveDir: dir, Compress: true})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})
	drawFrame(t, conn, core.Point{X: 10, Y: 10}, core.Point{X: 110, Y: 60})

	send(t, conn, streaming.TypeSave, streaming.SavePayload{Name: "../../etc/review.json"})
	env, _ := readUntil(t, conn, streaming.TypeSaved)
	file := decode[streaming.SavedPayload](t, env).File
	assert.True(t, strings.HasPrefix(file, "review_"), file)
	assert.True(t, export.Compressed(file), file)
	assert.Equal(t, file, filepath.Base(file))

	path := filepath.Join(dir, file)
	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.Size() > 0
	}, readTimeout, 10*time.Millisecond)

	var set core.AnnotationSet
	require.Eventually(t, func() bool {
		var err error
		set, err = export.ReadFile(path)
		return err == nil
	}, readTimeout, 10*time.Millisecond)
	require.Len(t, set.Markers, 1)
	assert.Equal(t, marker.FrameType, set.Markers[0].TypeName)
}

func TestSaveBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"review", "review"},
		{"review.json", "review"},
		{"review.json.gz", "review"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\notes.json`, "notes"},
		{"", ""},
		{"..", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, saveBase(tt.in))
		})
	}
}

func TestSessions_Count(t *testing.T) {
	s, srv := newTestServer(t, Config{})

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return s.Sessions() == 1 }, readTimeout, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, 1, health["sessions"])

	require.NoError(t, conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")))
	_ = conn.Close()
	require.Eventually(t, func() bool { return s.Sessions() == 0 }, readTimeout, 10*time.Millisecond)
}

func TestClose_DisconnectsSessions(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	conn := dial(t, srv)
	open(t, conn, streaming.OpenPayload{Width: 800, Height: 600})

	require.NoError(t, s.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return s.Sessions() == 0 }, readTimeout, 10*time.Millisecond)
}
