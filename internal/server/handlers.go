package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/markerview/internal/dispatcher"
	"github.com/OCAP2/markerview/internal/events"
	"github.com/OCAP2/markerview/internal/export"
	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/core"
	"github.com/OCAP2/markerview/pkg/streaming"
)

// RootTarget names the bare canvas in pointer payloads.
const RootTarget = "root"

type sessionHandler func(sess *session, e dispatcher.Event) error

type persistJob struct {
	Path string             `json:"path"`
	Set  core.AnnotationSet `json:"set"`
}

func (s *Server) registerHandlers() {
	d := s.dispatcher
	d.Register(streaming.TypeOpen, s.onSession(s.handleOpen, false), dispatcher.Logged())

	for typ, fn := range map[string]func(*view.View, *view.PointerEvent){
		streaming.TypePointerDown:   (*view.View).PointerDown,
		streaming.TypePointerMove:   (*view.View).PointerMove,
		streaming.TypePointerUp:     (*view.View).PointerUp,
		streaming.TypePointerCancel: (*view.View).PointerCancel,
		streaming.TypePointerOut:    (*view.View).PointerOut,
		streaming.TypeDblClick:      (*view.View).DoubleClick,
	} {
		d.Register(typ, s.onSession(pointerHandler(fn), true))
	}

	d.Register(streaming.TypeKeyUp, s.onSession(handleKeyUp, true), dispatcher.Logged())
	d.Register(streaming.TypeResize, s.onSession(handleResize, true), dispatcher.Logged())
	d.Register(streaming.TypeCreateMarker, s.onSession(handleCreateMarker, true), dispatcher.Logged())
	d.Register(streaming.TypeGetState, s.onSession(handleGetState, true), dispatcher.Logged())
	d.Register(streaming.TypeSave, s.onSession(s.handleSave, true), dispatcher.Logged())

	d.Register(typePersist, s.persist, dispatcher.Buffered(persistQueueSize), dispatcher.Logged())
}

// onSession resolves the event's session and, when needView is set,
// requires its view to be open.
func (s *Server) onSession(h sessionHandler, needView bool) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		sess := s.session(e.Session)
		if sess == nil {
			return nil, fmt.Errorf("unknown session %q", e.Session)
		}
		if needView && sess.view == nil {
			return nil, ErrNotOpen
		}
		if err := h(sess, e); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func (s *Server) handleOpen(sess *session, e dispatcher.Event) error {
	if sess.view != nil {
		return view.ErrAlreadyOpen
	}
	var p streaming.OpenPayload
	if err := e.Decode(&p); err != nil {
		return err
	}

	types := p.MarkerTypes
	if len(types) == 0 {
		types = s.cfg.MarkerTypes
	}
	opts := []view.Option{view.WithLogger(sess.logger)}
	if len(types) > 0 {
		opts = append(opts, view.WithMarkerTypes(types...))
	}
	if s.eventLogger != nil {
		opts = append(opts, view.WithEventLogger(s.eventLogger))
	}
	if s.plugins != nil {
		opts = append(opts, view.WithPlugins(s.plugins()...))
	}

	v, err := view.New(p.Width, p.Height, opts...)
	if err != nil {
		return err
	}
	if err := subscribe(sess, v); err != nil {
		_ = v.Close()
		return err
	}
	sess.view = v

	report, err := v.Show(p.State)
	if err != nil {
		return err
	}

	opened := streaming.OpenedPayload{
		Session:     sess.id,
		MarkerTypes: v.MarkerTypes(),
		Restored:    report.Restored,
		Rescaled:    report.Rescaled,
	}
	for _, sk := range report.Skipped {
		opened.Skipped = append(opened.Skipped, streaming.SkippedRecord{
			Index:    sk.Index,
			TypeName: sk.TypeName,
			Reason:   sk.Reason(),
		})
	}
	sess.send(streaming.TypeOpened, opened)
	sendScene(sess)
	return nil
}

func pointerHandler(apply func(*view.View, *view.PointerEvent)) sessionHandler {
	return func(sess *session, e dispatcher.Event) error {
		var p streaming.PointerPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.PointerType == "" {
			p.PointerType = view.PointerMouse
		}
		v := sess.view
		apply(v, &view.PointerEvent{
			PointerID:   p.PointerID,
			PointerType: p.PointerType,
			ClientX:     p.X,
			ClientY:     p.Y,
			Target:      resolveTarget(v, p),
		})
		sendScene(sess)
		return nil
	}
}

// resolveTarget maps a payload target to a scene node. An empty or stale
// target is hit-tested at the pointer position.
func resolveTarget(v *view.View, p streaming.PointerPayload) *scene.Node {
	switch p.Target {
	case "":
		return v.TargetAt(p.X, p.Y)
	case RootTarget:
		return v.Scene().Root()
	}
	if n, ok := v.Scene().Lookup(p.Target); ok {
		return n
	}
	return v.TargetAt(p.X, p.Y)
}

func handleKeyUp(sess *session, e dispatcher.Event) error {
	var p streaming.KeyPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if sess.view.KeyUp(p.Key) {
		sendScene(sess)
	}
	return nil
}

func handleResize(sess *session, e dispatcher.Event) error {
	var p streaming.ResizePayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %gx%g", view.ErrInvalidSize, p.Width, p.Height)
	}
	sess.view.Resize(p.Width, p.Height)
	sendScene(sess)
	return nil
}

func handleCreateMarker(sess *session, e dispatcher.Event) error {
	var p streaming.CreateMarkerPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if err := sess.view.CreateMarker(p.TypeName); err != nil {
		return err
	}
	sendScene(sess)
	return nil
}

func handleGetState(sess *session, _ dispatcher.Event) error {
	set, err := sess.view.Serialize()
	if err != nil {
		return err
	}
	sess.send(streaming.TypeState, set)
	return nil
}

// handleSave serializes the view on the read loop and queues the file
// write.
func (s *Server) handleSave(sess *session, e dispatcher.Event) error {
	if s.cfg.SaveDir == "" {
		return ErrSaveDisabled
	}
	var p streaming.SavePayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	set, err := sess.view.Serialize()
	if err != nil {
		return err
	}

	file := export.FileName(saveBase(p.Name), time.Now(), s.cfg.Compress)
	job, err := json.Marshal(persistJob{Path: filepath.Join(s.cfg.SaveDir, file), Set: set})
	if err != nil {
		return fmt.Errorf("encoding save job: %w", err)
	}
	if _, err := s.dispatcher.Dispatch(dispatcher.Event{Type: typePersist, Payload: job, Session: sess.id}); err != nil {
		return err
	}
	sess.send(streaming.TypeSaved, streaming.SavedPayload{File: file})
	return nil
}

// saveBase reduces a client supplied name to a bare file stem.
func saveBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	base = strings.TrimSuffix(base, export.GzipSuffix)
	return strings.TrimSuffix(base, ".json")
}

func (s *Server) persist(e dispatcher.Event) (any, error) {
	var job persistJob
	if err := e.Decode(&job); err != nil {
		s.logger.Error("decoding save job", "error", err)
		return nil, err
	}
	if err := export.WriteFile(job.Path, job.Set); err != nil {
		s.logger.Error("saving annotations", "session", e.Session, "path", job.Path, "error", err)
		return nil, err
	}
	s.logger.Info("annotations saved", "session", e.Session, "path", job.Path, "markers", len(job.Set.Markers))
	return nil, nil
}

func sendScene(sess *session) {
	snap := sess.view.Scene().Snapshot()
	nodes := make([]streaming.SceneNode, len(snap))
	for i, n := range snap {
		nodes[i] = streaming.SceneNode{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Parent:    n.Parent,
			Transform: n.Transform,
			Attrs:     n.Attrs,
			Text:      n.Text,
		}
	}
	sess.send(streaming.TypeScene, streaming.ScenePayload{Nodes: nodes})
}

// subscribe forwards every view notification to the session.
func subscribe(sess *session, v *view.View) error {
	emit := func(kind events.Kind, m marker.Marker) {
		p := streaming.EventPayload{Kind: string(kind), MarkerIndex: -1}
		if m != nil {
			p.MarkerIndex = v.IndexOf(m)
			p.TypeName = m.TypeName()
		}
		sess.send(streaming.TypeEvent, p)
	}

	var errs []error
	for _, kind := range events.Kinds() {
		var handler any
		switch kind {
		case events.Create, events.Close, events.Load:
			handler = func(*view.View) { emit(kind, nil) }
		case events.Select, events.Hover:
			handler = func(_ *view.View, m marker.Marker) { emit(kind, m) }
		default:
			handler = func(_ *view.View, _ *view.PointerEvent, m marker.Marker) { emit(kind, m) }
		}
		if _, err := v.AddEventListener(kind, handler); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
