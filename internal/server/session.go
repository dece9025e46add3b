package server

import (
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/streaming"
)

// session is one websocket connection and the view it drives. The view is
// only touched from the connection's read loop.
type session struct {
	id     string
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once

	writeWait time.Duration
	logger    *slog.Logger

	view *view.View
}

func newSession(id string, conn *ws.Conn, buffer int, writeWait time.Duration, logger *slog.Logger) *session {
	return &session{
		id:        id,
		conn:      conn,
		sendCh:    make(chan []byte, buffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
		logger:    logger,
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket. It
// returns on error or shutdown.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.sendCh:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
				s.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				s.close()
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, data); err != nil {
				s.logger.Warn("WebSocket write error", "error", err)
				s.close()
				return
			}
		}
	}
}

// send encodes a message and pushes it to the write loop. Non-blocking;
// drops if the channel is full.
func (s *session) send(typ string, payload any) {
	data, err := streaming.Marshal(typ, payload)
	if err != nil {
		s.logger.Error("encoding message", "type", typ, "error", err)
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.sendCh <- data:
	default:
		s.logger.Warn("WebSocket send channel full, dropping message", "type", typ)
	}
}

func (s *session) sendError(forType string, err error) {
	s.send(streaming.TypeError, streaming.ErrorPayload{For: forType, Message: err.Error()})
}

// close sends a close frame and stops the write loop.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(s.writeWait),
		)
		_ = s.conn.Close()
	})
}
