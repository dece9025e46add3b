// Package streaming defines the websocket protocol spoken between a
// markerview host and the annotation server.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/markerview/pkg/core"
)

// Client to server message types.
const (
	TypeOpen          = "open"
	TypePointerDown   = "pointer_down"
	TypePointerMove   = "pointer_move"
	TypePointerUp     = "pointer_up"
	TypePointerCancel = "pointer_cancel"
	TypePointerOut    = "pointer_out"
	TypeDblClick      = "dbl_click"
	TypeKeyUp         = "key_up"
	TypeResize        = "resize"
	TypeCreateMarker  = "create_marker"
	TypeGetState      = "get_state"
	TypeSave          = "save"
)

// Server to client message types.
const (
	TypeOpened = "opened"
	TypeEvent  = "event"
	TypeScene  = "scene"
	TypeState  = "state"
	TypeSaved  = "saved"
	TypeError  = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal wraps payload in an envelope of type typ and encodes it. A nil
// payload is omitted.
func Marshal(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// OpenPayload opens the connection's view.
type OpenPayload struct {
	Width       float64             `json:"width"`
	Height      float64             `json:"height"`
	MarkerTypes []string            `json:"markerTypes,omitempty"`
	State       *core.AnnotationSet `json:"state,omitempty"`
}

// PointerPayload is one pointer sample. Target is the ID of the scene node
// under the pointer or "root" over the bare canvas. An empty or unknown
// target is hit-tested by the server at X, Y.
type PointerPayload struct {
	PointerID   int     `json:"pointerId"`
	PointerType string  `json:"pointerType"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Target      string  `json:"target,omitempty"`
}

// KeyPayload is a released key.
type KeyPayload struct {
	Key string `json:"key"`
}

// ResizePayload is the new displayed image size.
type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CreateMarkerPayload arms marker creation.
type CreateMarkerPayload struct {
	TypeName string `json:"typeName"`
}

// SavePayload asks the server to store the current state under Name.
type SavePayload struct {
	Name string `json:"name"`
}

// SkippedRecord is a stored marker the server could not restore.
type SkippedRecord struct {
	Index    int    `json:"index"`
	TypeName string `json:"typeName"`
	Reason   string `json:"reason"`
}

// OpenedPayload answers open.
type OpenedPayload struct {
	Session     string          `json:"session"`
	MarkerTypes []string        `json:"markerTypes"`
	Restored    int             `json:"restored"`
	Skipped     []SkippedRecord `json:"skipped,omitempty"`
	Rescaled    bool            `json:"rescaled,omitempty"`
}

// EventPayload reports a view notification. MarkerIndex is the z-order
// index of the marker involved, or -1.
type EventPayload struct {
	Kind        string `json:"kind"`
	MarkerIndex int    `json:"markerIndex"`
	TypeName    string `json:"typeName,omitempty"`
}

// SceneNode is one node of a scene snapshot.
type SceneNode struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Parent    string            `json:"parent,omitempty"`
	Transform *core.Matrix      `json:"transform,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// ScenePayload is the full scene in paint order.
type ScenePayload struct {
	Nodes []SceneNode `json:"nodes"`
}

// SavedPayload answers save once the file is queued for writing.
type SavedPayload struct {
	File string `json:"file"`
}

// ErrorPayload reports a failed message.
type ErrorPayload struct {
	For     string `json:"for,omitempty"`
	Message string `json:"message"`
}
