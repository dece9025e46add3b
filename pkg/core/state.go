package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TypeNameKey is the JSON key carrying a marker's type tag.
const TypeNameKey = "typeName"

// MarkerState is the serialized record of one marker: its type tag plus the
// flat set of fields the marker variant needs to rebuild itself.
//
// On the wire it is a single JSON object; the type tag lives next to the
// variant fields under "typeName".
type MarkerState struct {
	TypeName string
	Fields   map[string]json.RawMessage
}

// NewMarkerState flattens v (a struct or map that encodes as a JSON object)
// into a MarkerState tagged with typeName.
func NewMarkerState(typeName string, v any) (MarkerState, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return MarkerState{}, fmt.Errorf("marshal %s state: %w", typeName, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return MarkerState{}, fmt.Errorf("%s state is not an object: %w", typeName, err)
	}
	delete(fields, TypeNameKey)
	return MarkerState{TypeName: typeName, Fields: fields}, nil
}

// Has reports whether the record carries key.
func (s MarkerState) Has(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

// Missing returns the keys absent from the record, in argument order. A
// key holding JSON null counts as absent.
func (s MarkerState) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		raw, ok := s.Fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Decode unmarshals the record's fields into v.
func (s MarkerState) Decode(v any) error {
	raw, err := json.Marshal(s.Fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s state: %w", s.TypeName, err)
	}
	return nil
}

// MarshalJSON writes the record as one flat object.
func (s MarkerState) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Fields)+1)
	for k, v := range s.Fields {
		out[k] = v
	}
	tag, err := json.Marshal(s.TypeName)
	if err != nil {
		return nil, err
	}
	out[TypeNameKey] = tag
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into type tag and fields. A record
// without a type tag decodes with an empty TypeName.
func (s *MarkerState) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	s.TypeName = ""
	if raw, ok := fields[TypeNameKey]; ok {
		if err := json.Unmarshal(raw, &s.TypeName); err != nil {
			return fmt.Errorf("invalid %s: %w", TypeNameKey, err)
		}
		delete(fields, TypeNameKey)
	}
	s.Fields = fields
	return nil
}

// AnnotationSet is the persisted form of a whole view: the canvas size the
// markers were authored against and the markers in z-order (later entries
// draw on top).
type AnnotationSet struct {
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	Markers []MarkerState `json:"markers"`
}

// UnmarshalJSON also accepts canvasWidth/canvasHeight for the canvas size.
func (a *AnnotationSet) UnmarshalJSON(data []byte) error {
	type plain AnnotationSet
	var aux struct {
		plain
		CanvasWidth  *float64 `json:"canvasWidth"`
		CanvasHeight *float64 `json:"canvasHeight"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = AnnotationSet(aux.plain)
	if a.Width == 0 && aux.CanvasWidth != nil {
		a.Width = *aux.CanvasWidth
	}
	if a.Height == 0 && aux.CanvasHeight != nil {
		a.Height = *aux.CanvasHeight
	}
	return nil
}
