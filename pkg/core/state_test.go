package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarkerState_Flattens(t *testing.T) {
	v := struct {
		Left  float64 `json:"left"`
		Notes string  `json:"notes,omitempty"`
	}{Left: 12.5}

	s, err := NewMarkerState("FrameMarker", v)
	require.NoError(t, err)

	assert.Equal(t, "FrameMarker", s.TypeName)
	assert.True(t, s.Has("left"))
	assert.False(t, s.Has("notes"))
	assert.Equal(t, []string{"top", "notes"}, s.Missing("left", "top", "notes"))
}

func TestMarkerState_NullCountsAsMissing(t *testing.T) {
	var s MarkerState
	require.NoError(t, json.Unmarshal([]byte(`{"typeName":"FrameMarker","left":0,"containerTransformMatrix": null}`), &s))

	assert.True(t, s.Has("containerTransformMatrix"))
	assert.Equal(t, []string{"containerTransformMatrix", "top"}, s.Missing("left", "containerTransformMatrix", "top"))
}

func TestNewMarkerState_RejectsNonObject(t *testing.T) {
	_, err := NewMarkerState("FrameMarker", []int{1, 2})
	require.Error(t, err)
}

func TestMarkerState_JSONIsFlat(t *testing.T) {
	s, err := NewMarkerState("LineMarker", map[string]any{"x1": 1, "y1": 2})
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"typeName":"LineMarker","x1":1,"y1":2}`, string(data))

	var back MarkerState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "LineMarker", back.TypeName)
	assert.False(t, back.Has(TypeNameKey))

	var decoded struct {
		X1 float64 `json:"x1"`
		Y1 float64 `json:"y1"`
	}
	require.NoError(t, back.Decode(&decoded))
	assert.Equal(t, 1.0, decoded.X1)
	assert.Equal(t, 2.0, decoded.Y1)
}

func TestMarkerState_UnmarshalWithoutTypeName(t *testing.T) {
	var s MarkerState
	require.NoError(t, json.Unmarshal([]byte(`{"left":1}`), &s))
	assert.Equal(t, "", s.TypeName)
	assert.True(t, s.Has("left"))
}

func TestMarkerState_UnmarshalBadTypeName(t *testing.T) {
	var s MarkerState
	err := json.Unmarshal([]byte(`{"typeName":42}`), &s)
	require.Error(t, err)
}

func TestMarkerState_DecodeTypeMismatch(t *testing.T) {
	var s MarkerState
	require.NoError(t, json.Unmarshal([]byte(`{"typeName":"LineMarker","x1":"left"}`), &s))

	var decoded struct {
		X1 float64 `json:"x1"`
	}
	require.Error(t, s.Decode(&decoded))
}

func TestAnnotationSet_RoundTrip(t *testing.T) {
	in := `{"width":400,"height":300,"markers":[{"typeName":"FrameMarker","left":10}]}`

	var set AnnotationSet
	require.NoError(t, json.Unmarshal([]byte(in), &set))
	assert.Equal(t, 400.0, set.Width)
	assert.Equal(t, 300.0, set.Height)
	require.Len(t, set.Markers, 1)
	assert.Equal(t, "FrameMarker", set.Markers[0].TypeName)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestAnnotationSet_CanvasSizeAliases(t *testing.T) {
	var set AnnotationSet
	require.NoError(t, json.Unmarshal([]byte(`{"canvasWidth":640,"canvasHeight":480,"markers":[]}`), &set))
	assert.Equal(t, 640.0, set.Width)
	assert.Equal(t, 480.0, set.Height)
	assert.Empty(t, set.Markers)
}

func TestMatrix_String(t *testing.T) {
	assert.Equal(t, "matrix(1 0 0 1 10.5 -2)", Matrix{A: 1, D: 1, E: 10.5, F: -2}.String())
	assert.True(t, Identity().IsIdentity())
}

func TestParsePoints(t *testing.T) {
	pts, err := ParsePoints("0,1 2.5,-3")
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 0, Y: 1}, {X: 2.5, Y: -3}}, pts)
	assert.Equal(t, "0,1 2.5,-3", FormatPoints(pts...))

	_, err = ParsePoints("1;2")
	require.Error(t, err)
	_, err = ParsePoints("a,2")
	require.Error(t, err)
}
