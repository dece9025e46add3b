package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerview/internal/api"
	"github.com/OCAP2/markerview/internal/config"
	"github.com/OCAP2/markerview/internal/export"
	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/pkg/core"
)

func frameState(t *testing.T, left, top, width, height float64) core.MarkerState {
	t.Helper()
	st, err := core.NewMarkerState(marker.FrameType, map[string]any{
		"left":                     left,
		"top":                      top,
		"width":                    width,
		"height":                   height,
		"rotationAngle":            0,
		"strokeColor":              "#ff0000",
		"fillColor":                "transparent",
		"strokeWidth":              3,
		"strokeDasharray":          "",
		"opacity":                  1,
		"visualTransformMatrix":    core.Matrix{A: 1, D: 1, E: left, F: top},
		"containerTransformMatrix": core.Matrix{A: 1, D: 1},
	})
	require.NoError(t, err)
	return st
}

func writeSet(t *testing.T, name string, set core.AnnotationSet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, export.WriteFile(path, set))
	return path
}

func withDefaults(t *testing.T) {
	t.Helper()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
}

func TestRescale(t *testing.T) {
	withDefaults(t)
	in := writeSet(t, "in.json", core.AnnotationSet{
		Width:   400,
		Height:  300,
		Markers: []core.MarkerState{frameState(t, 10, 10, 100, 50)},
	})
	out := filepath.Join(t.TempDir(), "out.json.gz")

	var buf bytes.Buffer
	require.NoError(t, rescale([]string{in, "800", "600", out}, &buf))
	assert.Contains(t, buf.String(), "restored 1 markers (scaled 2x, 2x)")
	assert.Contains(t, buf.String(), "wrote 1 markers at 800x600")

	got, err := export.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 800.0, got.Width)
	assert.Equal(t, 600.0, got.Height)
	require.Len(t, got.Markers, 1)

	var frame struct {
		Left, Top, Width, Height float64
	}
	require.NoError(t, got.Markers[0].Decode(&frame))
	assert.InDelta(t, 20, frame.Left, 1e-6)
	assert.InDelta(t, 20, frame.Top, 1e-6)
	assert.InDelta(t, 200, frame.Width, 1e-6)
	assert.InDelta(t, 100, frame.Height, 1e-6)
}

func TestRescale_BadArgs(t *testing.T) {
	withDefaults(t)
	var buf bytes.Buffer

	err := rescale([]string{"in.json"}, &buf)
	assert.ErrorIs(t, err, errUsage)

	err = rescale([]string{"in.json", "wide", "600", "out.json"}, &buf)
	assert.ErrorContains(t, err, "invalid width")

	err = rescale([]string{filepath.Join(t.TempDir(), "missing.json"), "800", "600", "out.json"}, &buf)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	withDefaults(t)
	in := writeSet(t, "in.json", core.AnnotationSet{
		Width:  800,
		Height: 600,
		Markers: []core.MarkerState{
			frameState(t, 10, 10, 100, 50),
			{TypeName: "NoSuchMarker", Fields: map[string]json.RawMessage{}},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{in}, &buf))
	out := buf.String()
	assert.Contains(t, out, "canvas 800x600")
	assert.Contains(t, out, marker.FrameType)
	assert.Contains(t, out, "restored 1 markers\n")
	assert.Contains(t, out, "skipped #1 NoSuchMarker")
}

func TestInspect_FallsBackToDefaultSize(t *testing.T) {
	withDefaults(t)
	in := writeSet(t, "in.json", core.AnnotationSet{
		Markers: []core.MarkerState{frameState(t, 10, 10, 100, 50)},
	})

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{in}, &buf))
	assert.Contains(t, buf.String(), "canvas 800x600")
}

func TestInspect_BadArgs(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, inspect(nil, &buf), errUsage)
}

func TestUpload(t *testing.T) {
	withDefaults(t)
	var gotName, gotMarkers string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthcheck" {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotName = r.FormValue("name")
		gotMarkers = r.FormValue("markers")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	viper.Set("api.url", srv.URL)

	in := writeSet(t, "in.json", core.AnnotationSet{
		Width:   800,
		Height:  600,
		Markers: []core.MarkerState{frameState(t, 10, 10, 100, 50)},
	})

	var buf bytes.Buffer
	require.NoError(t, upload(context.Background(), []string{in, "review"}, &buf))
	assert.Equal(t, "review", gotName)
	assert.Equal(t, "1", gotMarkers)
	assert.Contains(t, buf.String(), "uploaded")
}

func TestUpload_NoURL(t *testing.T) {
	withDefaults(t)
	in := writeSet(t, "in.json", core.AnnotationSet{Width: 800, Height: 600})

	var buf bytes.Buffer
	assert.ErrorIs(t, upload(context.Background(), []string{in}, &buf), api.ErrNoURL)
}
