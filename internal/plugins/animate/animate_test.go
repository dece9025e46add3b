package animate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerview/internal/events"
	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/core"
)

func annotationSet(t *testing.T, n int) core.AnnotationSet {
	t.Helper()
	set := core.AnnotationSet{Width: 800, Height: 600}
	for i := range n {
		m := marker.NewFrame(scene.New())
		x := float64(10 + i*120)
		m.PointerDown(core.Point{X: x, Y: 10}, nil)
		m.PointerUp(core.Point{X: x + 100, Y: 60})
		st, err := m.Serialize()
		require.NoError(t, err)
		set.Markers = append(set.Markers, st)
	}
	return set
}

func TestPlugin_StaggersOnLoad(t *testing.T) {
	p := New()
	v, err := view.New(800, 600, view.WithPlugins(p))
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	state := annotationSet(t, 3)
	_, err = v.Show(&state)
	require.NoError(t, err)

	markers := v.Markers()
	require.Len(t, markers, 3)
	for _, m := range markers {
		assert.Equal(t, Class, m.Container().Attr("class"))
	}
	assert.Contains(t, markers[0].Container().Attr("style"), "500ms ease-in 0ms")
	assert.Contains(t, markers[1].Container().Attr("style"), "500ms ease-in 250ms")
	assert.Contains(t, markers[2].Container().Attr("style"), "500ms ease-in 500ms")
}

func TestPlugin_InitOncePerView(t *testing.T) {
	p := New()
	v, err := view.New(800, 600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	p.Init(v)
	p.Init(v)

	calls := 0
	_, err = v.AddEventListener(events.Load, func(*view.View) { calls++ })
	require.NoError(t, err)

	p.Detach(v)
	_, err = v.Show(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, p.views)
}
