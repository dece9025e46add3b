package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGelfSink(t *testing.T) {
	w, err := NewGelfSink("127.0.0.1:12201", "markerview")
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "markerview", w.Facility)
}

func TestNewGelfSink_BadAddress(t *testing.T) {
	_, err := NewGelfSink("not an address", "markerview")
	assert.Error(t, err)
}
