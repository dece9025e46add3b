package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfSink opens a UDP GELF writer to a Graylog input at addr. Pass it
// to SlogManager.Setup as a sink and close it on shutdown.
func NewGelfSink(addr, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("opening gelf writer to %s: %w", addr, err)
	}
	w.Facility = facility
	return w, nil
}
