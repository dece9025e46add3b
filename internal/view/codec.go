package view

import (
	"fmt"

	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/pkg/core"
)

// SkippedRecord describes a stored marker that could not be restored.
type SkippedRecord struct {
	Index    int    `json:"index"`
	TypeName string `json:"typeName"`
	Err      error  `json:"-"`
}

// Reason returns the error text of the skip.
func (s SkippedRecord) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// RestoreReport summarises a Restore call.
type RestoreReport struct {
	Restored int             `json:"restored"`
	Skipped  []SkippedRecord `json:"skipped,omitempty"`
	Rescaled bool            `json:"rescaled"`
	ScaleX   float64         `json:"scaleX,omitempty"`
	ScaleY   float64         `json:"scaleY,omitempty"`
}

// Serialize captures the canvas size and every marker in z-order.
func (v *View) Serialize() (core.AnnotationSet, error) {
	set := core.AnnotationSet{
		Width:   v.width,
		Height:  v.height,
		Markers: make([]core.MarkerState, 0, len(v.markers)),
	}
	for i, m := range v.markers {
		st, err := m.Serialize()
		if err != nil {
			return core.AnnotationSet{}, fmt.Errorf("serializing marker %d (%s): %w", i, m.TypeName(), err)
		}
		set.Markers = append(set.Markers, st)
	}
	return set, nil
}

// Restore replaces every marker with the records of set. Records of
// unknown types or malformed records are skipped and reported. When set
// was saved at a different canvas size, the restored markers are scaled
// to the current one. The last record flagged as selected becomes the
// current marker.
func (v *View) Restore(set core.AnnotationSet) RestoreReport {
	v.SetCurrentMarker(nil)
	v.hovered = nil
	v.pending = ""
	v.clearMarkers()

	var report RestoreReport
	for i, rec := range set.Markers {
		m, err := v.registry.FromState(v.scene, rec)
		if err != nil {
			v.logger.Warn("skipping marker record", "index", i, "type", rec.TypeName, "error", err)
			report.Skipped = append(report.Skipped, SkippedRecord{Index: i, TypeName: rec.TypeName, Err: err})
			continue
		}
		v.addMarker(m)
	}
	report.Restored = len(v.markers)

	if set.Width > 0 && set.Height > 0 && (set.Width != v.width || set.Height != v.height) {
		report.Rescaled = true
		report.ScaleX = v.width / set.Width
		report.ScaleY = v.height / set.Height
		v.scaleMarkers(report.ScaleX, report.ScaleY)
	}

	var selected marker.Marker
	for _, m := range v.markers {
		if m.IsSelected() {
			if selected != nil {
				selected.Deselect()
			}
			selected = m
		}
	}
	if selected != nil {
		v.SetCurrentMarker(selected)
	}

	v.logger.Info("annotations restored",
		"restored", report.Restored,
		"skipped", len(report.Skipped),
		"rescaled", report.Rescaled)
	return report
}

// Resize updates the canvas size and scales every marker by the ratio of
// the new size to the old. Non-positive sizes are ignored.
func (v *View) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		v.logger.Warn("ignoring resize", "width", width, "height", height)
		return
	}
	if width == v.width && height == v.height {
		return
	}
	scaleX, scaleY := width/v.width, height/v.height
	v.width, v.height = width, height
	v.scaleMarkers(scaleX, scaleY)
	v.logger.Debug("view resized", "width", width, "height", height)
}

// SyncHost resizes the view to h's size.
func (v *View) SyncHost(h Host) {
	v.Resize(h.Size())
}

// scaleMarkers scales every marker. The current marker is deselected for
// the duration and reselected afterwards, unless it is editing text.
func (v *View) scaleMarkers(scaleX, scaleY float64) {
	var pre marker.Marker
	if e, ok := v.current.(interface{ Editing() bool }); !ok || !e.Editing() {
		pre = v.current
		if pre != nil {
			v.SetCurrentMarker(nil)
		}
	}
	for _, m := range v.markers {
		m.Scale(scaleX, scaleY)
	}
	if pre != nil {
		v.SetCurrentMarker(pre)
	}
}
