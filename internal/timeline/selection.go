package timeline

import "github.com/clipforge/clipforge/internal/timecode"

// SelectClip selects a clip; an empty id clears the clip selection.
func (s State) SelectClip(id string) (State, error) {
	if id != "" && s.clipIndex(id) < 0 {
		return s, ErrClipNotFound
	}
	next := s
	next.Selection.ClipID = id
	return next, nil
}

// SetPlayhead moves the playhead, clamped to [0, Duration].
func (s State) SetPlayhead(position float64) State {
	next := s
	next.Selection.Playhead = timecode.Clamp(position, 0, s.Duration)
	return next
}

// SetInPoint marks the start of the region; nil clears it.
func (s State) SetInPoint(position *float64) State {
	next := s
	next.Selection.InPoint = s.clampMark(position)
	return next
}

// SetOutPoint marks the end of the region; nil clears it.
func (s State) SetOutPoint(position *float64) State {
	next := s
	next.Selection.OutPoint = s.clampMark(position)
	return next
}

// ClearSelection drops the selected clip and the marked region.
func (s State) ClearSelection() State {
	next := s
	next.Selection.ClipID = ""
	next.Selection.InPoint = nil
	next.Selection.OutPoint = nil
	return next
}

// SetZoom sets pixels per second, clamped to MinZoom..MaxZoom.
func (s State) SetZoom(zoom float64) State {
	next := s
	next.Zoom = timecode.Clamp(zoom, MinZoom, MaxZoom)
	return next
}

func (s State) SetSnapEnabled(enabled bool) State {
	next := s
	next.Snap.Enabled = enabled
	return next
}

// SetSnapTolerance sets the snap distance in seconds. Non-positive values
// restore the default.
func (s State) SetSnapTolerance(seconds float64) State {
	next := s
	if seconds <= 0 {
		seconds = DefaultSnapTolerance
	}
	next.Snap.Tolerance = seconds
	return next
}

func (s State) clampMark(position *float64) *float64 {
	if position == nil {
		return nil
	}
	v := timecode.Clamp(*position, 0, s.Duration)
	return &v
}
