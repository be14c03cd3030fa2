package timeline

import (
	"fmt"

	"github.com/clipforge/clipforge/internal/timecode"
)

// Snapshot is the persisted part of a State: topology and view settings.
// Selection and playhead are ephemeral and not included.
type Snapshot struct {
	Version     int          `json:"version"`
	Tracks      []Track      `json:"tracks"`
	SoloTrackID string       `json:"solo_track_id,omitempty"`
	Clips       []Clip       `json:"clips"`
	Zoom        float64      `json:"zoom"`
	Snap        SnapSettings `json:"snap"`
}

func (s State) Snapshot() Snapshot {
	return Snapshot{
		Version:     SchemaVersion,
		Tracks:      append([]Track(nil), s.Tracks...),
		SoloTrackID: s.SoloTrackID,
		Clips:       append([]Clip(nil), s.Clips...),
		Zoom:        s.Zoom,
		Snap:        s.Snap,
	}
}

// Restore rebuilds a State from a snapshot. A foreign schema version or a
// snapshot that breaks the timeline invariants yields New() and false.
func Restore(snap Snapshot) (State, bool) {
	if snap.Version != SchemaVersion {
		return New(), false
	}
	st := State{
		Tracks:      append([]Track(nil), snap.Tracks...),
		SoloTrackID: snap.SoloTrackID,
		Clips:       append([]Clip{}, snap.Clips...),
		Zoom:        snap.Zoom,
		Snap:        snap.Snap,
	}
	if st.Zoom == 0 {
		st.Zoom = DefaultZoom
	}
	if st.Snap.Tolerance <= 0 {
		st.Snap.Tolerance = DefaultSnapTolerance
	}
	st = st.withDuration()
	if err := st.Validate(); err != nil {
		return New(), false
	}
	return st, true
}

// Validate checks the structural invariants of the timeline.
func (s State) Validate() error {
	if len(s.Tracks) == 0 {
		return fmt.Errorf("timeline has no tracks")
	}

	mains, solos := 0, 0
	seen := make(map[string]bool, len(s.Tracks))
	for _, t := range s.Tracks {
		if seen[t.ID] {
			return fmt.Errorf("duplicate track id %s", t.ID)
		}
		seen[t.ID] = true
		if t.Kind == TrackMain {
			mains++
		}
		if t.Solo {
			solos++
			if t.ID != s.SoloTrackID {
				return fmt.Errorf("track %s is solo but solo target is %q", t.ID, s.SoloTrackID)
			}
		}
	}
	if mains != 1 {
		return fmt.Errorf("timeline has %d main tracks, want 1", mains)
	}
	if solos > 1 {
		return fmt.Errorf("timeline has %d solo tracks", solos)
	}
	if s.SoloTrackID != "" && !seen[s.SoloTrackID] {
		return fmt.Errorf("solo target %s does not exist", s.SoloTrackID)
	}

	for _, c := range s.Clips {
		if !seen[c.TrackID] {
			return fmt.Errorf("clip %s references missing track %s", c.ID, c.TrackID)
		}
		if c.TrimStart < 0 || c.TrimEnd < 0 {
			return fmt.Errorf("clip %s has negative trim", c.ID)
		}
		if c.Duration < timecode.MinClipDuration-timecode.Epsilon {
			return fmt.Errorf("clip %s duration %.3f below minimum", c.ID, c.Duration)
		}
		if !timecode.Positive(c.OriginalDuration) {
			return fmt.Errorf("clip %s has no reserved span", c.ID)
		}
	}
	return nil
}
