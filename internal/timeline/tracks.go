package timeline

import (
	"fmt"
	"sort"
)

// AddTrack appends a track above the current top track. An empty registry
// gets the canonical main track instead. Only one main track may exist, so a
// request for a second main track yields an overlay.
func (s State) AddTrack(kind TrackKind) (State, Track) {
	next := s.clone()

	if len(next.Tracks) == 0 {
		t := newMainTrack()
		next.Tracks = append(next.Tracks, t)
		return next, t
	}

	if _, hasMain := next.MainTrack(); hasMain || kind != TrackMain {
		kind = TrackOverlay
	}

	maxOrder := next.Tracks[0].Order
	overlays := 0
	for _, t := range next.Tracks {
		if t.Order > maxOrder {
			maxOrder = t.Order
		}
		if t.Kind == TrackOverlay {
			overlays++
		}
	}

	name := "Main"
	if kind == TrackOverlay {
		name = fmt.Sprintf("Overlay %d", overlays+1)
	}

	t := Track{
		ID:     newID(),
		Name:   name,
		Kind:   kind,
		Order:  maxOrder + 1,
		Volume: DefaultTrackVolume,
		Height: DefaultTrackHeight,
	}
	next.Tracks = append(next.Tracks, t)
	return next, t
}

// RemoveTrack deletes a track and every clip on it. The last remaining track
// cannot be removed. When the main track goes, the lowest remaining track
// becomes main.
func (s State) RemoveTrack(id string) (State, error) {
	idx := s.trackIndex(id)
	if idx < 0 {
		return s, ErrTrackNotFound
	}
	if len(s.Tracks) <= 1 {
		return s, ErrLastTrack
	}

	next := s.clone()
	removed := next.Tracks[idx]
	next.Tracks = append(next.Tracks[:idx], next.Tracks[idx+1:]...)

	if removed.Kind == TrackMain {
		lowest := 0
		for i, t := range next.Tracks {
			if t.Order < next.Tracks[lowest].Order {
				lowest = i
			}
		}
		next.Tracks[lowest].Kind = TrackMain
	}

	if next.SoloTrackID == id {
		next.SoloTrackID = ""
	}

	kept := next.Clips[:0]
	for _, c := range next.Clips {
		if c.TrackID == id {
			if next.Selection.ClipID == c.ID {
				next.Selection.ClipID = ""
			}
			continue
		}
		kept = append(kept, c)
	}
	next.Clips = kept

	return next.withDuration(), nil
}

// ToggleMute flips the muted flag of a track.
func (s State) ToggleMute(id string) (State, error) {
	idx := s.trackIndex(id)
	if idx < 0 {
		return s, ErrTrackNotFound
	}
	next := s.clone()
	next.Tracks[idx].Muted = !next.Tracks[idx].Muted
	return next, nil
}

// ToggleSolo makes id the only soloed track, or clears solo entirely when id
// is already soloed.
func (s State) ToggleSolo(id string) (State, error) {
	if s.trackIndex(id) < 0 {
		return s, ErrTrackNotFound
	}
	next := s.clone()
	if next.SoloTrackID == id {
		next.SoloTrackID = ""
	} else {
		next.SoloTrackID = id
	}
	for i := range next.Tracks {
		next.Tracks[i].Solo = next.Tracks[i].ID == next.SoloTrackID
	}
	return next, nil
}

// SetTrackVolume sets the track volume in percent, clamped to 0..200.
func (s State) SetTrackVolume(id string, percent int) (State, error) {
	idx := s.trackIndex(id)
	if idx < 0 {
		return s, ErrTrackNotFound
	}
	next := s.clone()
	next.Tracks[idx].Volume = clampVolume(percent)
	return next, nil
}

func (s State) RenameTrack(id, name string) (State, error) {
	idx := s.trackIndex(id)
	if idx < 0 {
		return s, ErrTrackNotFound
	}
	next := s.clone()
	next.Tracks[idx].Name = name
	return next, nil
}

// EffectiveMuted reports whether a track is silent for playback and export:
// muted itself, or another track is soloed.
func (s State) EffectiveMuted(id string) bool {
	t, ok := s.Track(id)
	if !ok {
		return true
	}
	return t.Muted || (s.SoloTrackID != "" && s.SoloTrackID != id)
}

// OrderedTracks returns the tracks sorted bottom to top.
func (s State) OrderedTracks() []Track {
	out := append([]Track(nil), s.Tracks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxTrackVolume {
		return MaxTrackVolume
	}
	return v
}
