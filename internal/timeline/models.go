// Package timeline implements the editing model of the editor: the track
// registry, the placed clip instances and the operations that rearrange them.
//
// State is a value. Every operation is a method on State that returns a new
// State and leaves the receiver untouched, so a caller can hold on to any
// snapshot while the next edit is being computed. Operations that cannot be
// applied return the receiver unchanged together with a sentinel error.
//
// Clips use a reserved-span placement model: a clip occupies
// [StartTime, StartTime+OriginalDuration) on its track regardless of trim.
// Trimming only narrows the playable window inside that span, and the track
// is re-sequenced by summing OriginalDuration, never Duration.
package timeline

import (
	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/timecode"
)

// SchemaVersion identifies the persisted timeline layout. Snapshots written
// with another version are discarded on restore.
const SchemaVersion = 1

const (
	DefaultTrackVolume = 100
	MaxTrackVolume     = 200
	DefaultTrackHeight = 60

	DefaultZoom = 50.0
	MinZoom     = 2.0
	MaxZoom     = 200.0

	DefaultSnapTolerance = 0.5

	// snapGridMinSpan is the minimum length covered by the one-second snap grid.
	snapGridMinSpan = 60.0
)

type TrackKind string

const (
	TrackMain    TrackKind = "main"
	TrackOverlay TrackKind = "overlay"
)

// Track is a lane on the timeline. Order 0 is drawn at the bottom.
type Track struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Kind   TrackKind `json:"kind"`
	Order  int       `json:"order"`
	Muted  bool      `json:"muted"`
	Solo   bool      `json:"solo"`
	Volume int       `json:"volume"`
	Height int       `json:"height"`
}

// Clip is one placement of a media item on a track.
//
// SourceOffset is the position in the media file at which the reserved span
// begins. It is zero for clips added from the catalog and non-zero only for
// clips materialised from a previously trimmed tail.
//
// Clips produced by a split share a SplitGroupID and an identical reserved span.
type Clip struct {
	ID               string  `json:"id"`
	MediaID          string  `json:"media_id"`
	TrackID          string  `json:"track_id"`
	StartTime        float64 `json:"start_time"`
	OriginalDuration float64 `json:"original_duration"`
	TrimStart        float64 `json:"trim_start"`
	TrimEnd          float64 `json:"trim_end"`
	Duration         float64 `json:"duration"`
	SourceOffset     float64 `json:"source_offset,omitempty"`
	SplitGroupID     string  `json:"split_group_id,omitempty"`
	AudioOnly        bool    `json:"audio_only,omitempty"`
	Volume           *int    `json:"volume,omitempty"`
}

// Reserved is the clip's fixed footprint on its track.
func (c Clip) Reserved() timecode.Interval {
	return timecode.Interval{Start: c.StartTime, End: c.End()}
}

// Playable is the visible sub-range of the reserved span.
func (c Clip) Playable() timecode.Interval {
	return timecode.Interval{
		Start: c.StartTime + c.TrimStart,
		End:   c.StartTime + c.OriginalDuration - c.TrimEnd,
	}
}

// End is the timeline position just after the reserved span.
func (c Clip) End() float64 {
	return c.StartTime + c.OriginalDuration
}

// SourceIn is the media position at which playback of this clip begins.
func (c Clip) SourceIn() float64 {
	return c.SourceOffset + c.TrimStart
}

// withTrim returns a copy of c carrying the given trims and the derived duration.
func (c Clip) withTrim(trimStart, trimEnd float64) Clip {
	c.TrimStart = trimStart
	c.TrimEnd = trimEnd
	c.Duration = playableDuration(c.OriginalDuration, trimStart, trimEnd)
	return c
}

func rawDuration(original, trimStart, trimEnd float64) float64 {
	return original - trimStart - trimEnd
}

func playableDuration(original, trimStart, trimEnd float64) float64 {
	d := rawDuration(original, trimStart, trimEnd)
	if d < timecode.MinClipDuration {
		return timecode.MinClipDuration
	}
	return d
}

// Selection is the editor's pointer state. It is not part of the persisted snapshot.
type Selection struct {
	ClipID   string   `json:"clip_id,omitempty"`
	InPoint  *float64 `json:"in_point,omitempty"`
	OutPoint *float64 `json:"out_point,omitempty"`
	Playhead float64  `json:"playhead"`
}

// Region returns the marked in/out range, ordered. ok is false when either
// bound is missing.
func (sel Selection) Region() (timecode.Interval, bool) {
	if sel.InPoint == nil || sel.OutPoint == nil {
		return timecode.Interval{}, false
	}
	return timecode.NewInterval(*sel.InPoint, *sel.OutPoint), true
}

type SnapSettings struct {
	Enabled   bool    `json:"enabled"`
	Tolerance float64 `json:"tolerance"`
}

// State is the full timeline: tracks, clips, derived duration, view settings
// and selection.
type State struct {
	Tracks      []Track      `json:"tracks"`
	SoloTrackID string       `json:"solo_track_id,omitempty"`
	Clips       []Clip       `json:"clips"`
	Duration    float64      `json:"duration"`
	Zoom        float64      `json:"zoom"`
	Snap        SnapSettings `json:"snap"`
	Selection   Selection    `json:"selection"`
}

var newID = uuid.NewString

// New returns the canonical empty timeline: one main track and no clips.
func New() State {
	return State{
		Tracks: []Track{newMainTrack()},
		Clips:  []Clip{},
		Zoom:   DefaultZoom,
		Snap:   SnapSettings{Enabled: true, Tolerance: DefaultSnapTolerance},
	}
}

func newMainTrack() Track {
	return Track{
		ID:     newID(),
		Name:   "Main",
		Kind:   TrackMain,
		Order:  0,
		Volume: DefaultTrackVolume,
		Height: DefaultTrackHeight,
	}
}

// clone copies the slices so the result can be edited without touching s.
// Pointer fields are shared; operations always replace them instead of
// writing through them.
func (s State) clone() State {
	next := s
	next.Tracks = append([]Track(nil), s.Tracks...)
	next.Clips = append(make([]Clip, 0, len(s.Clips)+2), s.Clips...)
	return next
}

// Track returns the track with id.
func (s State) Track(id string) (Track, bool) {
	if i := s.trackIndex(id); i >= 0 {
		return s.Tracks[i], true
	}
	return Track{}, false
}

// Clip returns the clip with id.
func (s State) Clip(id string) (Clip, bool) {
	if i := s.clipIndex(id); i >= 0 {
		return s.Clips[i], true
	}
	return Clip{}, false
}

// ClipsOnTrack returns the clips of a track ordered by playable start.
func (s State) ClipsOnTrack(trackID string) []Clip {
	var out []Clip
	for _, c := range s.Clips {
		if c.TrackID == trackID {
			out = append(out, c)
		}
	}
	sortByPosition(out)
	return out
}

// MainTrack returns the track of kind main.
func (s State) MainTrack() (Track, bool) {
	for _, t := range s.Tracks {
		if t.Kind == TrackMain {
			return t, true
		}
	}
	return Track{}, false
}

func (s State) trackIndex(id string) int {
	for i, t := range s.Tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s State) clipIndex(id string) int {
	for i, c := range s.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// trackEnd is the append position of a track: the end of its last reserved span.
func (s State) trackEnd(trackID string) float64 {
	end := 0.0
	for _, c := range s.Clips {
		if c.TrackID == trackID && c.End() > end {
			end = c.End()
		}
	}
	return end
}

// withDuration recomputes the derived timeline duration and keeps the
// playhead inside it.
func (s State) withDuration() State {
	d := 0.0
	for _, c := range s.Clips {
		if c.End() > d {
			d = c.End()
		}
	}
	s.Duration = d
	s.Selection.Playhead = timecode.Clamp(s.Selection.Playhead, 0, d)
	return s
}
