// Package compose turns a timeline into the declarative request handed to the
// render engine, and into edit decision lists.
package compose

import (
	"errors"
	"fmt"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/timeline"
)

var (
	ErrNoClips = errors.New("no clips to export")

	// ErrMediaNotFound is returned when a clip references a media item that is
	// no longer in the catalog.
	ErrMediaNotFound = errors.New("media not found: remove and re-add clip")

	ErrInvalidRequest = errors.New("invalid render request")
)

type Kind string

const (
	KindSingleTrack Kind = "single_track"
	KindMultiTrack  Kind = "multi_track"
)

// ClipInput is one segment to render, in media time: TrimStart seconds are
// skipped at the head of the file, Duration seconds are played, and TrimEnd
// seconds of the file remain after the segment.
type ClipInput struct {
	ClipID     string  `json:"clip_id"`
	SourcePath string  `json:"source_path"`
	TrimStart  float64 `json:"trim_start"`
	TrimEnd    float64 `json:"trim_end"`
	Duration   float64 `json:"duration"`
	AudioOnly  bool    `json:"audio_only,omitempty"`
	Volume     *int    `json:"volume,omitempty"`
}

// SingleTrack is a straight sequential concatenation of clips.
type SingleTrack struct {
	Clips  []ClipInput `json:"clips"`
	Muted  bool        `json:"muted"`
	Volume int         `json:"volume"`
}

type TrackInput struct {
	TrackID string             `json:"track_id"`
	Kind    timeline.TrackKind `json:"kind"`
	Muted   bool               `json:"muted"`
	Volume  int                `json:"volume"`
	Clips   []ClipInput        `json:"clips"`
}

// MultiTrack composites overlay tracks over the main track. Tracks[0] is the
// main track.
type MultiTrack struct {
	Tracks       []TrackInput `json:"tracks"`
	DurationMode DurationMode `json:"duration_mode"`
	Pip          PipConfig    `json:"pip"`
}

// Request is the render hand-off. Exactly one of Single and Multi is set,
// matching Kind.
type Request struct {
	Kind       Kind         `json:"kind"`
	OutputPath string       `json:"output_path"`
	Format     Format       `json:"format"`
	Quality    Quality      `json:"quality"`
	Single     *SingleTrack `json:"single,omitempty"`
	Multi      *MultiTrack  `json:"multi,omitempty"`
}

func NewSingleTrackRequest(outputPath string, settings Settings, body SingleTrack) (Request, error) {
	req := Request{
		Kind:       KindSingleTrack,
		OutputPath: outputPath,
		Format:     settings.Format,
		Quality:    settings.Quality,
		Single:     &body,
	}
	return req, req.Validate()
}

func NewMultiTrackRequest(outputPath string, settings Settings, tracks []TrackInput) (Request, error) {
	req := Request{
		Kind:       KindMultiTrack,
		OutputPath: outputPath,
		Format:     settings.Format,
		Quality:    settings.Quality,
		Multi: &MultiTrack{
			Tracks:       tracks,
			DurationMode: settings.DurationMode,
			Pip:          settings.Pip,
		},
	}
	return req, req.Validate()
}

// Validate checks that the request is well formed for its kind.
func (r Request) Validate() error {
	if r.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}
	switch r.Kind {
	case KindSingleTrack:
		if r.Single == nil || r.Multi != nil {
			return fmt.Errorf("%w: single-track request must carry only a single-track body", ErrInvalidRequest)
		}
		if len(r.Single.Clips) == 0 {
			return ErrNoClips
		}
		return validateClips(r.Single.Clips)
	case KindMultiTrack:
		if r.Multi == nil || r.Single != nil {
			return fmt.Errorf("%w: multi-track request must carry only a multi-track body", ErrInvalidRequest)
		}
		if len(r.Multi.Tracks) == 0 {
			return ErrNoClips
		}
		if r.Multi.Tracks[0].Kind != timeline.TrackMain {
			return fmt.Errorf("%w: first track must be the main track", ErrInvalidRequest)
		}
		for _, t := range r.Multi.Tracks {
			if err := validateClips(t.Clips); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
}

func validateClips(clips []ClipInput) error {
	for _, c := range clips {
		if c.SourcePath == "" {
			return fmt.Errorf("%w: clip %s has no source", ErrInvalidRequest, c.ClipID)
		}
		if c.Duration <= 0 || c.TrimStart < 0 {
			return fmt.Errorf("%w: clip %s has an empty segment", ErrInvalidRequest, c.ClipID)
		}
	}
	return nil
}

// ClipCount is the number of segments in the request.
func (r Request) ClipCount() int {
	switch {
	case r.Single != nil:
		return len(r.Single.Clips)
	case r.Multi != nil:
		n := 0
		for _, t := range r.Multi.Tracks {
			n += len(t.Clips)
		}
		return n
	}
	return 0
}

// MediaLookup resolves media ids. media.Catalog implements it.
type MediaLookup interface {
	Get(id string) (media.Item, bool)
}

// Build produces the render request for the current timeline. A timeline
// whose clips all sit on the main track becomes a single-track request;
// anything else is multi-track.
func Build(st timeline.State, catalog MediaLookup, outputPath string, settings Settings) (Request, error) {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return Request{}, err
	}

	mainTrack, ok := st.MainTrack()
	if !ok {
		return Request{}, fmt.Errorf("%w: timeline has no main track", ErrInvalidRequest)
	}

	var mainInput *TrackInput
	var overlays []TrackInput
	for _, t := range st.OrderedTracks() {
		clips, err := trackClips(st, catalog, t.ID)
		if err != nil {
			return Request{}, err
		}
		input := TrackInput{
			TrackID: t.ID,
			Kind:    t.Kind,
			Muted:   st.EffectiveMuted(t.ID),
			Volume:  t.Volume,
			Clips:   clips,
		}
		if t.ID == mainTrack.ID {
			mainInput = &input
			continue
		}
		if len(clips) > 0 {
			overlays = append(overlays, input)
		}
	}

	if len(overlays) == 0 {
		if len(mainInput.Clips) == 0 {
			return Request{}, ErrNoClips
		}
		return NewSingleTrackRequest(outputPath, settings, SingleTrack{
			Clips:  mainInput.Clips,
			Muted:  mainInput.Muted,
			Volume: mainInput.Volume,
		})
	}

	tracks := append([]TrackInput{*mainInput}, overlays...)
	return NewMultiTrackRequest(outputPath, settings, tracks)
}

func trackClips(st timeline.State, catalog MediaLookup, trackID string) ([]ClipInput, error) {
	clips := st.ClipsOnTrack(trackID)
	out := make([]ClipInput, 0, len(clips))
	for _, c := range clips {
		item, ok := catalog.Get(c.MediaID)
		if !ok {
			return nil, fmt.Errorf("clip %s: %w", c.ID, ErrMediaNotFound)
		}
		trimEnd := item.Duration - c.SourceIn() - c.Duration
		if trimEnd < 0 {
			trimEnd = 0
		}
		out = append(out, ClipInput{
			ClipID:     c.ID,
			SourcePath: item.SourcePath,
			TrimStart:  c.SourceIn(),
			TrimEnd:    trimEnd,
			Duration:   c.Duration,
			AudioOnly:  c.AudioOnly,
			Volume:     c.Volume,
		})
	}
	return out, nil
}
