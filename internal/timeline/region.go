package timeline

import (
	"github.com/clipforge/clipforge/internal/timecode"
)

// DeleteSelectedRegion removes the marked in/out range from the playable
// spans of the clips on one track: the selected clip's track, or the first
// track when nothing is selected. Reserved spans are never moved. Afterwards
// the clip selection and the marked range are cleared.
//
// Per overlapping clip:
//   - region covers the playable span: the clip is deleted
//   - region strictly inside: the clip becomes two split siblings, before and after
//   - region overlaps the playable start: trimStart extends to the region end
//   - region overlaps the playable end: trimEnd extends back to the region start
func (s State) DeleteSelectedRegion() (State, error) {
	region, ok := s.Selection.Region()
	if !ok || region.Empty() {
		return s, ErrNoRegion
	}

	trackID, err := s.regionTrack()
	if err != nil {
		return s, err
	}

	next := s.clone()
	out := make([]Clip, 0, len(next.Clips)+1)
	touched := false

	for _, c := range next.Clips {
		if c.TrackID != trackID || !c.Playable().Overlaps(region) {
			out = append(out, c)
			continue
		}

		parts, err := cutRegion(c, region)
		if err != nil {
			return s, err
		}
		touched = true
		out = append(out, parts...)
	}

	if !touched {
		return s, ErrNoOverlap
	}

	next.Clips = out
	next.Selection.ClipID = ""
	next.Selection.InPoint = nil
	next.Selection.OutPoint = nil
	return next.withDuration(), nil
}

func (s State) regionTrack() (string, error) {
	if s.Selection.ClipID != "" {
		if c, ok := s.Clip(s.Selection.ClipID); ok {
			return c.TrackID, nil
		}
	}
	return s.resolveTrack("")
}

// cutRegion applies one of the four overlap cases to c. It returns the clips
// that replace c, possibly none.
func cutRegion(c Clip, region timecode.Interval) ([]Clip, error) {
	playable := c.Playable()
	cutStart := timecode.ToSourceTime(region.Start, c.StartTime)
	cutEnd := timecode.ToSourceTime(region.End, c.StartTime)

	switch {
	case region.Covers(playable):
		return nil, nil

	case playable.StrictlyInside(region):
		group := c.SplitGroupID
		if group == "" {
			group = newID()
		}
		var parts []Clip
		beforeTrimEnd := c.OriginalDuration - cutStart
		if timecode.Positive(rawDuration(c.OriginalDuration, c.TrimStart, beforeTrimEnd)) {
			before := c.withTrim(c.TrimStart, beforeTrimEnd)
			before.ID = newID()
			before.SplitGroupID = group
			parts = append(parts, before)
		}
		if timecode.Positive(rawDuration(c.OriginalDuration, cutEnd, c.TrimEnd)) {
			after := c.withTrim(cutEnd, c.TrimEnd)
			after.ID = newID()
			after.SplitGroupID = group
			parts = append(parts, after)
		}
		return parts, nil

	case timecode.LessOrEqual(region.Start, playable.Start):
		if !timecode.Positive(rawDuration(c.OriginalDuration, cutEnd, c.TrimEnd)) {
			return nil, ErrDegenerateClip
		}
		return []Clip{c.withTrim(cutEnd, c.TrimEnd)}, nil

	default:
		trimEnd := c.OriginalDuration - cutStart
		if !timecode.Positive(rawDuration(c.OriginalDuration, c.TrimStart, trimEnd)) {
			return nil, ErrDegenerateClip
		}
		return []Clip{c.withTrim(c.TrimStart, trimEnd)}, nil
	}
}
