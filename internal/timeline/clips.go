package timeline

import (
	"sort"

	"github.com/clipforge/clipforge/internal/timecode"
)

// AddClip places a new clip for mediaID at the end of a track. An empty
// trackID targets the first track. The clip reserves playable seconds and
// starts untrimmed.
func (s State) AddClip(mediaID string, playable float64, trackID string) (State, Clip, error) {
	if !timecode.Positive(playable) {
		return s, Clip{}, ErrInvalidDuration
	}
	trackID, err := s.resolveTrack(trackID)
	if err != nil {
		return s, Clip{}, err
	}

	c := Clip{
		ID:               newID(),
		MediaID:          mediaID,
		TrackID:          trackID,
		StartTime:        s.trackEnd(trackID),
		OriginalDuration: playable,
		Duration:         playableDuration(playable, 0, 0),
	}

	next := s.clone()
	next.Clips = append(next.Clips, c)
	return next.withDuration(), c, nil
}

// RemoveClip deletes a clip. Removing one member of a split group leaves every
// other position untouched; removing any other clip closes the gap by
// re-sequencing that clip's track.
func (s State) RemoveClip(id string) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	removed := s.Clips[idx]
	hasSiblings := len(s.splitSiblings(removed)) > 0

	next := s.clone()
	next.Clips = append(next.Clips[:idx], next.Clips[idx+1:]...)
	if next.Selection.ClipID == id {
		next.Selection.ClipID = ""
	}
	if !hasSiblings {
		next.resequence(removed.TrackID)
	}
	return next.withDuration(), nil
}

// UpdateClipTrim sets both trims of a clip. The reserved span never moves, so
// neighbouring clips are unaffected. Callers clamp trims to sensible ranges;
// negative values are treated as zero and the playable duration is floored
// at timecode.MinClipDuration.
func (s State) UpdateClipTrim(id string, trimStart, trimEnd float64) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	if trimStart < 0 {
		trimStart = 0
	}
	if trimEnd < 0 {
		trimEnd = 0
	}
	next := s.clone()
	next.Clips[idx] = next.Clips[idx].withTrim(trimStart, trimEnd)
	return next, nil
}

// SplitClipAtPlayhead cuts a clip at the playhead into two siblings over the
// same reserved span. The playhead must lie strictly inside the playable span.
// The second half becomes the selected clip.
func (s State) SplitClipAtPlayhead(id string) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	c := s.Clips[idx]
	playhead := s.Selection.Playhead
	if !c.Playable().ContainsOpen(playhead) {
		return s, ErrPlayheadOutsideClip
	}

	offset := timecode.ToSourceTime(playhead, c.StartTime)
	firstTrimEnd := c.OriginalDuration - offset
	secondTrimStart := offset
	if !timecode.Positive(rawDuration(c.OriginalDuration, c.TrimStart, firstTrimEnd)) ||
		!timecode.Positive(rawDuration(c.OriginalDuration, secondTrimStart, c.TrimEnd)) {
		return s, ErrDegenerateClip
	}

	group := c.SplitGroupID
	if group == "" {
		group = newID()
	}

	first := c.withTrim(c.TrimStart, firstTrimEnd)
	first.ID = newID()
	first.SplitGroupID = group

	second := c.withTrim(secondTrimStart, c.TrimEnd)
	second.ID = newID()
	second.SplitGroupID = group

	next := s.clone()
	next.Clips = replaceAt(next.Clips, idx, first, second)
	next.Selection.ClipID = second.ID
	return next, nil
}

// DuplicateClip appends a copy of a clip to the end of its own track and
// selects it. The copy does not belong to the original's split group.
func (s State) DuplicateClip(id string) (State, Clip, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, Clip{}, ErrClipNotFound
	}
	dup := s.Clips[idx]
	dup.ID = newID()
	dup.SplitGroupID = ""
	dup.StartTime = s.trackEnd(dup.TrackID)
	if dup.Volume != nil {
		v := *dup.Volume
		dup.Volume = &v
	}

	next := s.clone()
	next.Clips = append(next.Clips, dup)
	next.Selection.ClipID = dup.ID
	return next.withDuration(), dup, nil
}

// DeleteTrimmedRegion turns the hidden head and tail of a trimmed clip into
// standalone untrimmed clips and discards the portion that was visible. The
// track is then re-sequenced.
func (s State) DeleteTrimmedRegion(id string) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	c := s.Clips[idx]
	hasHead := timecode.Positive(c.TrimStart)
	hasTail := timecode.Positive(c.TrimEnd)
	if !hasHead && !hasTail {
		return s, ErrNothingTrimmed
	}

	var parts []Clip
	if hasHead {
		parts = append(parts, c.materialise(c.StartTime, c.SourceOffset, c.TrimStart))
	}
	if hasTail {
		tailStart := c.OriginalDuration - c.TrimEnd
		parts = append(parts, c.materialise(c.StartTime+tailStart, c.SourceOffset+tailStart, c.TrimEnd))
	}

	next := s.clone()
	next.Clips = replaceAt(next.Clips, idx, parts...)
	if next.Selection.ClipID == id {
		next.Selection.ClipID = ""
	}
	next.resequence(c.TrackID)
	return next.withDuration(), nil
}

// materialise builds an untrimmed clip covering span seconds of c's media.
func (c Clip) materialise(start, sourceOffset, span float64) Clip {
	out := Clip{
		ID:               newID(),
		MediaID:          c.MediaID,
		TrackID:          c.TrackID,
		StartTime:        start,
		OriginalDuration: span,
		Duration:         playableDuration(span, 0, 0),
		SourceOffset:     sourceOffset,
		AudioOnly:        c.AudioOnly,
	}
	if c.Volume != nil {
		v := *c.Volume
		out.Volume = &v
	}
	return out
}

// RemoveClipsForMedia deletes every clip that references mediaID and
// re-sequences the affected tracks. It returns the number of clips removed.
func (s State) RemoveClipsForMedia(mediaID string) (State, int) {
	next := s.clone()
	touched := map[string]bool{}
	kept := next.Clips[:0]
	for _, c := range next.Clips {
		if c.MediaID == mediaID {
			touched[c.TrackID] = true
			if next.Selection.ClipID == c.ID {
				next.Selection.ClipID = ""
			}
			continue
		}
		kept = append(kept, c)
	}
	if len(touched) == 0 {
		return s, 0
	}
	removed := len(next.Clips) - len(kept)
	next.Clips = kept
	for trackID := range touched {
		next.resequence(trackID)
	}
	return next.withDuration(), removed
}

// SetClipAudioOnly marks a clip to contribute audio only.
func (s State) SetClipAudioOnly(id string, audioOnly bool) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	next := s.clone()
	next.Clips[idx].AudioOnly = audioOnly
	return next, nil
}

// SetClipVolume overrides the clip volume in percent. nil restores the track volume.
func (s State) SetClipVolume(id string, percent *int) (State, error) {
	idx := s.clipIndex(id)
	if idx < 0 {
		return s, ErrClipNotFound
	}
	next := s.clone()
	if percent == nil {
		next.Clips[idx].Volume = nil
	} else {
		v := clampVolume(*percent)
		next.Clips[idx].Volume = &v
	}
	return next, nil
}

func (s State) resolveTrack(trackID string) (string, error) {
	if len(s.Tracks) == 0 {
		return "", ErrTrackNotFound
	}
	if trackID == "" {
		return s.Tracks[0].ID, nil
	}
	if s.trackIndex(trackID) < 0 {
		return "", ErrTrackNotFound
	}
	return trackID, nil
}

// splitSiblings returns the other clips sharing c's split group and reserved span.
func (s State) splitSiblings(c Clip) []Clip {
	if c.SplitGroupID == "" {
		return nil
	}
	var out []Clip
	for _, o := range s.Clips {
		if o.ID != c.ID && o.TrackID == c.TrackID && o.SplitGroupID == c.SplitGroupID &&
			timecode.Equal(o.StartTime, c.StartTime) && timecode.Equal(o.OriginalDuration, c.OriginalDuration) {
			out = append(out, o)
		}
	}
	return out
}

// resequence packs a track's clips back to back from zero by reserved span,
// in order of current position. Members of a split group sharing a span keep
// sharing it. Must only be called on a cloned state.
func (s *State) resequence(trackID string) {
	var idxs []int
	for i, c := range s.Clips {
		if c.TrackID == trackID {
			idxs = append(idxs, i)
		}
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return positionLess(s.Clips[idxs[a]], s.Clips[idxs[b]])
	})

	// every member of a split group lands on the start its first member got,
	// whatever sorts between them
	type groupSlot struct {
		first    Clip
		packedAt float64
	}
	var slots []groupSlot
	find := func(c Clip) (float64, bool) {
		for _, sl := range slots {
			if sharesSpan(sl.first, c) {
				return sl.packedAt, true
			}
		}
		return 0, false
	}

	cursor := 0.0
	for _, i := range idxs {
		c := s.Clips[i]
		if c.SplitGroupID != "" {
			if at, ok := find(c); ok {
				s.Clips[i].StartTime = at
				continue
			}
			slots = append(slots, groupSlot{first: c, packedAt: cursor})
		}
		s.Clips[i].StartTime = cursor
		cursor += c.OriginalDuration
	}
}

func sharesSpan(a, b Clip) bool {
	return a.SplitGroupID != "" && a.SplitGroupID == b.SplitGroupID &&
		timecode.Equal(a.StartTime, b.StartTime) &&
		timecode.Equal(a.OriginalDuration, b.OriginalDuration)
}

func positionLess(a, b Clip) bool {
	if !timecode.Equal(a.StartTime, b.StartTime) {
		return a.StartTime < b.StartTime
	}
	return a.Playable().Start < b.Playable().Start
}

func sortByPosition(clips []Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		return positionLess(clips[i], clips[j])
	})
}

// replaceAt returns clips with the element at idx replaced by repl.
func replaceAt(clips []Clip, idx int, repl ...Clip) []Clip {
	out := make([]Clip, 0, len(clips)-1+len(repl))
	out = append(out, clips[:idx]...)
	out = append(out, repl...)
	out = append(out, clips[idx+1:]...)
	return out
}
