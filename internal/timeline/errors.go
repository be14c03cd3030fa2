package timeline

import "errors"

var (
	ErrTrackNotFound       = errors.New("track not found")
	ErrClipNotFound        = errors.New("clip not found")
	ErrLastTrack           = errors.New("cannot remove the last track")
	ErrPlayheadOutsideClip = errors.New("playhead is outside the clip's playable span")
	ErrNothingTrimmed      = errors.New("clip has no trimmed region")
	ErrNoRegion            = errors.New("no in/out region marked")
	ErrNoOverlap           = errors.New("marked region does not overlap any clip")
	ErrInvalidDuration     = errors.New("clip duration must be positive")

	// ErrDegenerateClip marks an aborted edit: applying it would have left a
	// clip without playable duration.
	ErrDegenerateClip = errors.New("operation would produce a clip with no playable duration")
)

// IsNotFound reports whether err refers to a missing track or clip.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTrackNotFound) || errors.Is(err, ErrClipNotFound)
}

// IsAborted reports whether err is a degenerate-result abort rather than an
// unmet precondition.
func IsAborted(err error) bool {
	return errors.Is(err, ErrDegenerateClip)
}

// IsNoop reports whether err is a rejected operation whose preconditions were
// not met. The state is unchanged in that case, as it is for aborts.
func IsNoop(err error) bool {
	return err != nil && !IsAborted(err)
}
