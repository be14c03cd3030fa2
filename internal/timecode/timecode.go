// Package timecode holds the time arithmetic shared by the editing engine:
// tolerant float comparisons, half-open intervals, the timeline-to-source
// conversion and display formatting.
package timecode

import (
	"fmt"
	"math"
)

const (
	// Epsilon is the tolerance used for every positional comparison.
	Epsilon = 1e-6

	// MinClipDuration is the floor applied to a clip's playable duration.
	MinClipDuration = 0.1
)

// Equal reports whether a and b are within Epsilon of each other.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// Less reports a < b beyond tolerance.
func Less(a, b float64) bool {
	return a < b-Epsilon
}

// LessOrEqual reports a <= b within tolerance.
func LessOrEqual(a, b float64) bool {
	return a <= b+Epsilon
}

// Positive reports whether v is strictly greater than zero beyond tolerance.
func Positive(v float64) bool {
	return v > Epsilon
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToSourceTime converts a timeline position into an offset within a clip's
// reserved span. Every trim and region computation goes through here.
func ToSourceTime(timelineTime, clipStart float64) float64 {
	return timelineTime - clipStart
}

// Interval is a half-open span [Start, End) in seconds.
type Interval struct {
	Start float64
	End   float64
}

// NewInterval orders its bounds, so callers may pass in/out points in either order.
func NewInterval(a, b float64) Interval {
	if b < a {
		a, b = b, a
	}
	return Interval{Start: a, End: b}
}

func (i Interval) Len() float64 {
	return i.End - i.Start
}

// Empty reports whether the interval has no measurable length.
func (i Interval) Empty() bool {
	return !Positive(i.Len())
}

// Overlaps reports whether two half-open intervals share any measurable time.
func (i Interval) Overlaps(o Interval) bool {
	return Less(i.Start, o.End) && Less(o.Start, i.End)
}

// Covers reports whether i fully contains o.
func (i Interval) Covers(o Interval) bool {
	return LessOrEqual(i.Start, o.Start) && LessOrEqual(o.End, i.End)
}

// StrictlyInside reports whether o lies inside i without touching either bound.
func (i Interval) StrictlyInside(o Interval) bool {
	return Less(i.Start, o.Start) && Less(o.End, i.End)
}

// ContainsOpen reports whether t lies in the open interval (Start, End).
func (i Interval) ContainsOpen(t float64) bool {
	return Less(i.Start, t) && Less(t, i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", i.Start, i.End)
}

// FormatTime renders seconds as m:ss.cc, or m:ss when centiseconds is false.
func FormatTime(seconds float64, centiseconds bool) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	if !centiseconds {
		return fmt.Sprintf("%d:%02d", mins, secs)
	}
	cs := int(math.Mod(seconds, 1) * 100)
	return fmt.Sprintf("%d:%02d.%02d", mins, secs, cs)
}

// FormatWithFrames renders seconds as m:ss:ff at the given frame rate.
func FormatWithFrames(seconds float64, fps float64) string {
	if fps <= 0 {
		fps = 30
	}
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	frames := int(math.Mod(seconds, 1) * fps)
	return fmt.Sprintf("%d:%02d:%02d", mins, secs, frames)
}

// FormatForFilename renders seconds as 1m05s.
func FormatForFilename(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%dm%02ds", mins, secs)
}

// Timecode renders seconds as HH:MM:SS:FF at an integer frame rate.
func Timecode(seconds float64, fps int) string {
	if fps <= 0 {
		fps = 30
	}
	totalFrames := int(math.Round(seconds * float64(fps)))
	if totalFrames < 0 {
		totalFrames = 0
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	mins := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, mins, secs, frames)
}
