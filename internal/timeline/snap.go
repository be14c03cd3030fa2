package timeline

import (
	"math"
)

// SnapPoints lists candidate snap positions in priority order: a one-second
// grid over max(Duration, 60s), the playhead, then the edges of every clip
// except excludeClipID.
func (s State) SnapPoints(excludeClipID string) []float64 {
	span := math.Max(s.Duration, snapGridMinSpan)
	points := make([]float64, 0, int(span)+2+4*len(s.Clips))
	for t := 0.0; t <= span; t++ {
		points = append(points, t)
	}
	points = append(points, s.Selection.Playhead)
	for _, c := range s.Clips {
		if c.ID == excludeClipID {
			continue
		}
		p := c.Playable()
		points = append(points, c.StartTime, p.Start, p.End, c.End())
	}
	return points
}

// SnapPosition pulls candidate to the nearest snap point within the snap
// tolerance. Ties go to the earlier point in SnapPoints order. The candidate
// is returned unchanged when snapping is off or nothing is close enough.
func (s State) SnapPosition(candidate float64, excludeClipID string) float64 {
	if !s.Snap.Enabled {
		return candidate
	}
	tolerance := s.Snap.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultSnapTolerance
	}

	best := candidate
	bestDist := math.Inf(1)
	for _, p := range s.SnapPoints(excludeClipID) {
		d := math.Abs(p - candidate)
		if d <= tolerance && d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}
