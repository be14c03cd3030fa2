package compose

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipforge/clipforge/internal/timecode"
	"github.com/clipforge/clipforge/internal/timeline"
)

// EDLEvent is one edit on the record side. Times are in seconds.
type EDLEvent struct {
	ClipName  string
	MediaPath string
	SourceIn  float64
	SourceOut float64
}

// MainTrackEvents lists the main track's clips in playback order.
func MainTrackEvents(st timeline.State, catalog MediaLookup) ([]EDLEvent, error) {
	mainTrack, ok := st.MainTrack()
	if !ok {
		return nil, ErrNoClips
	}
	clips := st.ClipsOnTrack(mainTrack.ID)
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	events := make([]EDLEvent, 0, len(clips))
	for _, c := range clips {
		item, ok := catalog.Get(c.MediaID)
		if !ok {
			return nil, fmt.Errorf("clip %s: %w", c.ID, ErrMediaNotFound)
		}
		events = append(events, EDLEvent{
			ClipName:  item.Name,
			MediaPath: item.SourcePath,
			SourceIn:  c.SourceIn(),
			SourceOut: c.SourceIn() + c.Duration,
		})
	}
	return events, nil
}

// GenerateEDL renders events as a CMX3600 edit decision list with the record
// side laid end to end from zero.
func GenerateEDL(events []EDLEvent, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	fcm := "FCM: NON-DROP FRAME"
	if math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01 {
		fcm = "FCM: DROP FRAME"
	}

	lines := []string{"TITLE: " + title, fcm, ""}

	record := 0.0
	for i, ev := range events {
		length := ev.SourceOut - ev.SourceIn
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "AA/V",
				timecode.Timecode(ev.SourceIn, fps), timecode.Timecode(ev.SourceOut, fps),
				timecode.Timecode(record, fps), timecode.Timecode(record+length, fps)),
			"* FROM CLIP NAME:  "+ev.ClipName,
			"* SOURCE FILE:  "+ev.MediaPath,
		)
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}
