package compose

import (
	"errors"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/timeline"
)

func TestGenerateEDL_SingleEvent(t *testing.T) {
	events := []EDLEvent{{ClipName: "Intro", MediaPath: "/media/intro.mp4", SourceIn: 0, SourceOut: 2}}

	edl := GenerateEDL(events, "Project One", 30.0)

	for _, want := range []string{
		"TITLE: Project One",
		"FCM: NON-DROP FRAME",
		"001  AX       AA/V  C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00",
		"* FROM CLIP NAME:  Intro",
		"* SOURCE FILE:  /media/intro.mp4",
	} {
		if !strings.Contains(edl, want) {
			t.Fatalf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestGenerateEDL_RecordSideIsContiguous(t *testing.T) {
	events := []EDLEvent{
		{ClipName: "A", MediaPath: "/a.mp4", SourceIn: 3, SourceOut: 4},
		{ClipName: "B", MediaPath: "/b.mp4", SourceIn: 1, SourceOut: 2.5},
	}

	edl := GenerateEDL(events, "Multi", 30.0)

	if !strings.Contains(edl, "001  AX       AA/V  C        00:00:03:00 00:00:04:00 00:00:00:00 00:00:01:00") {
		t.Fatalf("first event mismatch:\n%s", edl)
	}
	if !strings.Contains(edl, "002  AX       AA/V  C        00:00:01:00 00:00:02:15 00:00:01:00 00:00:02:15") {
		t.Fatalf("second event mismatch:\n%s", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL(nil, "Drop", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestMainTrackEvents(t *testing.T) {
	st := timeline.New()
	st, a, err := st.AddClip("m1", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if st, err = st.UpdateClipTrim(a.ID, 2, 3); err != nil {
		t.Fatal(err)
	}
	st, overlay := st.AddTrack(timeline.TrackOverlay)
	if st, _, err = st.AddClip("m2", 5, overlay.ID); err != nil {
		t.Fatal(err)
	}

	events, err := MainTrackEvents(st, testCatalog())
	if err != nil {
		t.Fatalf("MainTrackEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the main track event, got %d", len(events))
	}
	if events[0].SourceIn != 2 || events[0].SourceOut != 7 {
		t.Fatalf("source range = [%v, %v), want [2, 7)", events[0].SourceIn, events[0].SourceOut)
	}
	if events[0].ClipName != "intro.mp4" {
		t.Fatalf("clip name = %q", events[0].ClipName)
	}

	if _, err := MainTrackEvents(timeline.New(), testCatalog()); !errors.Is(err, ErrNoClips) {
		t.Fatalf("empty timeline error = %v, want ErrNoClips", err)
	}
}
