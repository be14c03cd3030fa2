package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/db"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/render"
	"github.com/clipforge/clipforge/internal/timeline"
)

const testToken = "test-token-0123456789"

type stubInspector struct{}

func (stubInspector) Inspect(_ context.Context, _ string) (*media.Metadata, error) {
	return &media.Metadata{Duration: 10, Width: 1280, Height: 720, FPS: 25, HasVideo: true, HasAudio: true}, nil
}

type stubThumbnailer struct{}

func (stubThumbnailer) Thumbnail(_ context.Context, _ string, _ float64, out string) error {
	return os.WriteFile(out, []byte{0xff, 0xd8, 0xff}, 0644)
}

// stubEngine reports half progress, then waits for release.
type stubEngine struct {
	release chan struct{}
}

func (e *stubEngine) Render(ctx context.Context, req compose.Request, onProgress func(float64)) (string, error) {
	onProgress(50)
	select {
	case <-e.release:
		return req.OutputPath, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type testEnv struct {
	handler http.Handler
	session *project.Session
	exports *render.Manager
	engine  *stubEngine
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := project.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatal(err)
	}

	session := project.NewSession(project.Options{
		Repo:        repo,
		Inspector:   stubInspector{},
		Thumbnailer: stubThumbnailer{},
		CacheDir:    filepath.Join(dir, "cache"),
		Defaults:    project.Defaults{SnapEnabled: true},
		Logger:      logging.Discard(),
	})
	if err := session.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	engine := &stubEngine{release: make(chan struct{})}
	exports := render.NewManager(engine, repo, logging.Discard())
	t.Cleanup(func() {
		select {
		case <-engine.release:
		default:
			close(engine.release)
		}
		exports.Shutdown()
	})

	handler := NewRouter(ServerConfig{
		Version:        "test",
		Session:        session,
		Exports:        exports,
		Tokens:         repo,
		Playback:       playback.NewServer(logging.Discard()),
		ExportDefaults: compose.DefaultSettings(),
		Logger:         logging.Discard(),
		StartTime:      time.Now(),
	})
	return &testEnv{handler: handler, session: session, exports: exports, engine: engine, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) importMedia(t *testing.T, name string) media.Item {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	rr := e.do(t, http.MethodPost, "/media", ImportMediaRequest{Path: path})
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp MediaResponse
	decode(t, rr, &resp)
	return resp.Item
}

func (e *testEnv) addClip(t *testing.T, mediaID string) timeline.Clip {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/clips", AddClipRequest{MediaID: mediaID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	return *resp.Clip
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	var resp ErrorResponse
	decode(t, rr, &resp)
	if resp.Success || resp.Code != code || resp.Error == "" {
		t.Errorf("error response = %+v, want code %s", resp, code)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestTimeline_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/timeline", nil))
	expectError(t, rr, http.StatusUnauthorized, CodeUnauthorized)
}

func TestTimeline_EditFlow(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	clip := env.addClip(t, item.ID)

	rr := env.do(t, http.MethodPut, "/clips/"+clip.ID+"/trim", TrimRequest{TrimStart: 1, TrimEnd: 2})
	if rr.Code != http.StatusOK {
		t.Fatalf("trim status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	if !resp.Success || len(resp.Timeline.Clips) != 1 || resp.Timeline.Clips[0].Duration != 7 {
		t.Fatalf("after trim = %+v", resp.Timeline.Clips)
	}

	rr = env.do(t, http.MethodPut, "/timeline/playhead", PositionRequest{Position: 4})
	if rr.Code != http.StatusOK {
		t.Fatalf("playhead status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/clips/"+clip.ID+"/split", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("split status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp = TimelineResponse{}
	decode(t, rr, &resp)
	if len(resp.Timeline.Clips) != 2 {
		t.Fatalf("split produced %d clips", len(resp.Timeline.Clips))
	}
	if resp.Timeline.Selection.ClipID == clip.ID || resp.Timeline.Selection.ClipID == "" {
		t.Errorf("selection = %q, want the second half", resp.Timeline.Selection.ClipID)
	}

	rr = env.do(t, http.MethodGet, "/timeline", nil)
	resp = TimelineResponse{}
	decode(t, rr, &resp)
	if len(resp.Timeline.Clips) != 2 || resp.Timeline.Duration != 10 {
		t.Errorf("timeline = %+v", resp.Timeline)
	}
}

func TestTimeline_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	clip := env.addClip(t, item.ID)
	mainID := env.session.State().Tracks[0].ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown clip", http.MethodDelete, "/clips/missing", nil, http.StatusNotFound, CodeNotFound},
		{"unknown track", http.MethodPost, "/tracks/missing/mute", nil, http.StatusNotFound, CodeNotFound},
		{"last track", http.MethodDelete, "/tracks/" + mainID, nil, http.StatusConflict, CodeNoop},
		{"split outside clip", http.MethodPost, "/clips/" + clip.ID + "/split", nil, http.StatusConflict, CodeNoop},
		{"nothing trimmed", http.MethodPost, "/clips/" + clip.ID + "/delete-trimmed", nil, http.StatusConflict, CodeNoop},
		{"no region", http.MethodPost, "/timeline/region/delete", nil, http.StatusConflict, CodeNoop},
		{"unknown media", http.MethodPost, "/clips", AddClipRequest{MediaID: "missing"}, http.StatusNotFound, CodeMediaNotFound},
		{"missing media id", http.MethodPost, "/clips", AddClipRequest{}, http.StatusBadRequest, CodeBadRequest},
		{"bad track kind", http.MethodPost, "/tracks", AddTrackRequest{Kind: "bogus"}, http.StatusBadRequest, CodeBadRequest},
		{"unsupported import", http.MethodPost, "/media", ImportMediaRequest{Path: "/tmp/notes.txt"}, http.StatusBadRequest, CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.session.State()
			rr := env.do(t, tt.method, tt.path, tt.body)
			expectError(t, rr, tt.status, tt.code)
			if after := env.session.State(); len(after.Clips) != len(before.Clips) || len(after.Tracks) != len(before.Tracks) {
				t.Errorf("rejected request changed the timeline")
			}
		})
	}
}

func TestTimeline_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPut, "/timeline/zoom", bytes.NewBufferString("{nope"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusBadRequest, CodeBadRequest)
}

func TestTracks_AddSoloAndRemove(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/tracks", AddTrackRequest{})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add track status = %d", rr.Code)
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	if resp.Track == nil || resp.Track.Kind != timeline.TrackOverlay || len(resp.Timeline.Tracks) != 2 {
		t.Fatalf("add track = %+v", resp)
	}
	overlay := resp.Track.ID

	rr = env.do(t, http.MethodPost, "/tracks/"+overlay+"/solo", nil)
	resp = TimelineResponse{}
	decode(t, rr, &resp)
	if resp.Timeline.SoloTrackID != overlay {
		t.Errorf("solo track = %q, want %q", resp.Timeline.SoloTrackID, overlay)
	}

	rr = env.do(t, http.MethodPut, "/tracks/"+overlay+"/name", RenameTrackRequest{Name: "B-roll"})
	resp = TimelineResponse{}
	decode(t, rr, &resp)
	if tr, ok := resp.Timeline.Track(overlay); !ok || tr.Name != "B-roll" {
		t.Errorf("rename = %+v", tr)
	}

	rr = env.do(t, http.MethodDelete, "/tracks/"+overlay, nil)
	resp = TimelineResponse{}
	decode(t, rr, &resp)
	if len(resp.Timeline.Tracks) != 1 || resp.Timeline.SoloTrackID != "" {
		t.Errorf("after remove = %+v", resp.Timeline)
	}
}

func TestTracks_AddWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/tracks", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	if resp.Track == nil || resp.Track.Kind != timeline.TrackOverlay {
		t.Errorf("track = %+v, want an overlay", resp.Track)
	}

	req := httptest.NewRequest(http.MethodPost, "/tracks", bytes.NewBufferString("{nope"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusBadRequest, CodeBadRequest)
}

func TestTimeline_RegionDelete(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)

	in, out := 2.0, 5.0
	env.do(t, http.MethodPut, "/timeline/in-point", MarkRequest{Position: &in})
	env.do(t, http.MethodPut, "/timeline/out-point", MarkRequest{Position: &out})

	rr := env.do(t, http.MethodPost, "/timeline/region/delete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	if len(resp.Timeline.Clips) != 2 {
		t.Fatalf("region delete produced %d clips", len(resp.Timeline.Clips))
	}
	if resp.Timeline.Selection.InPoint != nil || resp.Timeline.Selection.OutPoint != nil {
		t.Errorf("marks should be cleared")
	}
}

func TestTimeline_SnapQuery(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/timeline/snap?position=3.2", nil)
	var resp SnapResponse
	decode(t, rr, &resp)
	if !resp.Snapped || resp.Position != 3 {
		t.Errorf("snap = %+v, want 3", resp)
	}

	disabled := false
	env.do(t, http.MethodPut, "/timeline/snap", SnapRequest{Enabled: &disabled})
	rr = env.do(t, http.MethodGet, "/timeline/snap?position=3.2", nil)
	resp = SnapResponse{}
	decode(t, rr, &resp)
	if resp.Snapped || resp.Position != 3.2 {
		t.Errorf("snap disabled = %+v", resp)
	}

	rr = env.do(t, http.MethodGet, "/timeline/snap?position=abc", nil)
	expectError(t, rr, http.StatusBadRequest, CodeBadRequest)
}

func TestMedia_SourceAndThumbnail(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")

	req := httptest.NewRequest(http.MethodGet, "/media/"+item.ID+"/source", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=0-3")
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "0123" {
		t.Errorf("source status = %d body = %q", rr.Code, rr.Body.String())
	}

	req.RemoteAddr = "10.1.1.1:50000"
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusForbidden, CodeForbidden)

	rr = env.do(t, http.MethodGet, "/media/"+item.ID+"/thumbnail?at=1.5", nil)
	if rr.Code != http.StatusOK || rr.Body.Len() != 3 {
		t.Errorf("thumbnail status = %d len = %d", rr.Code, rr.Body.Len())
	}

	rr = env.do(t, http.MethodGet, "/media/missing/source", nil)
	expectError(t, rr, http.StatusNotFound, CodeMediaNotFound)
}

func TestMedia_RemoveWithPrune(t *testing.T) {
	env := newTestEnv(t)
	a := env.importMedia(t, "a.mp4")
	b := env.importMedia(t, "b.mp4")
	env.addClip(t, a.ID)
	env.addClip(t, b.ID)

	rr := env.do(t, http.MethodDelete, "/media/"+a.ID+"?prune=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	decode(t, rr, &resp)
	if resp.Removed != 1 || len(resp.Timeline.Clips) != 1 || resp.Timeline.Clips[0].StartTime != 0 {
		t.Errorf("after prune = %+v", resp)
	}

	rr = env.do(t, http.MethodGet, "/media", nil)
	var list MediaListResponse
	decode(t, rr, &list)
	if len(list.Items) != 1 || list.Items[0].ID != b.ID {
		t.Errorf("media = %+v", list.Items)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)

	rr := env.do(t, http.MethodGet, "/status", nil)
	var resp StatusResponse
	decode(t, rr, &resp)
	if resp.Clips != 1 || resp.Tracks != 1 || resp.MediaCount != 1 || resp.Duration != 10 || resp.ActiveExport != nil {
		t.Errorf("status = %+v", resp)
	}
}
