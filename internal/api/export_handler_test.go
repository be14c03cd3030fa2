package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/render"
)

func waitIdle(t *testing.T, exports *render.Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := exports.Active(); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("export did not finish")
}

func TestExportSettings(t *testing.T) {
	defaults := compose.DefaultSettings()
	got := exportSettings(defaults, StartExportRequest{Format: compose.FormatWebM, Quality: compose.QualityLow})
	if got.Format != compose.FormatWebM || got.Quality != compose.QualityLow {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.DurationMode != defaults.DurationMode || got.Pip != defaults.Pip {
		t.Errorf("defaults lost: %+v", got)
	}

	got = exportSettings(defaults, StartExportRequest{Pip: &compose.PipConfig{Position: compose.PipTopLeft}})
	if got.Pip.Position != compose.PipTopLeft || got.Pip.Scale != defaults.Pip.Scale {
		t.Errorf("partial pip = %+v, want top-left at default scale", got.Pip)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("partial pip settings invalid: %v", err)
	}

	got = exportSettings(defaults, StartExportRequest{Pip: &compose.PipConfig{Scale: 0.4}})
	if got.Pip.Position != defaults.Pip.Position || got.Pip.Scale != 0.4 {
		t.Errorf("scale-only pip = %+v", got.Pip)
	}
}

func TestStartExport_NoClips(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/exports", StartExportRequest{OutputDir: env.dir})
	expectError(t, rr, http.StatusConflict, CodeNoop)
}

func TestStartExport_BadOutput(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)

	tests := []struct {
		name string
		req  StartExportRequest
	}{
		{"no destination", StartExportRequest{}},
		{"relative path", StartExportRequest{OutputPath: "out.mp4"}},
		{"wrong extension", StartExportRequest{OutputPath: filepath.Join(env.dir, "out.mov")}},
		{"missing dir", StartExportRequest{OutputPath: filepath.Join(env.dir, "nope", "out.mp4")}},
		{"bad format", StartExportRequest{OutputDir: env.dir, Format: "gif"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/exports", tt.req)
			expectError(t, rr, http.StatusBadRequest, CodeBadRequest)
		})
	}
}

func TestExport_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)

	rr := env.do(t, http.MethodPost, "/exports", StartExportRequest{OutputDir: env.dir, Name: "My Cut"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var started ExportResponse
	decode(t, rr, &started)
	job := started.Job
	if job == nil || job.ClipCount != 1 || job.Kind != compose.KindSingleTrack {
		t.Fatalf("job = %+v", job)
	}
	if filepath.Dir(job.OutputPath) != env.dir || !strings.HasPrefix(filepath.Base(job.OutputPath), "My Cut_") {
		t.Errorf("output path = %q", job.OutputPath)
	}

	rr = env.do(t, http.MethodPost, "/exports", StartExportRequest{OutputDir: env.dir})
	expectError(t, rr, http.StatusConflict, CodeExportBusy)

	rr = env.do(t, http.MethodGet, "/exports/"+job.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/exports/"+job.ID+"/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var cancelled ExportResponse
	decode(t, rr, &cancelled)
	if cancelled.Job.Status != render.JobStatusCancelled {
		t.Errorf("status after cancel = %q", cancelled.Job.Status)
	}

	rr = env.do(t, http.MethodPost, "/exports/"+job.ID+"/cancel", nil)
	expectError(t, rr, http.StatusConflict, CodeNoop)

	rr = env.do(t, http.MethodGet, "/exports", nil)
	var list ExportsResponse
	decode(t, rr, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID {
		t.Errorf("jobs = %+v", list.Jobs)
	}
}

func TestExport_Completes(t *testing.T) {
	env := newTestEnv(t)
	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)

	rr := env.do(t, http.MethodPost, "/exports", StartExportRequest{OutputPath: filepath.Join(env.dir, "final.mp4")})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var started ExportResponse
	decode(t, rr, &started)

	close(env.engine.release)
	waitIdle(t, env.exports)

	rr = env.do(t, http.MethodGet, "/exports/"+started.Job.ID, nil)
	var resp ExportResponse
	decode(t, rr, &resp)
	if resp.Job.Status != render.JobStatusCompleted || resp.Job.Progress != 100 {
		t.Errorf("job = %+v", resp.Job)
	}
}

func TestExport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.do(t, http.MethodGet, "/exports/missing", nil), http.StatusNotFound, CodeNotFound)
	expectError(t, env.do(t, http.MethodPost, "/exports/missing/cancel", nil), http.StatusNotFound, CodeNotFound)
	expectError(t, env.do(t, http.MethodGet, "/exports?limit=0", nil), http.StatusBadRequest, CodeBadRequest)
}

func TestExportEDL(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/exports/edl", EDLRequest{OutputDir: env.dir, Title: "Cut"})
	expectError(t, rr, http.StatusConflict, CodeNoop)

	rr = env.do(t, http.MethodPost, "/exports/edl", EDLRequest{OutputDir: "relative"})
	expectError(t, rr, http.StatusBadRequest, CodeBadRequest)

	item := env.importMedia(t, "a.mp4")
	env.addClip(t, item.ID)
	env.addClip(t, item.ID)

	rr = env.do(t, http.MethodPost, "/exports/edl", EDLRequest{OutputDir: env.dir, Title: "Cut"})
	if rr.Code != http.StatusOK {
		t.Fatalf("edl status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp EDLResponse
	decode(t, rr, &resp)
	if resp.ClipCount != 2 || resp.OutputPath != filepath.Join(env.dir, "Cut.edl") {
		t.Errorf("edl = %+v", resp)
	}

	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "TITLE: Cut") || !strings.Contains(string(data), "FCM: NON-DROP FRAME") {
		t.Errorf("edl contents = %s", data)
	}
}
