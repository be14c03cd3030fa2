package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{EnvPort, EnvLogLevel, EnvHeadless, EnvFFprobe, EnvFFmpeg, EnvRenderer, EnvRenderTimeout} {
		t.Setenv(key, "")
	}
	t.Setenv(EnvDataDir, dir)
	return dir
}

func TestNew_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != "info" || cfg.Headless() {
		t.Errorf("LogLevel() = %q, Headless() = %v", cfg.LogLevel(), cfg.Headless())
	}
	if cfg.DBPath() != filepath.Join(dir, DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.FFprobePath() != "ffprobe" || cfg.FFmpegPath() != "ffmpeg" || cfg.RendererPath() != "clipforge-render" {
		t.Errorf("tool paths = %q %q %q", cfg.FFprobePath(), cfg.FFmpegPath(), cfg.RendererPath())
	}
	if cfg.RenderTimeout() != time.Hour {
		t.Errorf("RenderTimeout() = %v, want 1h", cfg.RenderTimeout())
	}
	if cfg.ExportDefaults() != compose.DefaultSettings() {
		t.Errorf("ExportDefaults() = %+v", cfg.ExportDefaults())
	}
	if ed := cfg.Editor(); !ed.SnapEnabled || ed.Zoom != 50 || ed.SnapTolerance != 0.5 {
		t.Errorf("Editor() = %+v", ed)
	}
}

func TestNew_FromEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvRenderer, "/opt/render")
	t.Setenv(EnvRenderTimeout, "90")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 || cfg.LogLevel() != "debug" || !cfg.Headless() {
		t.Errorf("cfg = port %d level %q headless %v", cfg.Port(), cfg.LogLevel(), cfg.Headless())
	}
	if cfg.RendererPath() != "/opt/render" || cfg.RenderTimeout() != 90*time.Second {
		t.Errorf("renderer = %q timeout = %v", cfg.RendererPath(), cfg.RenderTimeout())
	}
}

func TestNew_InvalidEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvPort, "abc"},
		{EnvPort, "0"},
		{EnvPort, "70000"},
		{EnvHeadless, "maybe"},
		{EnvRenderTimeout, "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)
			if _, err := New(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultsFilename)
	content := `
editor:
  snap_enabled: false
  zoom: 120
export:
  format: webm
  pip:
    position: top-left
    scale: 0.4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDefaults(path)
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if d.Editor.SnapEnabled || d.Editor.Zoom != 120 || d.Editor.SnapTolerance != 0.5 {
		t.Errorf("editor = %+v", d.Editor)
	}
	if d.Export.Format != compose.FormatWebM || d.Export.Quality != compose.QualityHigh {
		t.Errorf("export = %+v", d.Export)
	}
	if d.Export.Pip.Position != compose.PipTopLeft || d.Export.Pip.Scale != 0.4 {
		t.Errorf("pip = %+v", d.Export.Pip)
	}
}

func TestLoadDefaults_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "editor: [",
		"bad format": "export:\n  format: gif\n",
		"bad zoom":   "editor:\n  zoom: 500\n",
		"negative":   "editor:\n  snap_tolerance: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultsFilename)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			d, err := LoadDefaults(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if d != builtinDefaults() {
				t.Errorf("defaults on error = %+v", d)
			}
		})
	}
}

func TestLoadDefaults_Missing(t *testing.T) {
	d, err := LoadDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || d != builtinDefaults() {
		t.Errorf("LoadDefaults() = %+v, %v", d, err)
	}
}
