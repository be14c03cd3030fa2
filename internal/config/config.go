// Package config loads ClipForge settings from environment variables, with
// editor and export defaults optionally read from config.yaml in the data dir.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/timeline"
)

const (
	DefaultPort          = 8790
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".clipforge"
	DefaultFFprobe       = "ffprobe"
	DefaultFFmpeg        = "ffmpeg"
	DefaultRenderer      = "clipforge-render"
	DefaultRenderTimeout = 3600 // seconds

	EnvPort          = "CLIPFORGE_PORT"
	EnvLogLevel      = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir       = "CLIPFORGE_DATA_DIR"
	EnvHeadless      = "CLIPFORGE_HEADLESS"
	EnvFFprobe       = "CLIPFORGE_FFPROBE"
	EnvFFmpeg        = "CLIPFORGE_FFMPEG"
	EnvRenderer      = "CLIPFORGE_RENDERER"
	EnvRenderTimeout = "CLIPFORGE_RENDER_TIMEOUT"

	DBFilename       = "clipforge.db"
	DefaultsFilename = "config.yaml"
)

// EditorDefaults seed a fresh timeline.
type EditorDefaults struct {
	SnapEnabled   bool    `yaml:"snap_enabled"`
	SnapTolerance float64 `yaml:"snap_tolerance"`
	Zoom          float64 `yaml:"zoom"`
}

// Defaults is the shape of config.yaml.
type Defaults struct {
	Editor EditorDefaults   `yaml:"editor"`
	Export compose.Settings `yaml:"export"`
}

func builtinDefaults() Defaults {
	return Defaults{
		Editor: EditorDefaults{
			SnapEnabled:   true,
			SnapTolerance: timeline.DefaultSnapTolerance,
			Zoom:          timeline.DefaultZoom,
		},
		Export: compose.DefaultSettings(),
	}
}

// Config is the process configuration.
type Config struct {
	port          int
	logLevel      string
	dataDir       string
	headless      bool
	ffprobe       string
	ffmpeg        string
	renderer      string
	renderTimeout time.Duration
	defaults      Defaults
}

// New reads the environment and, when present, the defaults file.
func New() (*Config, error) {
	cfg := &Config{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		ffprobe:       DefaultFFprobe,
		ffmpeg:        DefaultFFmpeg,
		renderer:      DefaultRenderer,
		renderTimeout: DefaultRenderTimeout * time.Second,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		cfg.ffprobe = v
	}
	if v := os.Getenv(EnvFFmpeg); v != "" {
		cfg.ffmpeg = v
	}
	if v := os.Getenv(EnvRenderer); v != "" {
		cfg.renderer = v
	}
	if v := os.Getenv(EnvRenderTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number of seconds", EnvRenderTimeout)
		}
		cfg.renderTimeout = time.Duration(secs) * time.Second
	}

	defaults, err := LoadDefaults(filepath.Join(cfg.dataDir, DefaultsFilename))
	if err != nil {
		return nil, err
	}
	cfg.defaults = defaults
	return cfg, nil
}

// LoadDefaults reads a defaults file. Keys absent from the file keep their
// built-in values; a missing file yields the built-in defaults.
func LoadDefaults(path string) (Defaults, error) {
	d := builtinDefaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return builtinDefaults(), fmt.Errorf("parse %s: %w", path, err)
	}

	d.Export = d.Export.WithDefaults()
	if err := d.Export.Validate(); err != nil {
		return builtinDefaults(), fmt.Errorf("%s: %w", path, err)
	}
	if d.Editor.Zoom != 0 && (d.Editor.Zoom < timeline.MinZoom || d.Editor.Zoom > timeline.MaxZoom) {
		return builtinDefaults(), fmt.Errorf("%s: zoom must be between %v and %v", path, timeline.MinZoom, timeline.MaxZoom)
	}
	if d.Editor.SnapTolerance < 0 {
		return builtinDefaults(), fmt.Errorf("%s: snap_tolerance cannot be negative", path)
	}
	return d, nil
}

func (c *Config) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *Config) LogLevel() string {
	return c.logLevel
}

func (c *Config) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CacheDir holds extracted thumbnails.
func (c *Config) CacheDir() string {
	return filepath.Join(c.dataDir, "cache")
}

// RenderDir holds request files handed to the renderer.
func (c *Config) RenderDir() string {
	return filepath.Join(c.dataDir, "render")
}

// Headless disables the system tray.
func (c *Config) Headless() bool {
	return c.headless
}

func (c *Config) FFprobePath() string {
	return c.ffprobe
}

func (c *Config) FFmpegPath() string {
	return c.ffmpeg
}

func (c *Config) RendererPath() string {
	return c.renderer
}

func (c *Config) RenderTimeout() time.Duration {
	return c.renderTimeout
}

func (c *Config) Editor() EditorDefaults {
	return c.defaults.Editor
}

func (c *Config) ExportDefaults() compose.Settings {
	return c.defaults.Export
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
