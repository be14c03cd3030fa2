package compose

import (
	"errors"
	"fmt"
)

type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMOV  Format = "mov"
)

type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// DurationMode tells the render engine how to reconcile tracks whose summed
// lengths differ.
type DurationMode string

const (
	DurationMain     DurationMode = "main"
	DurationShortest DurationMode = "shortest"
	DurationLongest  DurationMode = "longest"
)

type PipPosition string

const (
	PipTopLeft     PipPosition = "top-left"
	PipTopRight    PipPosition = "top-right"
	PipBottomLeft  PipPosition = "bottom-left"
	PipBottomRight PipPosition = "bottom-right"
)

// PipConfig places overlay tracks over the main track. Scale is the overlay
// width as a fraction of the output width.
type PipConfig struct {
	Position PipPosition `json:"position" yaml:"position"`
	Scale    float64     `json:"scale" yaml:"scale"`
}

// Settings are the user-chosen export options.
type Settings struct {
	Format       Format       `json:"format" yaml:"format"`
	Quality      Quality      `json:"quality" yaml:"quality"`
	DurationMode DurationMode `json:"duration_mode" yaml:"duration_mode"`
	Pip          PipConfig    `json:"pip" yaml:"pip"`
}

var ErrInvalidSettings = errors.New("invalid export settings")

func DefaultSettings() Settings {
	return Settings{
		Format:       FormatMP4,
		Quality:      QualityHigh,
		DurationMode: DurationMain,
		Pip:          PipConfig{Position: PipBottomRight, Scale: 0.25},
	}
}

// WithDefaults fills empty fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.Format == "" {
		s.Format = d.Format
	}
	if s.Quality == "" {
		s.Quality = d.Quality
	}
	if s.DurationMode == "" {
		s.DurationMode = d.DurationMode
	}
	if s.Pip.Position == "" {
		s.Pip.Position = d.Pip.Position
	}
	if s.Pip.Scale == 0 {
		s.Pip.Scale = d.Pip.Scale
	}
	return s
}

func (s Settings) Validate() error {
	switch s.Format {
	case FormatMP4, FormatWebM, FormatMOV:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidSettings, s.Format)
	}
	switch s.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("%w: unsupported quality %q", ErrInvalidSettings, s.Quality)
	}
	switch s.DurationMode {
	case DurationMain, DurationShortest, DurationLongest:
	default:
		return fmt.Errorf("%w: unsupported duration mode %q", ErrInvalidSettings, s.DurationMode)
	}
	switch s.Pip.Position {
	case PipTopLeft, PipTopRight, PipBottomLeft, PipBottomRight:
	default:
		return fmt.Errorf("%w: unsupported pip position %q", ErrInvalidSettings, s.Pip.Position)
	}
	if s.Pip.Scale <= 0 || s.Pip.Scale > 1 {
		return fmt.Errorf("%w: pip scale %.2f outside (0, 1]", ErrInvalidSettings, s.Pip.Scale)
	}
	return nil
}

// Extension returns the output file extension, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}
