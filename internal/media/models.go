package media

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TypeVideo = "video"
	TypeAudio = "audio"
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Item is an imported source file. Items are immutable once imported.
type Item struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SourcePath string     `json:"source_path"`
	Type       string     `json:"type"`
	Duration   float64    `json:"duration"`
	Resolution Resolution `json:"resolution"`
	FPS        float64    `json:"fps,omitempty"`
	Codec      string     `json:"codec"`
	Format     string     `json:"format"`
	FileSize   int64      `json:"file_size"`
	Bitrate    int64      `json:"bitrate,omitempty"`
	HasVideo   bool       `json:"has_video"`
	HasAudio   bool       `json:"has_audio"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Metadata is what an Inspector reports for a file.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	Codec    string
	Format   string
	FileSize int64
	Bitrate  int64
	HasVideo bool
	HasAudio bool
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

func NewID() string {
	return uuid.NewString()
}

// IsMediaFile reports whether the filename has an importable extension.
func IsMediaFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return videoExtensions[ext] || audioExtensions[ext]
}

// NewItem builds a catalog item for path from inspected metadata.
func NewItem(path string, meta *Metadata) Item {
	typ := TypeVideo
	if !meta.HasVideo {
		typ = TypeAudio
	}
	return Item{
		ID:         NewID(),
		Name:       filepath.Base(path),
		SourcePath: path,
		Type:       typ,
		Duration:   meta.Duration,
		Resolution: Resolution{Width: meta.Width, Height: meta.Height},
		FPS:        meta.FPS,
		Codec:      meta.Codec,
		Format:     meta.Format,
		FileSize:   meta.FileSize,
		Bitrate:    meta.Bitrate,
		HasVideo:   meta.HasVideo,
		HasAudio:   meta.HasAudio,
		CreatedAt:  time.Now().UTC(),
	}
}
