package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoMediaStream is returned when a file has neither a video nor an audio stream.
var ErrNoMediaStream = errors.New("no media stream found")

// Inspector reads technical metadata from a media file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (*Metadata, error)
}

// Thumbnailer extracts a still frame from a media file into outputPath.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, path string, at float64, outputPath string) error
}

// FFmpeg implements Inspector and Thumbnailer by shelling out to ffprobe/ffmpeg.
type FFmpeg struct {
	ffprobe string
	ffmpeg  string
	logger  *slog.Logger
}

func NewFFmpeg(ffprobePath, ffmpegPath string, logger *slog.Logger) *FFmpeg {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffprobe: ffprobePath, ffmpeg: ffmpegPath, logger: logger}
}

type mediaInfo struct {
	Format  mediaFormat   `json:"format"`
	Streams []mediaStream `json:"streams"`
}

type mediaFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	Bitrate    string `json:"bit_rate"`
}

type mediaStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

func (f *FFmpeg) Inspect(ctx context.Context, path string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	meta, err := parseMediaInfo(out)
	if err != nil {
		return nil, err
	}

	if meta.FileSize == 0 {
		if info, err := os.Stat(path); err == nil {
			meta.FileSize = info.Size()
		}
	}

	if f.logger != nil {
		f.logger.Debug("inspected media",
			"path", filepath.Base(path),
			"duration", meta.Duration,
			"codec", meta.Codec,
		)
	}
	return meta, nil
}

func parseMediaInfo(data []byte) (*Metadata, error) {
	var po mediaInfo
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var video, audio *mediaStream
	for i := range po.Streams {
		s := &po.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil && audio == nil {
		return nil, ErrNoMediaStream
	}

	meta := &Metadata{
		Format:   firstFormatName(po.Format.FormatName),
		HasVideo: video != nil,
		HasAudio: audio != nil,
	}
	meta.Duration, _ = strconv.ParseFloat(po.Format.Duration, 64)
	meta.FileSize, _ = strconv.ParseInt(po.Format.Size, 10, 64)
	meta.Bitrate, _ = strconv.ParseInt(po.Format.Bitrate, 10, 64)

	if video != nil {
		meta.Codec = video.CodecName
		meta.Width = video.Width
		meta.Height = video.Height
		meta.FPS = parseFrameRate(video.AvgFrameRate)
		if meta.FPS == 0 {
			meta.FPS = parseFrameRate(video.RFrameRate)
		}
		if meta.Duration == 0 {
			meta.Duration, _ = strconv.ParseFloat(video.Duration, 64)
		}
	} else {
		meta.Codec = audio.CodecName
		if meta.Duration == 0 {
			meta.Duration, _ = strconv.ParseFloat(audio.Duration, 64)
		}
	}
	return meta, nil
}

// parseFrameRate accepts ffprobe rationals such as "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func firstFormatName(s string) string {
	name, _, _ := strings.Cut(s, ",")
	return name
}

func (f *FFmpeg) Thumbnail(ctx context.Context, path string, at float64, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail dir: %w", err)
	}
	if at < 0 {
		at = 0
	}
	cmd := exec.CommandContext(ctx, f.ffmpeg,
		"-y",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", "scale=320:-1",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("thumbnail extraction failed: %w: %s", err, tail(string(out), 512))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
