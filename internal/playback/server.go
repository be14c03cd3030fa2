package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrSourceMissing is returned when the media file no longer exists on disk.
var ErrSourceMissing = errors.New("media source file is missing")

// Streamer writes a media file to an HTTP response.
type Streamer interface {
	Stream(w http.ResponseWriter, r *http.Request, path string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// Stream serves path honouring a single Range header. HEAD requests get the
// headers only. A missing file returns ErrSourceMissing before anything is
// written, so the caller can answer in its own error format.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrSourceMissing
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		rng = nil
	}

	body := io.Reader(f)
	status := http.StatusOK
	length := size
	if rng != nil {
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return fmt.Errorf("seek source: %w", err)
		}
		body = io.LimitReader(f, rng.Length())
		status = http.StatusPartialContent
		length = rng.Length()
		h.Set("Content-Range", rng.ContentRange(size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, body); err != nil {
		// Players abort range requests while seeking.
		s.logger.Debug("source stream interrupted", "error", err)
	}
	return nil
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
