package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/render"
	"github.com/clipforge/clipforge/internal/timeline"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeNoop          = "NO_OP"
	CodeAborted       = "ABORTED"
	CodeMediaNotFound = "MEDIA_NOT_FOUND"
	CodeExportBusy    = "EXPORT_BUSY"
	CodeInternal      = "INTERNAL_ERROR"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	Success      bool        `json:"success"`
	Tracks       int         `json:"tracks"`
	Clips        int         `json:"clips"`
	MediaCount   int         `json:"media_count"`
	Duration     float64     `json:"duration"`
	ActiveExport *render.Job `json:"active_export,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// TimelineResponse is returned by every edit. Clip and Track are set when
// the edit created one.
type TimelineResponse struct {
	Success  bool            `json:"success"`
	Timeline timeline.State  `json:"timeline"`
	Clip     *timeline.Clip  `json:"clip,omitempty"`
	Track    *timeline.Track `json:"track,omitempty"`
	Removed  int             `json:"removed,omitempty"`
}

type AddTrackRequest struct {
	Kind timeline.TrackKind `json:"kind"`
}

type RenameTrackRequest struct {
	Name string `json:"name"`
}

type VolumeRequest struct {
	Volume int `json:"volume"`
}

type AddClipRequest struct {
	MediaID string `json:"media_id"`
	TrackID string `json:"track_id,omitempty"`
}

type TrimRequest struct {
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
}

type AudioOnlyRequest struct {
	AudioOnly bool `json:"audio_only"`
}

// ClipVolumeRequest sets a per-clip volume override. A null volume clears it.
type ClipVolumeRequest struct {
	Volume *int `json:"volume"`
}

type SelectRequest struct {
	ClipID string `json:"clip_id"`
}

type PositionRequest struct {
	Position float64 `json:"position"`
}

// MarkRequest sets an in or out point. A null position clears it.
type MarkRequest struct {
	Position *float64 `json:"position"`
}

type ZoomRequest struct {
	Zoom float64 `json:"zoom"`
}

type SnapRequest struct {
	Enabled   *bool    `json:"enabled,omitempty"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

type SnapResponse struct {
	Success  bool    `json:"success"`
	Position float64 `json:"position"`
	Snapped  bool    `json:"snapped"`
}

type ImportMediaRequest struct {
	Path string `json:"path"`
}

type MediaResponse struct {
	Success bool       `json:"success"`
	Item    media.Item `json:"item"`
}

type MediaListResponse struct {
	Success bool         `json:"success"`
	Items   []media.Item `json:"items"`
}

// StartExportRequest starts a render. Either OutputPath is given, or
// OutputDir and an optional Name from which a file name is derived.
type StartExportRequest struct {
	OutputPath string `json:"output_path,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
	Name       string `json:"name,omitempty"`

	Format       compose.Format       `json:"format,omitempty"`
	Quality      compose.Quality      `json:"quality,omitempty"`
	DurationMode compose.DurationMode `json:"duration_mode,omitempty"`
	Pip          *compose.PipConfig   `json:"pip,omitempty"`
}

type ExportResponse struct {
	Success bool        `json:"success"`
	Job     *render.Job `json:"job"`
}

type ExportsResponse struct {
	Success bool          `json:"success"`
	Jobs    []*render.Job `json:"jobs"`
}

type EDLRequest struct {
	OutputDir string  `json:"output_dir"`
	Title     string  `json:"title,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type EDLResponse struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for routes whose body may be omitted.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return false
	}
	return true
}

var rejections = []error{
	timeline.ErrLastTrack,
	timeline.ErrPlayheadOutsideClip,
	timeline.ErrNothingTrimmed,
	timeline.ErrNoRegion,
	timeline.ErrNoOverlap,
	compose.ErrNoClips,
	project.ErrNoPlayableMedia,
	render.ErrNotActive,
}

var badInput = []error{
	timeline.ErrInvalidDuration,
	compose.ErrInvalidSettings,
	compose.ErrInvalidRequest,
	project.ErrUnsupportedFile,
	media.ErrNoMediaStream,
}

// errorStatus maps a domain error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case timeline.IsNotFound(err), errors.Is(err, render.ErrJobNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, project.ErrMediaNotFound), errors.Is(err, playback.ErrSourceMissing):
		return http.StatusNotFound, CodeMediaNotFound
	case errors.Is(err, compose.ErrMediaNotFound):
		return http.StatusConflict, CodeMediaNotFound
	case timeline.IsAborted(err):
		return http.StatusConflict, CodeAborted
	case errors.Is(err, render.ErrBusy):
		return http.StatusConflict, CodeExportBusy
	}
	for _, target := range rejections {
		if errors.Is(err, target) {
			return http.StatusConflict, CodeNoop
		}
	}
	for _, target := range badInput {
		if errors.Is(err, target) {
			return http.StatusBadRequest, CodeBadRequest
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		requestID, _ := r.Context().Value(RequestIDKey).(string)
		logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestID)
		msg = "internal error"
	}
	WriteError(w, status, msg, code)
}
