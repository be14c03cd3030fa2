package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/render"
)

// exportSettings overlays the request's choices on the configured defaults.
func exportSettings(defaults compose.Settings, req StartExportRequest) compose.Settings {
	s := defaults.WithDefaults()
	if req.Format != "" {
		s.Format = req.Format
	}
	if req.Quality != "" {
		s.Quality = req.Quality
	}
	if req.DurationMode != "" {
		s.DurationMode = req.DurationMode
	}
	if req.Pip != nil {
		if req.Pip.Position != "" {
			s.Pip.Position = req.Pip.Position
		}
		if req.Pip.Scale != 0 {
			s.Pip.Scale = req.Pip.Scale
		}
	}
	return s
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartExportRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		settings := exportSettings(cfg.ExportDefaults, req)
		if err := settings.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}

		outputPath := req.OutputPath
		if outputPath == "" {
			if req.OutputDir == "" {
				WriteError(w, http.StatusBadRequest, "output_path or output_dir is required", CodeBadRequest)
				return
			}
			name := compose.OutputFileName(req.Name, cfg.Session.State().Duration, settings.Format)
			outputPath = filepath.Join(req.OutputDir, name)
		}
		if err := compose.ValidateOutputPath(outputPath, settings.Format); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}

		renderReq, err := cfg.Session.BuildExport(outputPath, settings)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}

		job, err := cfg.Exports.Start(r.Context(), renderReq)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, ExportResponse{Success: true, Job: job})
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", CodeBadRequest)
				return
			}
			limit = n
		}
		jobs, err := cfg.Exports.List(r.Context(), limit)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		if jobs == nil {
			jobs = []*render.Job{}
		}
		WriteJSON(w, http.StatusOK, ExportsResponse{Success: true, Jobs: jobs})
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Exports.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ExportResponse{Success: true, Job: job})
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Exports.Cancel(id); err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		job, err := cfg.Exports.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ExportResponse{Success: true, Job: job})
	}
}

// exportEDLHandler writes the main track as <title>.edl into output_dir.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EDLRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := validateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}

		title := compose.SanitizeName(req.Title, 120)
		if title == "" {
			title = "clipforge_edit"
		}

		st := cfg.Session.State()
		clips := 0
		if main, ok := st.MainTrack(); ok {
			clips = len(st.ClipsOnTrack(main.ID))
		}
		if clips == 0 {
			WriteError(w, http.StatusConflict, compose.ErrNoClips.Error(), CodeNoop)
			return
		}

		edl, err := cfg.Session.EDL(title, req.FrameRate)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}

		outputPath := filepath.Join(req.OutputDir, title+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			cfg.Logger.Error("failed to write edl", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", CodeInternal)
			return
		}
		WriteJSON(w, http.StatusOK, EDLResponse{Success: true, OutputPath: outputPath, ClipCount: clips})
	}
}

func validateOutputDir(dir string) error {
	if dir == "" {
		return errors.New("output_dir is required")
	}
	if !filepath.IsAbs(dir) || filepath.Clean(dir) != dir {
		return errors.New("output_dir must be a clean absolute path")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.New("output_dir does not exist")
	}
	if !info.IsDir() {
		return errors.New("output_dir is not a directory")
	}
	return nil
}
