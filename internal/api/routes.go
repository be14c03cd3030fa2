package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/timecode"
	"github.com/clipforge/clipforge/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Hub == nil {
		cfg.Hub = NewExportHub(cfg.Logger)
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/timeline", func(r chi.Router) {
			r.Get("/", getTimelineHandler(cfg))
			r.Post("/reset", resetTimelineHandler(cfg))
			r.Put("/playhead", setPlayheadHandler(cfg))
			r.Put("/in-point", setMarkHandler(cfg, "set_in_point", timeline.State.SetInPoint))
			r.Put("/out-point", setMarkHandler(cfg, "set_out_point", timeline.State.SetOutPoint))
			r.Put("/selection", selectClipHandler(cfg))
			r.Delete("/selection", clearSelectionHandler(cfg))
			r.Post("/region/delete", deleteRegionHandler(cfg))
			r.Put("/zoom", setZoomHandler(cfg))
			r.Put("/snap", setSnapHandler(cfg))
			r.Get("/snap", snapPositionHandler(cfg))
		})

		r.Route("/tracks", func(r chi.Router) {
			r.Post("/", addTrackHandler(cfg))
			r.Delete("/{id}", trackEditHandler(cfg, "remove_track", timeline.State.RemoveTrack))
			r.Post("/{id}/mute", trackEditHandler(cfg, "toggle_mute", timeline.State.ToggleMute))
			r.Post("/{id}/solo", trackEditHandler(cfg, "toggle_solo", timeline.State.ToggleSolo))
			r.Put("/{id}/volume", trackVolumeHandler(cfg))
			r.Put("/{id}/name", renameTrackHandler(cfg))
		})

		r.Route("/clips", func(r chi.Router) {
			r.Post("/", addClipHandler(cfg))
			r.Delete("/{id}", clipEditHandler(cfg, "remove_clip", timeline.State.RemoveClip))
			r.Put("/{id}/trim", trimClipHandler(cfg))
			r.Post("/{id}/split", clipEditHandler(cfg, "split_clip", timeline.State.SplitClipAtPlayhead))
			r.Post("/{id}/duplicate", duplicateClipHandler(cfg))
			r.Post("/{id}/delete-trimmed", clipEditHandler(cfg, "delete_trimmed_region", timeline.State.DeleteTrimmedRegion))
			r.Put("/{id}/audio-only", clipAudioOnlyHandler(cfg))
			r.Put("/{id}/volume", clipVolumeHandler(cfg))
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/", listMediaHandler(cfg))
			r.Post("/", importMediaHandler(cfg))
			r.Delete("/{id}", removeMediaHandler(cfg))
			r.Post("/{id}/prune", pruneMediaHandler(cfg))
			r.Get("/{id}/thumbnail", thumbnailHandler(cfg))
			r.With(LoopbackGuard()).Get("/{id}/source", mediaSourceHandler(cfg))
			r.With(LoopbackGuard()).Head("/{id}/source", mediaSourceHandler(cfg))
		})

		r.Route("/exports", func(r chi.Router) {
			r.Post("/", startExportHandler(cfg))
			r.Get("/", listExportsHandler(cfg))
			r.Get("/{id}", getExportHandler(cfg))
			r.Post("/{id}/cancel", cancelExportHandler(cfg))
			r.Post("/edl", exportEDLHandler(cfg))
		})

		r.Get("/ws/exports", cfg.Hub.ServeHTTP)
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Session.State()
		resp := StatusResponse{
			Success:    true,
			Tracks:     len(st.Tracks),
			Clips:      len(st.Clips),
			MediaCount: cfg.Session.Catalog().Len(),
			Duration:   st.Duration,
		}
		if cfg.Exports != nil {
			if job, ok := cfg.Exports.Active(); ok {
				resp.ActiveExport = job
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func writeTimeline(w http.ResponseWriter, st timeline.State) {
	WriteJSON(w, http.StatusOK, TimelineResponse{Success: true, Timeline: st})
}

// applyEdit runs op through the session and answers with the resulting timeline.
func applyEdit(cfg ServerConfig, w http.ResponseWriter, r *http.Request, name string, op project.Op) {
	st, err := cfg.Session.Apply(r.Context(), name, op)
	if err != nil {
		writeDomainError(w, r, cfg.Logger, err)
		return
	}
	writeTimeline(w, st)
}

func getTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeTimeline(w, cfg.Session.State())
	}
}

func resetTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Session.Reset(r.Context())
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		writeTimeline(w, st)
	}
}

func setPlayheadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		writeTimeline(w, cfg.Session.SetPlayhead(req.Position))
	}
}

func setMarkHandler(cfg ServerConfig, name string, set func(timeline.State, *float64) timeline.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MarkRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		applyEdit(cfg, w, r, name, func(st timeline.State) (timeline.State, error) {
			return set(st, req.Position), nil
		})
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		applyEdit(cfg, w, r, "select_clip", func(st timeline.State) (timeline.State, error) {
			return st.SelectClip(req.ClipID)
		})
	}
}

func clearSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyEdit(cfg, w, r, "clear_selection", func(st timeline.State) (timeline.State, error) {
			return st.ClearSelection(), nil
		})
	}
}

func deleteRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyEdit(cfg, w, r, "delete_selected_region", timeline.State.DeleteSelectedRegion)
	}
}

func setZoomHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ZoomRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		applyEdit(cfg, w, r, "set_zoom", func(st timeline.State) (timeline.State, error) {
			return st.SetZoom(req.Zoom), nil
		})
	}
}

func setSnapHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SnapRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		applyEdit(cfg, w, r, "set_snap", func(st timeline.State) (timeline.State, error) {
			if req.Enabled != nil {
				st = st.SetSnapEnabled(*req.Enabled)
			}
			if req.Tolerance != nil {
				st = st.SetSnapTolerance(*req.Tolerance)
			}
			return st, nil
		})
	}
}

// snapPositionHandler answers GET /timeline/snap?position=12.3&exclude=<clip id>.
func snapPositionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := strconv.ParseFloat(r.URL.Query().Get("position"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "position must be a number", CodeBadRequest)
			return
		}
		snapped := cfg.Session.State().SnapPosition(pos, r.URL.Query().Get("exclude"))
		WriteJSON(w, http.StatusOK, SnapResponse{
			Success:  true,
			Position: snapped,
			Snapped:  !timecode.Equal(snapped, pos),
		})
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}
		if req.Kind == "" {
			req.Kind = timeline.TrackOverlay
		}
		if req.Kind != timeline.TrackMain && req.Kind != timeline.TrackOverlay {
			WriteError(w, http.StatusBadRequest, "kind must be main or overlay", CodeBadRequest)
			return
		}

		var track timeline.Track
		st, err := cfg.Session.Apply(r.Context(), "add_track", func(st timeline.State) (timeline.State, error) {
			next, t := st.AddTrack(req.Kind)
			track = t
			return next, nil
		})
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TimelineResponse{Success: true, Timeline: st, Track: &track})
	}
}

func trackEditHandler(cfg ServerConfig, name string, edit func(timeline.State, string) (timeline.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, name, func(st timeline.State) (timeline.State, error) {
			return edit(st, id)
		})
	}
}

func trackVolumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, "set_track_volume", func(st timeline.State) (timeline.State, error) {
			return st.SetTrackVolume(id, req.Volume)
		})
	}
}

func renameTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameTrackRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, "rename_track", func(st timeline.State) (timeline.State, error) {
			return st.RenameTrack(id, req.Name)
		})
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.MediaID == "" {
			WriteError(w, http.StatusBadRequest, "media_id is required", CodeBadRequest)
			return
		}
		st, clip, err := cfg.Session.AddMedia(r.Context(), req.MediaID, req.TrackID)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TimelineResponse{Success: true, Timeline: st, Clip: &clip})
	}
}

func clipEditHandler(cfg ServerConfig, name string, edit func(timeline.State, string) (timeline.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, name, func(st timeline.State) (timeline.State, error) {
			return edit(st, id)
		})
	}
}

func trimClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, "update_clip_trim", func(st timeline.State) (timeline.State, error) {
			return st.UpdateClipTrim(id, req.TrimStart, req.TrimEnd)
		})
	}
}

func duplicateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var clip timeline.Clip
		st, err := cfg.Session.Apply(r.Context(), "duplicate_clip", func(st timeline.State) (timeline.State, error) {
			next, c, err := st.DuplicateClip(id)
			clip = c
			return next, err
		})
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TimelineResponse{Success: true, Timeline: st, Clip: &clip})
	}
}

func clipAudioOnlyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AudioOnlyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, "set_clip_audio_only", func(st timeline.State) (timeline.State, error) {
			return st.SetClipAudioOnly(id, req.AudioOnly)
		})
	}
}

func clipVolumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClipVolumeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		applyEdit(cfg, w, r, "set_clip_volume", func(st timeline.State) (timeline.State, error) {
			return st.SetClipVolume(id, req.Volume)
		})
	}
}
