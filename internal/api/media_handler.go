package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/timeline"
)

func listMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, MediaListResponse{Success: true, Items: cfg.Session.Catalog().Items()})
	}
}

func importMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportMediaRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", CodeBadRequest)
			return
		}

		item, err := cfg.Session.ImportMedia(r.Context(), req.Path)
		if err != nil {
			status, code := errorStatus(err)
			if status == http.StatusInternalServerError {
				// Missing files and inspection failures are the caller's input.
				status, code = http.StatusBadRequest, CodeBadRequest
			}
			WriteError(w, status, err.Error(), code)
			return
		}
		WriteJSON(w, http.StatusCreated, MediaResponse{Success: true, Item: item})
	}
}

// removeMediaHandler handles DELETE /media/{id}?prune=true. Without prune the
// clips that use the item stay on the timeline.
func removeMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prune, _ := strconv.ParseBool(r.URL.Query().Get("prune"))
		removed, err := cfg.Session.RemoveMedia(r.Context(), chi.URLParam(r, "id"), prune)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Success: true, Timeline: cfg.Session.State(), Removed: removed})
	}
}

// pruneMediaHandler removes the clips of a media item and keeps the item.
func pruneMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		removed := 0
		st, err := cfg.Session.Apply(r.Context(), "remove_clips_for_media", func(st timeline.State) (timeline.State, error) {
			next, n := st.RemoveClipsForMedia(id)
			removed = n
			return next, nil
		})
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Success: true, Timeline: st, Removed: removed})
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := 0.0
		if v := r.URL.Query().Get("at"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "at must be a number of seconds", CodeBadRequest)
				return
			}
			at = parsed
		}

		path, err := cfg.Session.Thumbnail(r.Context(), chi.URLParam(r, "id"), at)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=3600")
		http.ServeFile(w, r, path)
	}
}

func mediaSourceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		path, err := cfg.Session.MediaPath(id)
		if err != nil {
			writeDomainError(w, r, cfg.Logger, err)
			return
		}
		if err := cfg.Playback.Stream(w, r, path); err != nil {
			writeDomainError(w, r, cfg.Logger, err)
		}
	}
}
