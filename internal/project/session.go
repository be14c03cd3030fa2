// Package project owns the editing session: the single writer of timeline
// and catalog state, and the persistence of their snapshots.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/timeline"
)

var (
	ErrMediaNotFound   = errors.New("media item not found")
	ErrUnsupportedFile = errors.New("unsupported media file")
	ErrNoPlayableMedia = errors.New("media item has no playable duration")
)

// Op is a timeline transition. It must not retain or mutate its argument.
type Op func(timeline.State) (timeline.State, error)

// Defaults seed a fresh timeline.
type Defaults struct {
	Zoom          float64
	SnapEnabled   bool
	SnapTolerance float64
}

type Options struct {
	Repo        Repository
	Inspector   media.Inspector
	Thumbnailer media.Thumbnailer
	CacheDir    string
	Defaults    Defaults
	Logger      *slog.Logger
}

// Session serialises every edit through one mutex. Readers get immutable
// State values and never observe a half-applied edit.
type Session struct {
	repo      Repository
	inspector media.Inspector
	thumbs    media.Thumbnailer
	cacheDir  string
	defaults  Defaults
	logger    *slog.Logger

	mu      sync.RWMutex
	state   timeline.State
	catalog media.Catalog
}

func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		repo:      opts.Repo,
		inspector: opts.Inspector,
		thumbs:    opts.Thumbnailer,
		cacheDir:  opts.CacheDir,
		defaults:  opts.Defaults,
		logger:    logging.WithComponent(logger, "session"),
		catalog:   media.NewCatalog(),
	}
	s.state = s.fresh()
	return s
}

func (s *Session) fresh() timeline.State {
	st := timeline.New()
	if s.defaults.Zoom > 0 {
		st = st.SetZoom(s.defaults.Zoom)
	}
	if s.defaults.SnapTolerance > 0 {
		st = st.SetSnapTolerance(s.defaults.SnapTolerance)
	}
	return st.SetSnapEnabled(s.defaults.SnapEnabled)
}

// Load restores the persisted timeline and catalog. A snapshot written with
// another schema version, or one that no longer validates, is discarded and
// replaced by the canonical empty state.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}
	state, err := s.loadTimeline(ctx)
	if err != nil {
		return err
	}
	s.catalog = catalog
	s.state = state
	s.logger.Info("project loaded", "tracks", len(state.Tracks), "clips", len(state.Clips), "media", catalog.Len())
	return nil
}

func (s *Session) loadTimeline(ctx context.Context) (timeline.State, error) {
	stored, err := s.repo.LoadSnapshot(ctx, SnapshotTimeline)
	if err != nil {
		return timeline.State{}, fmt.Errorf("load timeline snapshot: %w", err)
	}
	if stored == nil {
		return s.fresh(), nil
	}

	var snap timeline.Snapshot
	if err := json.Unmarshal(stored.Payload, &snap); err != nil {
		s.logger.Warn("discarding unreadable timeline snapshot", "error", err)
		return s.resetTimeline(ctx)
	}
	if stored.SchemaVersion != timeline.SchemaVersion {
		snap.Version = stored.SchemaVersion
	}
	state, ok := timeline.Restore(snap)
	if !ok {
		s.logger.Warn("discarding incompatible timeline snapshot",
			"stored_version", stored.SchemaVersion, "current_version", timeline.SchemaVersion)
		return s.resetTimeline(ctx)
	}
	return state, nil
}

func (s *Session) resetTimeline(ctx context.Context) (timeline.State, error) {
	state := s.fresh()
	if err := s.saveTimeline(ctx, state); err != nil {
		return timeline.State{}, err
	}
	return state, nil
}

func (s *Session) loadCatalog(ctx context.Context) (media.Catalog, error) {
	stored, err := s.repo.LoadSnapshot(ctx, SnapshotCatalog)
	if err != nil {
		return media.Catalog{}, fmt.Errorf("load catalog snapshot: %w", err)
	}
	if stored == nil {
		return media.NewCatalog(), nil
	}

	var snap media.CatalogSnapshot
	if err := json.Unmarshal(stored.Payload, &snap); err != nil || stored.SchemaVersion != media.CatalogSchemaVersion {
		s.logger.Warn("discarding incompatible catalog snapshot", "stored_version", stored.SchemaVersion)
		catalog := media.NewCatalog()
		return catalog, s.saveCatalog(ctx, catalog)
	}
	catalog, ok := media.RestoreCatalog(snap)
	if !ok {
		catalog = media.NewCatalog()
		return catalog, s.saveCatalog(ctx, catalog)
	}
	return catalog, nil
}

func (s *Session) saveTimeline(ctx context.Context, st timeline.State) error {
	payload, err := json.Marshal(st.Snapshot())
	if err != nil {
		return fmt.Errorf("encode timeline snapshot: %w", err)
	}
	if err := s.repo.SaveSnapshot(ctx, SnapshotTimeline, timeline.SchemaVersion, payload); err != nil {
		return fmt.Errorf("save timeline snapshot: %w", err)
	}
	return nil
}

func (s *Session) saveCatalog(ctx context.Context, c media.Catalog) error {
	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		return fmt.Errorf("encode catalog snapshot: %w", err)
	}
	if err := s.repo.SaveSnapshot(ctx, SnapshotCatalog, media.CatalogSchemaVersion, payload); err != nil {
		return fmt.Errorf("save catalog snapshot: %w", err)
	}
	return nil
}

// State returns the current timeline.
func (s *Session) State() timeline.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Catalog returns the current media catalog.
func (s *Session) Catalog() media.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Apply runs op against the current timeline. On success the result becomes
// current and, when the persisted part changed, is written to the store. A
// failed store write is logged and does not roll back the edit; the next
// successful write carries it.
func (s *Session) Apply(ctx context.Context, name string, op Op) (timeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, name, op)
}

func (s *Session) applyLocked(ctx context.Context, name string, op Op) (timeline.State, error) {
	prev := s.state
	next, err := op(prev)
	if err != nil {
		s.logger.Debug("edit rejected", "op", name, "reason", err, "aborted", timeline.IsAborted(err))
		return prev, err
	}
	s.state = next

	if reflect.DeepEqual(prev.Snapshot(), next.Snapshot()) {
		return next, nil
	}
	s.logger.Info("edit applied", "op", name, "clips", len(next.Clips), "duration", next.Duration)
	if err := s.saveTimeline(ctx, next); err != nil {
		s.logger.Error("failed to persist timeline", "op", name, "error", err)
	}
	return next, nil
}

// SetPlayhead moves the playhead without persisting anything. It is called
// at frame rate during playback.
func (s *Session) SetPlayhead(position float64) timeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.SetPlayhead(position)
	return s.state
}

// Reset replaces the timeline with an empty one. The catalog is kept.
func (s *Session) Reset(ctx context.Context) (timeline.State, error) {
	return s.Apply(ctx, "reset", func(timeline.State) (timeline.State, error) {
		return s.fresh(), nil
	})
}

// ImportMedia inspects path and adds it to the catalog. Importing a path that
// is already in the catalog returns the existing item.
func (s *Session) ImportMedia(ctx context.Context, path string) (media.Item, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return media.Item{}, fmt.Errorf("invalid path: %w", err)
	}
	if !media.IsMediaFile(abs) {
		return media.Item{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(abs))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return media.Item{}, fmt.Errorf("path does not exist: %w", err)
	}
	if info.IsDir() {
		return media.Item{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFile, filepath.Base(abs))
	}

	if existing, ok := s.Catalog().FindByPath(abs); ok {
		return existing, nil
	}

	meta, err := s.inspector.Inspect(ctx, abs)
	if err != nil {
		return media.Item{}, fmt.Errorf("inspect %s: %w", filepath.Base(abs), err)
	}
	if meta.FileSize == 0 {
		meta.FileSize = info.Size()
	}
	item := media.NewItem(abs, meta)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.catalog.FindByPath(abs); ok {
		return existing, nil
	}
	catalog := s.catalog.Add(item)
	if err := s.saveCatalog(ctx, catalog); err != nil {
		return media.Item{}, err
	}
	s.catalog = catalog

	logging.WithMediaID(s.logger, item.ID).Info("media imported",
		"path", logging.SanitizePath(abs), "duration", item.Duration, "type", item.Type)
	return item, nil
}

// RemoveMedia drops an item from the catalog. With pruneClips the clips that
// reference it are removed from the timeline too; otherwise they are left
// dangling and surface as an export error.
func (s *Session) RemoveMedia(ctx context.Context, id string, pruneClips bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, ok := s.catalog.Remove(id)
	if !ok {
		return 0, ErrMediaNotFound
	}
	if err := s.saveCatalog(ctx, catalog); err != nil {
		return 0, err
	}
	s.catalog = catalog
	s.logger.Info("media removed", "media_id", id, "prune_clips", pruneClips)

	if !pruneClips {
		return 0, nil
	}
	removed := 0
	_, err := s.applyLocked(ctx, "remove_clips_for_media", func(st timeline.State) (timeline.State, error) {
		next, n := st.RemoveClipsForMedia(id)
		removed = n
		return next, nil
	})
	return removed, err
}

// AddMedia places a catalog item on a track using its full duration.
func (s *Session) AddMedia(ctx context.Context, mediaID, trackID string) (timeline.State, timeline.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.catalog.Get(mediaID)
	if !ok {
		return s.state, timeline.Clip{}, ErrMediaNotFound
	}
	if item.Duration <= 0 {
		return s.state, timeline.Clip{}, ErrNoPlayableMedia
	}

	var clip timeline.Clip
	st, err := s.applyLocked(ctx, "add_clip", func(st timeline.State) (timeline.State, error) {
		next, c, err := st.AddClip(mediaID, item.Duration, trackID)
		clip = c
		return next, err
	})
	if err == nil {
		logging.WithClipID(s.logger, clip.ID).Debug("clip placed", "media_id", mediaID, "track_id", clip.TrackID)
	}
	return st, clip, err
}

// MediaPath returns the source file of a catalog item.
func (s *Session) MediaPath(id string) (string, error) {
	item, ok := s.Catalog().Get(id)
	if !ok {
		return "", ErrMediaNotFound
	}
	return item.SourcePath, nil
}

// Thumbnail returns a cached JPEG frame of a media item at second at,
// extracting it on first use.
func (s *Session) Thumbnail(ctx context.Context, mediaID string, at float64) (string, error) {
	item, ok := s.Catalog().Get(mediaID)
	if !ok {
		return "", ErrMediaNotFound
	}
	if !item.HasVideo {
		return "", fmt.Errorf("%w: %s has no video stream", media.ErrNoMediaStream, item.Name)
	}
	if at < 0 {
		at = 0
	}
	if item.Duration > 0 && at > item.Duration {
		at = item.Duration
	}

	out := filepath.Join(s.cacheDir, "thumbnails", fmt.Sprintf("%s_%d.jpg", item.ID, int(at*1000)))
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := s.thumbs.Thumbnail(ctx, item.SourcePath, at, out); err != nil {
		return "", fmt.Errorf("extract thumbnail: %w", err)
	}
	return out, nil
}

// BuildExport composes the render request for the current timeline.
func (s *Session) BuildExport(outputPath string, settings compose.Settings) (compose.Request, error) {
	s.mu.RLock()
	st, catalog := s.state, s.catalog
	s.mu.RUnlock()
	return compose.Build(st, catalog, outputPath, settings)
}

// EDL renders the main track as a CMX3600 edit decision list.
func (s *Session) EDL(title string, frameRate float64) (string, error) {
	s.mu.RLock()
	st, catalog := s.state, s.catalog
	s.mu.RUnlock()

	events, err := compose.MainTrackEvents(st, catalog)
	if err != nil {
		return "", err
	}
	if frameRate <= 0 {
		frameRate = mainFrameRate(st, catalog)
	}
	return compose.GenerateEDL(events, compose.SanitizeName(title, 80), frameRate), nil
}

// mainFrameRate is the frame rate of the first clip on the main track.
func mainFrameRate(st timeline.State, catalog media.Catalog) float64 {
	main, ok := st.MainTrack()
	if !ok {
		return 30
	}
	for _, c := range st.ClipsOnTrack(main.ID) {
		if item, ok := catalog.Get(c.MediaID); ok && item.FPS > 0 {
			return item.FPS
		}
	}
	return 30
}
