package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/clipforge/clipforge/internal/render"
	"github.com/clipforge/clipforge/internal/timecode"
	"github.com/clipforge/clipforge/internal/timeline"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

// TimelineSource exposes the current editing state.
type TimelineSource interface {
	State() timeline.State
}

// ExportControl is the part of the render manager the tray drives.
type ExportControl interface {
	Subscribe() (<-chan render.Event, func())
	Active() (*render.Job, bool)
	Cancel(id string) error
}

type Tray struct {
	timeline TimelineSource
	exports  ExportControl
	logger   *slog.Logger

	timelineItem *systray.MenuItem
	exportItem   *systray.MenuItem
	cancelItem   *systray.MenuItem

	mu     sync.Mutex
	jobID  string
	stop   chan struct{}
	onQuit func()
}

type TrayConfig struct {
	Timeline TimelineSource
	Exports  ExportControl
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		timeline: cfg.Timeline,
		exports:  cfg.Exports,
		logger:   cfg.Logger,
		stop:     make(chan struct{}),
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("ClipForge")
	systray.SetTooltip("ClipForge editor service")

	t.timelineItem = systray.AddMenuItem(timelineSummary(t.timeline.State()), "Current timeline")
	t.timelineItem.Disable()

	t.exportItem = systray.AddMenuItem("Export: idle", "Export progress")
	t.exportItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Stop the running export")
	t.cancelItem.Disable()
	if job, ok := t.exports.Active(); ok {
		t.showExport(render.Event{JobID: job.ID, Status: job.Status, Progress: job.Progress})
	}

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit ClipForge")

	events, unsubscribe := t.exports.Subscribe()
	go t.watchExports(events)
	go t.refreshTimeline()

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.cancelExport()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				unsubscribe()
				close(t.stop)
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) watchExports(events <-chan render.Event) {
	for ev := range events {
		t.showExport(ev)
	}
}

func (t *Tray) refreshTimeline() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	last := ""
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			summary := timelineSummary(t.timeline.State())
			if summary != last {
				t.timelineItem.SetTitle(summary)
				last = summary
			}
		}
	}
}

func (t *Tray) showExport(ev render.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.exportItem.SetTitle(exportSummary(ev))
	if isRunning(ev.Status) {
		t.jobID = ev.JobID
		t.cancelItem.Enable()
		return
	}
	if ev.JobID == t.jobID {
		t.jobID = ""
		t.cancelItem.Disable()
	}
}

func (t *Tray) cancelExport() {
	t.mu.Lock()
	id := t.jobID
	t.mu.Unlock()
	if id == "" {
		return
	}
	if err := t.exports.Cancel(id); err != nil {
		t.logger.Warn("failed to cancel export from tray", "job_id", id, "error", err)
	}
}

// Quit closes the tray from outside the menu, e.g. on a shutdown signal.
func (t *Tray) Quit() {
	systray.Quit()
}

func isRunning(status string) bool {
	return status == render.JobStatusPending || status == render.JobStatusRunning
}

func timelineSummary(st timeline.State) string {
	clips := "clips"
	if len(st.Clips) == 1 {
		clips = "clip"
	}
	return fmt.Sprintf("Timeline: %d %s, %s", len(st.Clips), clips, timecode.FormatTime(st.Duration, false))
}

func exportSummary(ev render.Event) string {
	switch ev.Status {
	case render.JobStatusPending:
		return "Export: starting"
	case render.JobStatusRunning:
		return fmt.Sprintf("Export: %d%%", int(ev.Progress))
	case render.JobStatusCompleted:
		return "Export: done"
	case render.JobStatusFailed:
		return "Export: failed"
	case render.JobStatusCancelled:
		return "Export: cancelled"
	}
	return "Export: idle"
}
