package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/logging"
)

// Event is published for every progress step and state change of a job.
type Event struct {
	JobID      string  `json:"job_id"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	OutputPath string  `json:"output_path,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type activeExport struct {
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs at most one export at a time and fans its progress out to
// subscribers. Progress reported to subscribers never decreases.
type Manager struct {
	engine Engine
	store  JobStore
	logger *slog.Logger

	mu     sync.Mutex
	active *activeExport

	subMu   sync.RWMutex
	subs    map[int]chan Event
	nextSub int
}

func NewManager(engine Engine, store JobStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		engine: engine,
		store:  store,
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Start records a job for req and renders it in the background.
func (m *Manager) Start(ctx context.Context, req compose.Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrBusy
	}

	job := newJob(req)
	if err := m.store.CreateExportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("record export job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	active := &activeExport{job: job, cancel: cancel, done: make(chan struct{})}
	m.active = active

	m.logger.Info("export queued", "job_id", job.ID, "kind", job.Kind, "clips", job.ClipCount)
	m.publish(Event{JobID: job.ID, Status: JobStatusPending})

	snapshot := *job
	go m.run(runCtx, active)
	return &snapshot, nil
}

func (m *Manager) run(ctx context.Context, active *activeExport) {
	defer close(active.done)
	defer active.cancel()

	job := active.job
	logger := logging.WithJobID(m.logger, job.ID)
	bg := context.Background()

	if err := m.store.UpdateExportStatus(bg, job.ID, JobStatusRunning, ""); err != nil {
		logger.Warn("failed to mark export running", "error", err)
	}
	m.setStatus(job, JobStatusRunning, "")
	m.publish(Event{JobID: job.ID, Status: JobStatusRunning})

	var progressMu sync.Mutex
	last := 0.0
	onProgress := func(pct float64) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		progressMu.Lock()
		if pct <= last {
			progressMu.Unlock()
			return
		}
		persist := int(pct) > int(last)
		last = pct
		progressMu.Unlock()

		m.mu.Lock()
		job.Progress = pct
		m.mu.Unlock()
		if persist {
			if err := m.store.UpdateExportProgress(bg, job.ID, pct); err != nil {
				logger.Debug("failed to persist export progress", "error", err)
			}
		}
		m.publish(Event{JobID: job.ID, Status: JobStatusRunning, Progress: pct})
	}

	start := time.Now()
	out, err := m.engine.Render(ctx, job.Request, onProgress)

	switch {
	case err == nil:
		onProgress(100)
		m.finish(job, JobStatusCompleted, "")
		logger.Info("export completed", "output", out, "duration_ms", time.Since(start).Milliseconds())
		m.publish(Event{JobID: job.ID, Status: JobStatusCompleted, Progress: 100, OutputPath: out})
	case errors.Is(err, context.Canceled):
		m.finish(job, JobStatusCancelled, "cancelled by user")
		logger.Info("export cancelled")
		m.publish(Event{JobID: job.ID, Status: JobStatusCancelled, Progress: m.progressOf(job), Error: "cancelled by user"})
	default:
		m.finish(job, JobStatusFailed, err.Error())
		logger.Warn("export failed", "error", err)
		m.publish(Event{JobID: job.ID, Status: JobStatusFailed, Progress: m.progressOf(job), Error: err.Error()})
	}
}

func (m *Manager) finish(job *Job, status, errMsg string) {
	if err := m.store.UpdateExportStatus(context.Background(), job.ID, status, errMsg); err != nil {
		m.logger.Warn("failed to record export result", "job_id", job.ID, "status", status, "error", err)
	}
	m.mu.Lock()
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	m.active = nil
	m.mu.Unlock()
}

func (m *Manager) setStatus(job *Job, status, errMsg string) {
	m.mu.Lock()
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *Manager) progressOf(job *Job) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return job.Progress
}

// Cancel aborts the running export with id.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active == nil || active.job.ID != id {
		job, err := m.store.GetExportJob(context.Background(), id)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrJobNotFound
		}
		return ErrNotActive
	}

	m.logger.Info("cancelling export", "job_id", id)
	active.cancel()
	<-active.done
	return nil
}

// Active returns a copy of the running job, if any.
func (m *Manager) Active() (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, false
	}
	snapshot := *m.active.job
	return &snapshot, true
}

func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	if job, ok := m.Active(); ok && job.ID == id {
		return job, nil
	}
	job, err := m.store.GetExportJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]*Job, error) {
	return m.store.ListExportJobs(ctx, limit)
}

// Shutdown cancels the running export and waits for it to settle.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil {
		return
	}
	active.cancel()
	<-active.done
}

// Subscribe returns a channel of job events and a function that ends the
// subscription. Slow subscribers miss intermediate events rather than stall
// the export.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
