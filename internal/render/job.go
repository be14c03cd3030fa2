package render

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/compose"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

var (
	ErrJobNotFound = errors.New("export job not found")
	ErrBusy        = errors.New("another export is already running")
	ErrNotActive   = errors.New("export job is not running")
)

// Job is one export attempt. A failed job is never retried; the user starts
// a new one.
type Job struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Kind       compose.Kind    `json:"kind"`
	Format     compose.Format  `json:"format"`
	OutputPath string          `json:"output_path"`
	ClipCount  int             `json:"clip_count"`
	Progress   float64         `json:"progress"`
	Error      string          `json:"error,omitempty"`
	Request    compose.Request `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func newJob(req compose.Request) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		Status:     JobStatusPending,
		Kind:       req.Kind,
		Format:     req.Format,
		OutputPath: req.OutputPath,
		ClipCount:  req.ClipCount(),
		Request:    req,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// JobStore persists export jobs.
type JobStore interface {
	CreateExportJob(ctx context.Context, job *Job) error
	GetExportJob(ctx context.Context, id string) (*Job, error)
	ListExportJobs(ctx context.Context, limit int) ([]*Job, error)
	UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateExportProgress(ctx context.Context, id string, progress float64) error
}
