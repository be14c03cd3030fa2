package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/render"
)

// Snapshot names.
const (
	SnapshotTimeline = "timeline"
	SnapshotCatalog  = "catalog"
)

// StoredSnapshot is a persisted aggregate payload tagged with its schema version.
type StoredSnapshot struct {
	Name          string
	SchemaVersion int
	Payload       []byte
	UpdatedAt     time.Time
}

type Repository interface {
	SaveSnapshot(ctx context.Context, name string, schemaVersion int, payload []byte) error
	LoadSnapshot(ctx context.Context, name string) (*StoredSnapshot, error)
	DeleteSnapshot(ctx context.Context, name string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	render.JobStore
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, name string, schemaVersion int, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET schema_version = excluded.schema_version,
			payload = excluded.payload, updated_at = excluded.updated_at
	`, name, schemaVersion, string(payload), formatTime(time.Now()))
	return err
}

// LoadSnapshot returns nil when no snapshot has been stored under name.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, name string) (*StoredSnapshot, error) {
	var s StoredSnapshot
	var payload, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT name, schema_version, payload, updated_at FROM snapshots WHERE name = ?`, name,
	).Scan(&s.Name, &s.SchemaVersion, &payload, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Payload = []byte(payload)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) CreateExportJob(ctx context.Context, j *render.Job) error {
	request, err := json.Marshal(j.Request)
	if err != nil {
		return fmt.Errorf("encode export request: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (id, status, kind, format, output_path, clip_count, progress, error, request, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Status, string(j.Kind), string(j.Format), j.OutputPath, j.ClipCount, j.Progress,
		nullString(j.Error), string(request), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

const exportColumns = `id, status, kind, format, output_path, clip_count, progress, error, request, created_at, updated_at`

func (r *SQLiteRepository) GetExportJob(ctx context.Context, id string) (*render.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+exportColumns+" FROM export_jobs WHERE id = ?", id)
	j, err := scanExportJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListExportJobs(ctx context.Context, limit int) ([]*render.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+exportColumns+" FROM export_jobs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*render.Job
	for rows.Next() {
		j, err := scanExportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateExportProgress(ctx context.Context, id string, progress float64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET progress = ?, updated_at = ? WHERE id = ?",
		progress, formatTime(time.Now()), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExportJob(row scanner) (*render.Job, error) {
	var j render.Job
	var kind, format, request, createdAt, updatedAt string
	var errMsg sql.NullString
	if err := row.Scan(&j.ID, &j.Status, &kind, &format, &j.OutputPath, &j.ClipCount, &j.Progress,
		&errMsg, &request, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.Kind = compose.Kind(kind)
	j.Format = compose.Format(format)
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(request), &j.Request); err != nil {
		return nil, fmt.Errorf("decode export request %s: %w", j.ID, err)
	}
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
