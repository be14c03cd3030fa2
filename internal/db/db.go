package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clipforge/clipforge/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// InterruptedError is recorded on exports that were in flight when the
// previous process exited.
const InterruptedError = "interrupted by restart"

// connPragmas are applied by the driver to every connection it opens.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`

// DB wraps the editor's SQLite database.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// migration is one embedded schema step. Version comes from the numeric
// filename prefix, so 002_export_jobs.sql is version 2.
type migration struct {
	version int
	name    string
	sql     string
}

// New opens (creating if needed) the database at dbPath and applies pending
// migrations. Exports left unfinished by a previous process are marked failed.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{conn: conn, logger: logger}

	steps, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := d.upgrade(ctx, steps); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	n, err := d.failInterruptedExports(ctx)
	switch {
	case err != nil:
		logger.Warn("failed to mark interrupted exports", "error", err)
	case n > 0:
		logger.Info("marked interrupted exports as failed", "count", n)
	}

	return d, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// SchemaVersion reports the highest applied migration, or 0 on a fresh file.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func dsn(dbPath string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + dbPath + "?" + q.Encode()
}

// loadMigrations reads every NNN_name.sql file under dir, ordered by version.
// Duplicate or missing version prefixes are rejected.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var steps []migration
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version", e.Name())
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, e.Name(), version)
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		steps = append(steps, migration{version: version, name: e.Name(), sql: string(body)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// upgrade applies every step newer than the recorded schema version. Each
// step and its version row commit together.
func (d *DB) upgrade(ctx context.Context, steps []migration) error {
	if _, err := d.conn.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range steps {
		if m.version <= current {
			continue
		}
		if err := d.apply(ctx, m); err != nil {
			return err
		}
		d.logger.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (d *DB) apply(ctx context.Context, m migration) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.name, err)
	}
	return tx.Commit()
}

func (d *DB) failInterruptedExports(ctx context.Context) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`UPDATE export_jobs SET status = 'failed', error = ?, updated_at = ?
		 WHERE status IN ('pending', 'running')`,
		InterruptedError, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
