// Package render drives the external render engine: it hands a composed
// request to the renderer subprocess, tracks progress and keeps a persisted
// history of export jobs.
package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	progressPrefix = "progress="
)

// Engine renders a composed request to its output path. onProgress receives
// percentages in 0..100 and may be called from another goroutine.
type Engine interface {
	Render(ctx context.Context, req compose.Request, onProgress func(float64)) (string, error)
}

// Config holds the subprocess engine settings.
type Config struct {
	RendererPath string        // renderer binary; resolved on PATH
	WorkDir      string        // where request files are written
	Timeout      time.Duration // upper bound for one render
	Logger       *slog.Logger
}

// SubprocessEngine runs `<renderer> render --request <file> --out <path>`.
// The renderer reports progress on stdout as lines of the form progress=NN.
type SubprocessEngine struct {
	cfg      Config
	renderer string
}

func NewSubprocessEngine(cfg Config) (*SubprocessEngine, error) {
	renderer, err := exec.LookPath(cfg.RendererPath)
	if err != nil {
		return nil, fmt.Errorf("renderer %q not found: %w", cfg.RendererPath, err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create render work dir: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger.Info("render engine initialised", "renderer", renderer, "timeout", cfg.Timeout)
	return &SubprocessEngine{cfg: cfg, renderer: renderer}, nil
}

// Unavailable stands in when the renderer cannot be located; every export
// fails with Reason.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Render(context.Context, compose.Request, func(float64)) (string, error) {
	return "", fmt.Errorf("renderer unavailable: %w", u.Reason)
}

// ExitError reports a renderer that exited non-zero.
type ExitError struct {
	ExitCode   int
	StderrTail string
}

func (e *ExitError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("renderer exited %d", e.ExitCode)
	}
	return fmt.Sprintf("renderer exited %d: %s", e.ExitCode, truncate(strings.TrimSpace(e.StderrTail), 512))
}

func (e *SubprocessEngine) Render(ctx context.Context, req compose.Request, onProgress func(float64)) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	reqFile, err := e.writeRequest(req)
	if err != nil {
		return "", err
	}
	defer os.Remove(reqFile)

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.renderer, "render", "--request", reqFile, "--out", req.OutputPath)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("renderer stdout: %w", err)
	}

	e.cfg.Logger.Info("starting render", "kind", req.Kind, "clips", req.ClipCount(), "format", req.Format)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start renderer: %w", err)
	}
	readProgress(stdout, onProgress)
	err = cmd.Wait()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		e.cfg.Logger.Warn("render aborted", "reason", ctxErr, "duration_ms", elapsed.Milliseconds())
		return "", ctxErr
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		e.cfg.Logger.Warn("render failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return "", &ExitError{ExitCode: exitCode, StderrTail: stderrBuf.String()}
	}

	if _, err := os.Stat(req.OutputPath); err != nil {
		return "", fmt.Errorf("renderer reported success but output is missing: %w", err)
	}
	e.cfg.Logger.Info("render succeeded", "duration_ms", elapsed.Milliseconds())
	return req.OutputPath, nil
}

func (e *SubprocessEngine) writeRequest(req compose.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}
	f, err := os.CreateTemp(e.cfg.WorkDir, "request-*.json")
	if err != nil {
		return "", fmt.Errorf("create request file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write request file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return filepath.Clean(f.Name()), nil
}

// readProgress consumes renderer stdout until EOF, forwarding progress lines.
func readProgress(r io.Reader, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pct, ok := parseProgress(scanner.Text())
		if ok && onProgress != nil {
			onProgress(pct)
		}
	}
	// drain so the renderer never blocks on a full pipe
	io.Copy(io.Discard, r)
}

func parseProgress(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(line, progressPrefix), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
