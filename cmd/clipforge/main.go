package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clipforge/clipforge/internal/api"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/db"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/render"
	"github.com/clipforge/clipforge/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.CacheDir(), cfg.RenderDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  CLIPFORGE v%-46s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ffmpeg := media.NewFFmpeg(cfg.FFprobePath(), cfg.FFmpegPath(), logging.WithComponent(logger, "media"))

	editor := cfg.Editor()
	session := project.NewSession(project.Options{
		Repo:        repo,
		Inspector:   ffmpeg,
		Thumbnailer: ffmpeg,
		CacheDir:    cfg.CacheDir(),
		Defaults: project.Defaults{
			Zoom:          editor.Zoom,
			SnapEnabled:   editor.SnapEnabled,
			SnapTolerance: editor.SnapTolerance,
		},
		Logger: logger,
	})
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = session.Load(loadCtx)
	loadCancel()
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	renderLogger := logging.WithComponent(logger, "render")
	var engine render.Engine
	subprocess, err := render.NewSubprocessEngine(render.Config{
		RendererPath: cfg.RendererPath(),
		WorkDir:      cfg.RenderDir(),
		Timeout:      cfg.RenderTimeout(),
		Logger:       renderLogger,
	})
	if err != nil {
		logger.Warn("renderer unavailable, exports disabled", "error", err)
		engine = render.Unavailable{Reason: err}
	} else {
		engine = subprocess
	}
	exports := render.NewManager(engine, repo, renderLogger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Session:        session,
		Exports:        exports,
		Tokens:         repo,
		Playback:       playback.NewServer(logging.WithComponent(logger, "playback")),
		ExportDefaults: cfg.ExportDefaults(),
		Logger:         logging.WithComponent(logger, "api"),
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Timeline: session,
			Exports:  exports,
			Logger:   logging.WithComponent(logger, "tray"),
			OnQuit:   quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	exports.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if tray != nil {
		tray.Quit()
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
