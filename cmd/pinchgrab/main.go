package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/pinchgrab/internal/app"
	"github.com/ayusman/pinchgrab/internal/capture"
	"github.com/ayusman/pinchgrab/internal/config"
	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/logging"
	"github.com/ayusman/pinchgrab/internal/render"
	"github.com/ayusman/pinchgrab/internal/server"
	"github.com/ayusman/pinchgrab/internal/store"
	"github.com/ayusman/pinchgrab/internal/tray"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("pinchgrab failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	stored, err := st.Layout().Objects()
	if err != nil {
		return fmt.Errorf("load stored layout: %w", err)
	}
	objects, source, err := config.ResolveLayout(stored, cfg.LayoutFile)
	if err != nil {
		return err
	}
	logger.Info("scene loaded", "source", source, "objects", len(objects))

	camCfg := capture.DefaultConfig()
	camCfg.DeviceID = cfg.CameraID

	detCfg := detector.DefaultConfig()
	detCfg.MaxHands = cfg.MaxHands

	det, err := detector.NewMediaPipeDetector(detCfg, logger)
	if err != nil {
		return fmt.Errorf("landmark source: %w", err)
	}

	overlay := render.NewOverlay(cfg.Sprite())
	hub := server.NewSceneHub(logger)
	renderers := render.Multi{overlay, hub}

	enabled := st.Settings().Bool(store.SettingEnabled, true)

	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New()
		renderers = append(renderers, tr)
	}

	application, err := app.New(app.Config{
		Camera:         capture.NewCamera(camCfg),
		Detector:       det,
		Renderer:       renderers,
		Objects:        objects,
		PinchThreshold: cfg.PinchThreshold,
		HitBox:         cfg.HitBox(),
		TargetRateHz:   cfg.TargetRateHz,
		HostRateHz:     cfg.HostRateHz,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer application.Close()
	application.SetEnabled(enabled)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return err
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Scene:     hub,
		Overlay:   overlay,
		Control:   application,
		Logger:    logger,
	})
	httpServer := srv.HTTPServer(cfg.Addr)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if tr != nil {
		tr.Attach(application)
		tr.OnToggle(func(enabled bool) {
			if err := st.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
				logger.Warn("persisting enabled setting", "error", err)
			}
			logger.Info("processing toggled", "enabled", enabled)
		})
		tr.OnSettings(func() {
			logger.Info("scene available", "url", "http://localhost"+cfg.Addr)
		})
		tr.OnQuit(cancel)

		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		// Blocks on the main goroutine until quit.
		tr.Run()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
