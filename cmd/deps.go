package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/andresmejia3/checkpoint/internal/camera"
	"github.com/andresmejia3/checkpoint/internal/capture"
	"github.com/andresmejia3/checkpoint/internal/client"
	"github.com/andresmejia3/checkpoint/internal/config"
	"github.com/andresmejia3/checkpoint/internal/fingerprint"
	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/jonboulle/clockwork"
)

func newCamera(cfg *config.Config) *camera.Camera {
	var driver camera.Driver
	switch cfg.Camera.Driver {
	case "pattern":
		driver = camera.PatternDriver{}
	default:
		device := cfg.Camera.Device
		if device == "" {
			device = camera.DefaultDevice(runtime.GOOS)
		}
		driver = camera.FFmpegDriver{FFmpegPath: cfg.Camera.FFmpegPath, Device: device, GOOS: runtime.GOOS}
	}

	return camera.New(driver, camera.Config{
		Constraints: camera.Constraints{
			FacingMode: cfg.Camera.FacingMode,
			Width:      cfg.Camera.Width,
			Height:     cfg.Camera.Height,
			FrameRate:  cfg.Camera.FrameRate,
		},
		ReadyTimeout: cfg.Camera.ReadyTimeout,
	}, Log.WithField("component", "camera"))
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(client.Options{
		BaseURL:   cfg.ServerURL,
		Timeout:   cfg.Timeout,
		UserAgent: "checkpoint/" + Version,
		Logger:    Log.WithField("component", "client"),
	})
}

func newEncoder(cfg *config.Config) capture.Encoder {
	return capture.NewEncoder(cfg.Capture.Quality)
}

func newFingerprintReader(cfg *config.Config) fingerprint.Reader {
	return &fingerprint.Simulated{Delay: cfg.Fingerprint.ScanDelay, Clock: clockwork.NewRealClock()}
}

// journal returns DB as a workflow.Journal, or a nil interface when the
// journal is off so workflows skip it.
func journal() workflow.Journal {
	if DB == nil {
		return nil
	}
	return DB
}

// saveImage writes img under dir as <prefix>-<timestamp>.jpg. An empty dir
// disables saving.
func saveImage(dir, prefix string, img types.CapturedImage) (string, error) {
	if dir == "" || img.IsZero() {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create save dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jpg", prefix, time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, img.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to save capture: %w", err)
	}
	return path, nil
}
