package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("CHECKPOINT_DB_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "http://localhost:5000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 || cfg.Camera.FacingMode != "user" {
		t.Errorf("Unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.Capture.Quality != 90 {
		t.Errorf("Quality = %d, want 90", cfg.Capture.Quality)
	}
	if cfg.Fingerprint.ScanDelay != 3*time.Second {
		t.Errorf("ScanDelay = %s", cfg.Fingerprint.ScanDelay)
	}
	if cfg.Log.MaxAge != 7*24*time.Hour {
		t.Errorf("Log.MaxAge = %s", cfg.Log.MaxAge)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Journal should be off by default, got %q", cfg.Database.URL)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, DefaultFile, `
server_url: http://gate.local:8080
camera:
  driver: pattern
  width: 640
  height: 480
capture:
  quality: 75
log:
  level: debug
`)
	writeFile(t, dir, ".env", "CHECKPOINT_CAMERA_DEVICE=/dev/video2\n")
	t.Setenv("CHECKPOINT_SERVER_URL", "http://override:9000")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "checkpoint")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("CHECKPOINT_DB_URL", "")
	t.Cleanup(func() { os.Unsetenv("CHECKPOINT_CAMERA_DEVICE") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "http://override:9000" {
		t.Errorf("Environment should win over the file, got %q", cfg.ServerURL)
	}
	if cfg.Camera.Driver != "pattern" || cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("Unexpected camera: %+v", cfg.Camera)
	}
	if cfg.Camera.FacingMode != "user" {
		t.Error("Unset keys should keep their defaults")
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("Device from .env = %q", cfg.Camera.Device)
	}
	if cfg.Capture.Quality != 75 || cfg.Log.Level != "debug" {
		t.Errorf("Unexpected file values: quality %d level %s", cfg.Capture.Quality, cfg.Log.Level)
	}
	if cfg.Database.URL != "postgres://u:p@db:5432/checkpoint" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nope.yaml"); err == nil {
		t.Error("Expected an error for a missing explicit config file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "bad.yaml", "camera: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestLoad_InvalidValueLeftForOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CHECKPOINT_CAMERA_DRIVER", "")
	path := writeFile(t, dir, "cam.yaml", "camera:\n  driver: v4l\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not validate, got %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected the file value to be invalid")
	}

	cfg.Camera.Driver = "pattern"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Override did not fix the config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"Empty server", func(c *Config) { c.ServerURL = " " }, "server_url"},
		{"Quality zero", func(c *Config) { c.Capture.Quality = 0 }, "quality"},
		{"Quality too high", func(c *Config) { c.Capture.Quality = 101 }, "quality"},
		{"Zero width", func(c *Config) { c.Camera.Width = 0 }, "camera size"},
		{"Unknown driver", func(c *Config) { c.Camera.Driver = "v4l" }, "camera.driver"},
		{"Zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				ServerURL: "http://x",
				Timeout:   time.Second,
				Camera:    CameraConfig{Driver: "ffmpeg", Width: 1, Height: 1},
				Capture:   CaptureConfig{Quality: 90},
			}
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresURL(t *testing.T) {
	env := map[string]string{"POSTGRES_HOST": "h", "POSTGRES_PORT": "6543", "POSTGRES_USER": "a", "POSTGRES_PASSWORD": "b", "POSTGRES_DB": "d"}
	getenv := func(k string) string { return env[k] }

	if got := PostgresURL(getenv); got != "postgres://a:b@h:6543/d" {
		t.Errorf("PostgresURL = %q", got)
	}
	delete(env, "POSTGRES_HOST")
	if got := PostgresURL(getenv); got != "" {
		t.Errorf("Expected empty URL without host, got %q", got)
	}
}
