// Package config loads checkpoint settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config path is given and it exists.
const DefaultFile = "checkpoint.yaml"

type Config struct {
	ServerURL   string            `yaml:"server_url" default:"http://localhost:5000"`
	Timeout     time.Duration     `yaml:"timeout" default:"30s"`
	SaveDir     string            `yaml:"save_dir"`
	Camera      CameraConfig      `yaml:"camera"`
	Capture     CaptureConfig     `yaml:"capture"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
}

type CameraConfig struct {
	// Driver is "ffmpeg" for a real device or "pattern" for the synthetic feed.
	Driver       string        `yaml:"driver" default:"ffmpeg"`
	FFmpegPath   string        `yaml:"ffmpeg_path" default:"ffmpeg"`
	Device       string        `yaml:"device"`
	FacingMode   string        `yaml:"facing_mode" default:"user"`
	Width        int           `yaml:"width" default:"1280"`
	Height       int           `yaml:"height" default:"720"`
	FrameRate    int           `yaml:"frame_rate"`
	ReadyTimeout time.Duration `yaml:"ready_timeout" default:"10s"`
}

type CaptureConfig struct {
	Quality int `yaml:"quality" default:"90"`
}

type FingerprintConfig struct {
	ScanDelay time.Duration `yaml:"scan_delay" default:"3s"`
}

type LogConfig struct {
	Level  string        `yaml:"level" default:"info"`
	Format string        `yaml:"format" default:"text"`
	Dir    string        `yaml:"dir"`
	MaxAge time.Duration `yaml:"max_age" default:"168h"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Load builds a Config. An empty path falls back to DefaultFile when present;
// an explicit path that cannot be read is an error. The result is not
// validated so that command line overrides can still fix it; call Validate.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides file values with CHECKPOINT_* variables. The database
// falls back to the POSTGRES_* variables used by the compose setup.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.ServerURL, "CHECKPOINT_SERVER_URL")
	set(&c.SaveDir, "CHECKPOINT_SAVE_DIR")
	set(&c.Camera.Driver, "CHECKPOINT_CAMERA_DRIVER")
	set(&c.Camera.Device, "CHECKPOINT_CAMERA_DEVICE")
	set(&c.Camera.FFmpegPath, "CHECKPOINT_FFMPEG_PATH")
	set(&c.Log.Level, "CHECKPOINT_LOG_LEVEL")
	set(&c.Log.Dir, "CHECKPOINT_LOG_DIR")
	set(&c.Database.URL, "CHECKPOINT_DB_URL")

	if c.Database.URL == "" {
		c.Database.URL = PostgresURL(getenv)
	}
}

// PostgresURL assembles a connection string from POSTGRES_HOST and friends.
// It returns "" when POSTGRES_HOST is unset.
func PostgresURL(getenv func(string) string) string {
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
}

// Validate rejects settings the capture pipeline cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url must not be empty")
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 1 and 100, got %d", c.Capture.Quality)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	switch c.Camera.Driver {
	case "ffmpeg", "pattern":
	default:
		return fmt.Errorf("camera.driver must be ffmpeg or pattern, got %q", c.Camera.Driver)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
