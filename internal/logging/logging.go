// Package logging builds the process logger. Operator-facing output goes to
// the terminal reporter; this logger carries diagnostics.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

const (
	filePattern = "checkpoint.%Y%m%d.log"
	linkName    = "checkpoint.log"
)

type Options struct {
	Level  string
	Format string // "text" or "json"
	// Dir enables daily rotated log files. Empty means stderr only.
	Dir    string
	MaxAge time.Duration
	Stderr io.Writer
}

// New returns a configured logger and a function that releases its file.
func New(opts Options) (*logrus.Logger, func() error, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	log.SetLevel(level)

	switch opts.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.Dir == "" {
		log.SetOutput(stderr)
		return log, func() error { return nil }, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	rl, err := rotatelogs.New(
		filepath.Join(opts.Dir, filePattern),
		rotatelogs.WithLinkName(filepath.Join(opts.Dir, linkName)),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Only warnings reach the terminal once a file is configured.
	log.SetOutput(rl)
	log.AddHook(&stderrHook{w: stderr, formatter: log.Formatter})
	return log, rl.Close, nil
}

type stderrHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *stderrHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}
