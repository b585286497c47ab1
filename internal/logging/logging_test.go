package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Stderr(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "debug", Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("Level = %v", log.GetLevel())
	}
	log.WithField("frame", 3).Debug("captured")
	if !strings.Contains(buf.String(), "captured") || !strings.Contains(buf.String(), "frame=3") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestNew_RotatedFile(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	log, closeFn, err := New(Options{Dir: dir, Format: "json", Stderr: &stderr})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info("quiet on terminal")
	log.Warn("loud on terminal")
	if err := closeFn(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "checkpoint.*.log"))
	if len(matches) != 1 {
		t.Fatalf("Expected one rotated file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "quiet on terminal") || !strings.Contains(string(data), "loud on terminal") {
		t.Errorf("File is missing entries: %s", data)
	}

	if strings.Contains(stderr.String(), "quiet") {
		t.Error("Info entries should stay out of the terminal")
	}
	if !strings.Contains(stderr.String(), "loud on terminal") {
		t.Error("Warnings should also reach the terminal")
	}
}
