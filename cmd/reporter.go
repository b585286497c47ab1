package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/schollz/progressbar/v3"
)

// terminalReporter prints one line per workflow transition and shows a
// spinner while a capture, scan or submission is running.
type terminalReporter struct {
	mu   sync.Mutex
	w    io.Writer
	spin bool

	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

func newTerminalReporter(w io.Writer, spin bool) *terminalReporter {
	return &terminalReporter{w: w, spin: spin}
}

func (r *terminalReporter) Report(s workflow.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopSpinner()
	if label := busyLabel(s.Phase); label != "" {
		if r.spin {
			r.startSpinner(label)
		} else {
			fmt.Fprintf(r.w, "⏳ %s...\n", label)
		}
		return
	}
	if line := describe(s); line != "" {
		fmt.Fprintln(r.w, line)
	}
}

// Close stops a spinner left running by an interrupted workflow.
func (r *terminalReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinner()
}

func (r *terminalReporter) startSpinner(label string) {
	r.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func(bar *progressbar.ProgressBar, stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}(r.bar, r.stop, r.done)
}

func (r *terminalReporter) stopSpinner() {
	if r.bar == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.bar.Finish()
	r.bar = nil
}

func busyLabel(p workflow.Phase) string {
	switch p {
	case workflow.FaceCapturing:
		return "📸 Capturing face"
	case workflow.FingerprintScanning:
		return "👆 Scanning fingerprint"
	case workflow.Submitting:
		return "📡 Submitting registration"
	case workflow.Capturing:
		return "📸 Capturing"
	default:
		return ""
	}
}

// describe renders the resting state as a single status line.
func describe(s workflow.State) string {
	if s.Outcome != nil {
		switch s.Outcome.Kind {
		case workflow.Accepted:
			return fmt.Sprintf("✅ Welcome, %s", s.Outcome.Label())
		case workflow.Rejected:
			return fmt.Sprintf("⚠️  %s", s.Outcome.Message)
		default:
			return fmt.Sprintf("❌ %s", s.Outcome.Message)
		}
	}

	if s.ErrKind != types.KindUnknown || (s.Message != "" && s.Phase != workflow.SubmittedOk) {
		switch {
		case s.ErrKind.IsCamera() && s.RetryEnabled:
			return fmt.Sprintf("📷 Camera unavailable: %s (retry available)", s.Message)
		case s.ErrKind == types.ValidationError:
			return fmt.Sprintf("⚠️  %s", s.Message)
		default:
			return fmt.Sprintf("❌ %s", s.Message)
		}
	}

	switch s.Phase {
	case workflow.Idle:
		if s.CameraReady {
			return "📷 Camera ready"
		}
	case workflow.FaceCaptured:
		if s.Preview != nil {
			return fmt.Sprintf("🙂 Face captured (%dx%d)", s.Preview.Width(), s.Preview.Height())
		}
		return "🙂 Face captured"
	case workflow.FingerprintCaptured:
		return "👆 Fingerprint captured"
	case workflow.ReadyToSubmit:
		return "📝 Ready to submit"
	case workflow.SubmittedOk:
		return fmt.Sprintf("✅ %s", s.Message)
	}
	return ""
}
