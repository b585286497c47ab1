// Package workflow drives the registration, recognition and snapshot flows
// on top of the camera, encoder, fingerprint reader and backend client.
// Presentation is pushed out through a Reporter.
package workflow

import (
	"context"
	"io"
	"time"

	"github.com/andresmejia3/checkpoint/internal/camera"
	"github.com/andresmejia3/checkpoint/internal/capture"
	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Phase is the position of a workflow in its state machine.
type Phase int

const (
	Idle Phase = iota
	FaceCapturing
	FaceCaptured
	FingerprintScanning
	FingerprintCaptured
	ReadyToSubmit
	Submitting
	SubmittedOk
	SubmittedError
	// Capturing is the single busy phase of recognition and snapshot.
	Capturing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FaceCapturing:
		return "face-capturing"
	case FaceCaptured:
		return "face-captured"
	case FingerprintScanning:
		return "fingerprint-scanning"
	case FingerprintCaptured:
		return "fingerprint-captured"
	case ReadyToSubmit:
		return "ready-to-submit"
	case Submitting:
		return "submitting"
	case SubmittedOk:
		return "submitted-ok"
	case SubmittedError:
		return "submitted-error"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Workflow names used in State and in the attempt journal.
const (
	NameRegistration = "registration"
	NameRecognition  = "recognition"
	NameSnapshot     = "snapshot"
)

// State is a snapshot of everything a presentation layer needs to draw.
type State struct {
	Workflow string
	Phase    Phase

	CameraReady         bool
	FaceCaptured        bool
	FingerprintCaptured bool

	FaceEnabled        bool
	FingerprintEnabled bool
	SubmitEnabled      bool
	RetryEnabled       bool

	Message string
	ErrKind types.Kind

	// Preview is the captured still shown in place of the live feed.
	Preview *types.CapturedImage
	// Outcome is set by recognition once an answer is known.
	Outcome *Outcome
}

// Reporter receives a State after every transition. Report is called with
// the workflow lock held, so it must not call back into the workflow.
type Reporter interface {
	Report(State)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(State)

func (f ReporterFunc) Report(s State) { f(s) }

type discardReporter struct{}

func (discardReporter) Report(State) {}

// Camera opens capture sessions. *camera.Camera satisfies it.
type Camera interface {
	Open(ctx context.Context) (*camera.Session, error)
}

// Capturer turns the current frame of a source into a still image.
// capture.Encoder satisfies it.
type Capturer interface {
	Capture(src capture.FrameSource) (types.CapturedImage, error)
}

// Journal records workflow outcomes. *store.Store satisfies it.
type Journal interface {
	RecordAttempt(ctx context.Context, a types.Attempt) error
}

// record writes an attempt to j when one is configured. Journal failures are
// logged and never change the workflow outcome.
func record(ctx context.Context, j Journal, log logrus.FieldLogger, workflow, outcome, subject, message string) {
	if j == nil {
		return
	}
	a := types.Attempt{
		ID:        uuid.New(),
		Workflow:  workflow,
		Outcome:   outcome,
		Subject:   subject,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := j.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		log.WithError(err).WithField("workflow", workflow).Warn("could not journal attempt")
	}
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
