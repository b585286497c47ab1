package workflow

import (
	"context"
	"sync"

	"github.com/andresmejia3/checkpoint/internal/camera"
	"github.com/andresmejia3/checkpoint/internal/client"
	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// MsgNotRecognized is shown when the backend denies access without a reason.
const MsgNotRecognized = "access denied"

// Recognizer identifies a frame. *client.Client satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, req types.RecognitionRequest) (types.RecognizeResponse, error)
}

// OutcomeKind classifies the result of one recognition.
type OutcomeKind int

const (
	Accepted OutcomeKind = iota + 1
	Rejected
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

// Outcome is what the operator is shown after a recognition attempt.
type Outcome struct {
	Kind    OutcomeKind
	Name    string
	Company string
	Message string
}

// Label is the identity line of an accepted outcome.
func (o Outcome) Label() string {
	if o.Company == "" {
		return o.Name
	}
	return o.Name + " (" + o.Company + ")"
}

// RecognitionDeps wires a Recognition. Journal and Logger are optional.
type RecognitionDeps struct {
	Camera   Camera
	Encoder  Capturer
	Client   Recognizer
	Reporter Reporter
	Journal  Journal
	Logger   logrus.FieldLogger
}

// Recognition is the single-shot access check. It can be repeated any number
// of times; a call made while one is in flight does nothing.
type Recognition struct {
	cam      Camera
	enc      Capturer
	client   Recognizer
	reporter Reporter
	journal  Journal
	log      logrus.FieldLogger

	gate *semaphore.Weighted

	mu        sync.Mutex
	session   *camera.Session
	cameraErr error
	phase     Phase
	outcome   *Outcome
	message   string
	errKind   types.Kind
}

func NewRecognition(d RecognitionDeps) *Recognition {
	r := &Recognition{
		cam:      d.Camera,
		enc:      d.Encoder,
		client:   d.Client,
		reporter: d.Reporter,
		journal:  d.Journal,
		log:      orDiscard(d.Logger).WithField("workflow", NameRecognition),
		gate:     semaphore.NewWeighted(1),
	}
	if r.reporter == nil {
		r.reporter = discardReporter{}
	}
	return r
}

// Start opens the camera, reporting a failure with retry enabled.
func (r *Recognition) Start(ctx context.Context) error {
	if !r.gate.TryAcquire(1) {
		return nil
	}
	defer r.gate.Release(1)
	return r.open(ctx)
}

// Retry reopens the camera after a failure.
func (r *Recognition) Retry(ctx context.Context) error {
	if !r.gate.TryAcquire(1) {
		return nil
	}
	defer r.gate.Release(1)

	r.mu.Lock()
	old := r.session
	if r.cameraErr == nil && old != nil {
		r.mu.Unlock()
		return nil
	}
	r.session = nil
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return r.open(ctx)
}

func (r *Recognition) open(ctx context.Context) error {
	r.mu.Lock()
	if r.session != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	s, err := r.cam.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.cameraErr = err
		r.message = types.Message(err)
		r.errKind = types.KindOf(err)
		r.log.WithError(err).Warn("camera unavailable")
		r.reportLocked()
		return err
	}
	r.session = s
	r.cameraErr = nil
	r.message = ""
	r.errKind = types.KindUnknown
	r.reportLocked()
	return nil
}

// Recognize captures the current frame and asks the backend who it is. The
// second return value is false when the call was ignored because another
// recognition is running.
func (r *Recognition) Recognize(ctx context.Context) (Outcome, bool) {
	if !r.gate.TryAcquire(1) {
		return Outcome{}, false
	}
	defer r.gate.Release(1)

	r.mu.Lock()
	s := r.session
	if s == nil {
		msg := MsgCameraNotReady
		if r.cameraErr != nil {
			msg = types.Message(r.cameraErr)
		}
		out := Outcome{Kind: Failed, Message: msg}
		r.finishLocked(out, types.PlaybackError)
		r.mu.Unlock()
		return out, true
	}
	r.phase = Capturing
	r.outcome = nil
	r.message = ""
	r.errKind = types.KindUnknown
	r.reportLocked()
	r.mu.Unlock()

	out, kind := r.run(ctx, s)

	r.mu.Lock()
	var dead *camera.Session
	if kind.IsCamera() {
		r.cameraErr = types.Errorf(kind, "%s", out.Message)
		if r.session == s {
			r.session = nil
			dead = s
		}
	}
	r.finishLocked(out, kind)
	r.mu.Unlock()

	// Release the device before reporting back so Retry can reopen it.
	if dead != nil {
		dead.Close()
	}

	record(ctx, r.journal, r.log, NameRecognition, out.Kind.String(), out.Name, out.Message)
	return out, true
}

func (r *Recognition) run(ctx context.Context, s *camera.Session) (Outcome, types.Kind) {
	img, err := r.enc.Capture(s)
	if err != nil {
		r.log.WithError(err).Warn("frame capture failed")
		return Outcome{Kind: Failed, Message: types.Message(err)}, types.KindOf(err)
	}

	resp, err := r.client.Recognize(ctx, types.RecognitionRequest{Image: img})
	if err != nil {
		r.log.WithError(err).Error("recognition request failed")
		return Outcome{Kind: Failed, Message: client.MsgServerError}, types.TransportError
	}

	if resp.Accepted {
		r.log.WithFields(logrus.Fields{"name": resp.Name, "company": resp.Company}).Info("access granted")
		return Outcome{Kind: Accepted, Name: resp.Name, Company: resp.Company}, types.KindUnknown
	}
	reason := resp.Reason()
	if reason == "" {
		reason = MsgNotRecognized
	}
	r.log.WithField("reason", reason).Info("access denied")
	return Outcome{Kind: Rejected, Message: reason}, types.KindUnknown
}

func (r *Recognition) finishLocked(out Outcome, kind types.Kind) {
	r.phase = Idle
	r.outcome = &out
	r.message = out.Message
	r.errKind = kind
	r.reportLocked()
}

// Close releases the camera.
func (r *Recognition) Close() error {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

// State returns the current snapshot.
func (r *Recognition) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Recognition) stateLocked() State {
	st := State{
		Workflow:      NameRecognition,
		Phase:         r.phase,
		CameraReady:   r.session != nil,
		FaceEnabled:   r.session != nil && r.phase != Capturing,
		SubmitEnabled: r.session != nil && r.phase != Capturing,
		RetryEnabled:  r.cameraErr != nil,
		Message:       r.message,
		ErrKind:       r.errKind,
	}
	if r.outcome != nil {
		out := *r.outcome
		st.Outcome = &out
	}
	return st
}

func (r *Recognition) reportLocked() {
	r.reporter.Report(r.stateLocked())
}
