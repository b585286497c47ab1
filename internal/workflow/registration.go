package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/andresmejia3/checkpoint/internal/camera"
	"github.com/andresmejia3/checkpoint/internal/fingerprint"
	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Registrar submits a completed registration. *client.Client satisfies it.
type Registrar interface {
	Register(ctx context.Context, req types.RegistrationRequest) (types.RegisterResponse, error)
}

// RegistrationDeps wires a Registration. Journal and Logger are optional.
type RegistrationDeps struct {
	Camera      Camera
	Encoder     Capturer
	Fingerprint fingerprint.Reader
	Client      Registrar
	Reporter    Reporter
	Journal     Journal
	Logger      logrus.FieldLogger
}

// Registration is the face + fingerprint enrollment flow. Each control is
// gated so that pressing it while disabled or busy does nothing.
type Registration struct {
	cam      Camera
	enc      Capturer
	reader   fingerprint.Reader
	client   Registrar
	reporter Reporter
	journal  Journal
	log      logrus.FieldLogger

	cameraGate *semaphore.Weighted
	faceGate   *semaphore.Weighted
	printGate  *semaphore.Weighted
	submitGate *semaphore.Weighted

	mu        sync.Mutex
	session   *camera.Session
	cameraErr error
	phase     Phase
	bio       types.BiometricState
	capturing bool
	scanning  bool
	message   string
	errKind   types.Kind
	closed    bool
}

func NewRegistration(d RegistrationDeps) *Registration {
	r := &Registration{
		cam:        d.Camera,
		enc:        d.Encoder,
		reader:     d.Fingerprint,
		client:     d.Client,
		reporter:   d.Reporter,
		journal:    d.Journal,
		log:        orDiscard(d.Logger).WithField("workflow", NameRegistration),
		cameraGate: semaphore.NewWeighted(1),
		faceGate:   semaphore.NewWeighted(1),
		printGate:  semaphore.NewWeighted(1),
		submitGate: semaphore.NewWeighted(1),
	}
	if r.reporter == nil {
		r.reporter = discardReporter{}
	}
	return r
}

// Start opens the camera. On failure the error is reported with retry enabled
// and returned; the fingerprint control stays usable.
func (r *Registration) Start(ctx context.Context) error {
	if !r.cameraGate.TryAcquire(1) {
		return nil
	}
	defer r.cameraGate.Release(1)

	r.mu.Lock()
	if r.closed || r.session != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	s, err := r.cam.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.cameraErr = err
		r.setError(err)
		r.log.WithError(err).Warn("camera unavailable")
		r.reportLocked()
		return err
	}
	if r.closed {
		s.Close()
		return nil
	}
	r.session = s
	r.cameraErr = nil
	r.clearMessage()
	r.reportLocked()
	return nil
}

// Retry closes any half-open session and asks for the camera again.
func (r *Registration) Retry(ctx context.Context) error {
	r.mu.Lock()
	if r.cameraErr == nil && r.session != nil {
		r.mu.Unlock()
		return nil
	}
	old := r.session
	r.session = nil
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return r.Start(ctx)
}

// CaptureFace grabs the current frame as the face image. Once a face is held
// the control is disabled until Reset.
func (r *Registration) CaptureFace(ctx context.Context) error {
	if !r.faceGate.TryAcquire(1) {
		return nil
	}
	defer r.faceGate.Release(1)

	r.mu.Lock()
	if r.closed || r.bio.FaceCaptured || r.phase == Submitting || r.phase == SubmittedOk {
		r.mu.Unlock()
		return nil
	}
	if r.session == nil {
		err := types.Errorf(types.PlaybackError, MsgCameraNotReady)
		r.setError(err)
		r.reportLocked()
		r.mu.Unlock()
		return err
	}
	s := r.session
	r.capturing = true
	r.phase = FaceCapturing
	r.clearMessage()
	r.reportLocked()
	r.mu.Unlock()

	img, err := r.enc.Capture(s)

	r.mu.Lock()
	r.capturing = false
	if err != nil {
		r.log.WithError(err).Warn("face capture failed")
		var dead *camera.Session
		if types.KindOf(err).IsCamera() {
			// The stream is gone; only a retry can bring it back.
			r.cameraErr = err
			if r.session == s {
				r.session = nil
				dead = s
			}
		}
		r.phase = r.restingPhase()
		r.setError(err)
		r.reportLocked()
		r.mu.Unlock()

		// The device must be released before Retry can open it again.
		if dead != nil {
			dead.Close()
		}
		return err
	}
	defer r.mu.Unlock()

	r.bio.FaceCaptured = true
	r.bio.Image = &img
	r.advance(FaceCaptured)
	r.log.WithFields(logrus.Fields{"width": img.Width(), "height": img.Height(), "bytes": img.Len()}).Debug("face captured")
	return nil
}

// ScanFingerprint runs one fingerprint read. It does not depend on the camera.
func (r *Registration) ScanFingerprint(ctx context.Context) error {
	if !r.printGate.TryAcquire(1) {
		return nil
	}
	defer r.printGate.Release(1)

	r.mu.Lock()
	if r.closed || r.bio.FingerprintCaptured || r.phase == Submitting || r.phase == SubmittedOk {
		r.mu.Unlock()
		return nil
	}
	r.scanning = true
	r.phase = FingerprintScanning
	r.clearMessage()
	r.reportLocked()
	r.mu.Unlock()

	err := r.reader.Scan(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanning = false
	if err != nil {
		r.log.WithError(err).Warn("fingerprint scan failed")
		r.phase = r.restingPhase()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = types.Wrap(types.KindUnknown, "fingerprint scan interrupted", err)
		}
		r.setError(err)
		r.reportLocked()
		return err
	}

	r.bio.FingerprintCaptured = true
	r.advance(FingerprintCaptured)
	return nil
}

// Submit validates the form and biometrics and posts the registration.
// Validation failures change nothing and send nothing. A failed submission
// leaves the workflow ready to submit again without recapturing.
func (r *Registration) Submit(ctx context.Context, f Form) error {
	if !r.submitGate.TryAcquire(1) {
		return nil
	}
	defer r.submitGate.Release(1)

	r.mu.Lock()
	if r.closed || r.phase == Submitting || r.phase == SubmittedOk {
		r.mu.Unlock()
		return nil
	}
	req, err := BuildRequest(f, r.bio)
	if err != nil {
		r.setError(err)
		r.reportLocked()
		r.mu.Unlock()
		return err
	}
	r.phase = Submitting
	r.clearMessage()
	r.reportLocked()
	r.mu.Unlock()

	subject := req.FirstName + " " + req.LastName
	_, err = r.client.Register(ctx, req)

	r.mu.Lock()
	if err != nil {
		r.phase = SubmittedError
		r.setError(err)
		r.reportLocked()
		r.mu.Unlock()
		r.log.WithError(err).WithField("id_number", req.IDNumber).Error("registration failed")
		record(ctx, r.journal, r.log, NameRegistration, "error", subject, types.Message(err))
		return err
	}

	r.phase = SubmittedOk
	r.message = MsgRegistered
	r.errKind = types.KindUnknown
	r.reportLocked()
	r.mu.Unlock()
	r.log.WithField("id_number", req.IDNumber).Info("registration submitted")
	record(ctx, r.journal, r.log, NameRegistration, "ok", subject, MsgRegistered)
	return nil
}

// Acknowledge dismisses a successful submission and starts over.
func (r *Registration) Acknowledge(ctx context.Context) error {
	return r.Reset(ctx)
}

// Reset drops every capture, closes the session and opens a fresh one.
// The resulting state matches a freshly started workflow.
func (r *Registration) Reset(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.capturing || r.scanning || r.phase == Submitting {
		r.mu.Unlock()
		return nil
	}
	old := r.session
	r.session = nil
	r.cameraErr = nil
	r.bio = types.BiometricState{}
	r.phase = Idle
	r.clearMessage()
	r.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			r.log.WithError(err).Debug("closing previous session")
		}
	}
	return r.Start(ctx)
}

// Close releases the camera. The workflow ignores every control afterwards.
func (r *Registration) Close() error {
	r.mu.Lock()
	r.closed = true
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s != nil {
		return s.Close()
	}
	return nil
}

// State returns the current snapshot.
func (r *Registration) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// advance reports the capture transition, then ReadyToSubmit when both
// biometrics are in.
func (r *Registration) advance(p Phase) {
	r.clearMessage()
	if r.phase != Submitting {
		r.phase = p
	}
	r.reportLocked()
	if r.bio.Complete() && !r.capturing && !r.scanning {
		r.phase = ReadyToSubmit
		r.reportLocked()
	}
}

func (r *Registration) restingPhase() Phase {
	switch {
	case r.capturing:
		return FaceCapturing
	case r.scanning:
		return FingerprintScanning
	case r.bio.Complete():
		return ReadyToSubmit
	case r.bio.FaceCaptured:
		return FaceCaptured
	case r.bio.FingerprintCaptured:
		return FingerprintCaptured
	default:
		return Idle
	}
}

func (r *Registration) setError(err error) {
	r.message = types.Message(err)
	r.errKind = types.KindOf(err)
}

func (r *Registration) clearMessage() {
	r.message = ""
	r.errKind = types.KindUnknown
}

func (r *Registration) stateLocked() State {
	busy := r.phase == Submitting || r.phase == SubmittedOk
	st := State{
		Workflow:            NameRegistration,
		Phase:               r.phase,
		CameraReady:         r.session != nil,
		FaceCaptured:        r.bio.FaceCaptured,
		FingerprintCaptured: r.bio.FingerprintCaptured,
		FaceEnabled:         r.session != nil && !r.bio.FaceCaptured && !r.capturing && !busy,
		FingerprintEnabled:  !r.bio.FingerprintCaptured && !r.scanning && !busy,
		SubmitEnabled:       r.bio.Complete() && !busy,
		RetryEnabled:        r.cameraErr != nil,
		Message:             r.message,
		ErrKind:             r.errKind,
	}
	if r.bio.Image != nil {
		img := *r.bio.Image
		st.Preview = &img
	}
	return st
}

func (r *Registration) reportLocked() {
	r.reporter.Report(r.stateLocked())
}
