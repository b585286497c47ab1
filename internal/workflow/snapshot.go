package workflow

import (
	"context"
	"strings"

	"github.com/andresmejia3/checkpoint/internal/capture"
	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/sirupsen/logrus"
)

// SnapshotSubmitter posts the traditional capture form. *client.Client satisfies it.
type SnapshotSubmitter interface {
	SubmitSnapshot(ctx context.Context, form types.SnapshotForm) error
}

// SnapshotInput is the visitor data sent along with the photo.
type SnapshotInput struct {
	Name    string
	Email   string
	Company string
}

// Validate requires every field.
func (in SnapshotInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Company) == "" {
		return types.Errorf(types.ValidationError, MsgIncompleteFields)
	}
	return nil
}

// Snapshot is the minimal capture page: open the camera, take one frame,
// embed it in the form as a data URL and post it.
type Snapshot struct {
	Camera   Camera
	Encoder  Capturer
	Client   SnapshotSubmitter
	Reporter Reporter
	Journal  Journal
	Logger   logrus.FieldLogger
}

// Run performs one snapshot submission and returns the image that was sent.
// The camera is held only for the duration of the call. With a nil Client the
// frame is captured and returned without being posted.
func (s *Snapshot) Run(ctx context.Context, in SnapshotInput) (types.CapturedImage, error) {
	log := orDiscard(s.Logger).WithField("workflow", NameSnapshot)
	rep := s.Reporter
	if rep == nil {
		rep = discardReporter{}
	}
	st := State{Workflow: NameSnapshot, Phase: Idle}
	fail := func(err error) (types.CapturedImage, error) {
		st.Phase = Idle
		st.Message = types.Message(err)
		st.ErrKind = types.KindOf(err)
		st.RetryEnabled = st.ErrKind.IsCamera()
		rep.Report(st)
		record(ctx, s.Journal, log, NameSnapshot, "error", in.Name, st.Message)
		return types.CapturedImage{}, err
	}

	if err := in.Validate(); err != nil {
		st.Message = types.Message(err)
		st.ErrKind = types.ValidationError
		rep.Report(st)
		return types.CapturedImage{}, err
	}

	sess, err := s.Camera.Open(ctx)
	if err != nil {
		log.WithError(err).Warn("camera unavailable")
		return fail(err)
	}
	defer sess.Close()

	st.CameraReady = true
	st.Phase = Capturing
	rep.Report(st)

	img, err := s.Encoder.Capture(sess)
	if err != nil {
		return fail(err)
	}
	st.Preview = &img

	if s.Client == nil {
		st.Phase = Idle
		rep.Report(st)
		return img, nil
	}

	form := types.SnapshotForm{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Company: strings.TrimSpace(in.Company),
		Photo:   capture.DataURL(img),
	}
	if err := s.Client.SubmitSnapshot(ctx, form); err != nil {
		log.WithError(err).Error("snapshot submission failed")
		return fail(err)
	}

	st.Phase = SubmittedOk
	st.Message = MsgRegistered
	rep.Report(st)
	log.WithField("name", form.Name).Info("snapshot submitted")
	record(ctx, s.Journal, log, NameSnapshot, "ok", form.Name, MsgRegistered)
	return img, nil
}
