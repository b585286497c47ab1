// Package camera opens live video streams from a capture device and keeps the
// most recent frame available for capture.
package camera

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/sirupsen/logrus"
)

// DefaultReadyTimeout bounds the wait for the first decodable frame.
const DefaultReadyTimeout = 10 * time.Second

// ErrDeviceBusy is returned when Open is called while a session is still live.
var ErrDeviceBusy = errors.New("camera already has an open session")

// Constraints is the stream request sent to the driver.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
	FrameRate  int
	Audio      bool
}

// DefaultConstraints requests the front camera at 1280x720 without audio.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: "user", Width: 1280, Height: 720}
}

// Feed is a running MJPEG byte stream from a capture device.
type Feed interface {
	io.Reader
	Close() error
}

// Driver starts feeds on a concrete platform capture API.
type Driver interface {
	Start(ctx context.Context, c Constraints) (Feed, error)
}

// Config tunes how a Camera opens sessions.
type Config struct {
	Constraints  Constraints
	ReadyTimeout time.Duration
}

// Camera hands out at most one live Session at a time.
type Camera struct {
	driver Driver
	cfg    Config
	log    logrus.FieldLogger

	mu     sync.Mutex
	active *Session
}

func New(driver Driver, cfg Config, log logrus.FieldLogger) *Camera {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Camera{driver: driver, cfg: cfg, log: log}
}

// Open starts a feed and blocks until its first frame has known dimensions.
func (c *Camera) Open(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrDeviceBusy
	}

	feed, err := c.driver.Start(ctx, c.cfg.Constraints)
	if err != nil {
		c.log.WithError(err).Warn("camera start failed")
		return nil, classifyStart(err)
	}

	s := newSession(feed, c.release)
	go s.pump()

	timer := time.NewTimer(c.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-s.ready:
	case <-s.done:
		// Stream ended (or produced garbage) before anything usable arrived.
		err := s.failedStart()
		c.log.WithError(err).Warn("camera stream ended before first frame")
		return nil, err
	case <-timer.C:
		s.shutdown()
		return nil, types.Errorf(types.PlaybackError, "camera produced no frames within %s", c.cfg.ReadyTimeout)
	case <-ctx.Done():
		s.shutdown()
		return nil, ctx.Err()
	}

	c.active = s
	w, h := s.Dimensions()
	c.log.WithFields(logrus.Fields{"width": w, "height": h}).Info("camera ready")
	return s, nil
}

// Close stops every track of the session and releases the device.
func (c *Camera) Close(s *Session) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Active returns the live session, if any.
func (c *Camera) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Camera) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		c.active = nil
	}
}

func classifyStart(err error) error {
	if types.KindOf(err) != types.KindUnknown || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return types.Wrap(types.PermissionOrDeviceError, "", err)
}
