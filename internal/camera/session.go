package camera

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	"sync"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/utils"
)

const megabyte = 1024 * 1024

// ErrSessionClosed is returned when a closed session is asked for a frame.
var ErrSessionClosed = errors.New("capture session is closed")

// Session is an open handle to a live camera stream. A background reader
// keeps the latest frame, the way a video element shows the current picture.
type Session struct {
	feed    Feed
	release func(*Session)

	mu     sync.RWMutex
	frame  []byte
	width  int
	height int
	frames uint64
	err    error
	closed bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(feed Feed, release func(*Session)) *Session {
	return &Session{
		feed:    feed,
		release: release,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// pump splits the feed into JPEG frames until it ends.
func (s *Session) pump() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.feed)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	for scanner.Scan() {
		tok := scanner.Bytes()

		s.mu.RLock()
		known := s.width > 0
		s.mu.RUnlock()

		var w, h int
		if !known {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(tok))
			if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
				s.setErr(types.Wrap(types.PlaybackError, "camera frames could not be decoded", err))
				return
			}
			w, h = cfg.Width, cfg.Height
		}

		frame := make([]byte, len(tok))
		copy(frame, tok)

		s.mu.Lock()
		s.frame = frame
		s.frames++
		if !known {
			s.width, s.height = w, h
		}
		s.mu.Unlock()

		s.readyOnce.Do(func() { close(s.ready) })
	}

	if err := scanner.Err(); err != nil {
		s.setErr(err)
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// failedStart tears down a session whose stream ended before the first frame
// and explains why.
func (s *Session) failedStart() error {
	closeErr := s.feed.Close()
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})

	s.mu.RLock()
	pumpErr := s.err
	s.mu.RUnlock()

	if types.KindOf(pumpErr) == types.PlaybackError {
		return pumpErr
	}
	if closeErr != nil {
		if types.KindOf(closeErr) != types.KindUnknown {
			return closeErr
		}
		return types.Wrap(types.PermissionOrDeviceError, "", closeErr)
	}
	if pumpErr != nil {
		return types.Wrap(types.PermissionOrDeviceError, "", pumpErr)
	}
	return types.Errorf(types.PlaybackError, "camera stream ended before the first frame")
}

// shutdown closes a session that never became active.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.feed.Close()
		<-s.done
	})
}

// Snapshot returns the current frame as delivered by the device.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	select {
	case <-s.done:
		return nil, types.Wrap(types.PlaybackError, "camera stream ended", s.err)
	default:
	}
	if len(s.frame) == 0 {
		return nil, types.Errorf(types.EncodingError, "no frame available yet")
	}
	frame := make([]byte, len(s.frame))
	copy(frame, s.frame)
	return frame, nil
}

// Dimensions returns the native width and height of the stream.
func (s *Session) Dimensions() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// Frames returns how many frames have been received so far.
func (s *Session) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Done is closed when the underlying stream stops.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the stream and releases the device. It is safe to call twice.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		live := true
		select {
		case <-s.done:
			live = false
		default:
		}

		// Stopping a live stream kills the device process; that exit status is expected.
		if closeErr := s.feed.Close(); !live {
			err = closeErr
		}
		<-s.done
		if s.release != nil {
			s.release(s)
		}
	})
	return err
}
