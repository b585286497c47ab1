package types

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a workflow can surface to the user.
type Kind int

const (
	KindUnknown Kind = iota
	UnsupportedDevice
	PermissionOrDeviceError
	PlaybackError
	EncodingError
	ValidationError
	TransportError
	ServerRejection
)

func (k Kind) String() string {
	switch k {
	case UnsupportedDevice:
		return "unsupported device"
	case PermissionOrDeviceError:
		return "permission or device error"
	case PlaybackError:
		return "playback error"
	case EncodingError:
		return "encoding error"
	case ValidationError:
		return "validation error"
	case TransportError:
		return "transport error"
	case ServerRejection:
		return "server rejection"
	default:
		return "unknown error"
	}
}

// IsCamera reports whether the kind belongs to camera acquisition, which
// offers a manual retry.
func (k Kind) IsCamera() bool {
	return k == UnsupportedDevice || k == PermissionOrDeviceError || k == PlaybackError
}

// Error is a classified failure. Msg is what the user sees; Err is the
// underlying cause kept for diagnostics.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: X}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Errorf builds a classified error with a formatted user message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The message shown to the user is msg, or err's text when msg is empty.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
