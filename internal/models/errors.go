package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransport means the device or the network could not be reached. Retry next cycle.
	ErrTransport = errors.New("transport error")
	// ErrTimeout is a transport error caused by an expired deadline.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrTransport)
	// ErrParse marks a malformed line or a non-numeric value.
	ErrParse = errors.New("parse error")
	// ErrUnknownSensor marks a sensor code that is not in the device catalog.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrRemoteRejected means the remote store answered with a non-success response.
	ErrRemoteRejected = errors.New("remote rejected")
	// ErrStorageCorruption means a local stream file could not be decoded.
	ErrStorageCorruption = errors.New("storage corruption")
)

// DecodeError reports a missing or invalid field in an externally supplied record.
type DecodeError struct {
	Kind  string // "device", "config rule"
	Index int
	Field string
	Msg   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s #%d: field %q %s", e.Kind, e.Index, e.Field, e.Msg)
}

// WrapTransport tags a network or device failure as ErrTransport, or as
// ErrTimeout when a deadline expired.
func WrapTransport(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}
