package transport

import (
	"fmt"
)

// WriteError indicates that the device did not accept a complete write.
// It is fatal for the session: nothing is retried at this layer.
type WriteError struct {
	Requested int
	Written   int
	Err       error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write failed: %d of %d bytes accepted: %v", e.Written, e.Requested, e.Err)
	}
	if e.Short() {
		return fmt.Sprintf("short write: %d of %d bytes accepted", e.Written, e.Requested)
	}
	return fmt.Sprintf("write failed: %d of %d bytes accepted", e.Written, e.Requested)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Short reports whether the device accepted some, but not all, of the bytes.
func (e *WriteError) Short() bool {
	return e.Err == nil && e.Written > 0 && e.Written < e.Requested
}

// ReadError indicates that the underlying stream failed, as opposed to a
// short read which is a normal outcome.
type ReadError struct {
	Requested int
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read of %d bytes failed: %v", e.Requested, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ChannelOpenError indicates that the serial port could not be opened within
// the bounded number of attempts.
type ChannelOpenError struct {
	Port     string
	Attempts int
	Err      error
}

func (e *ChannelOpenError) Error() string {
	return fmt.Sprintf("cannot open %s after %d attempts: %v", e.Port, e.Attempts, e.Err)
}

func (e *ChannelOpenError) Unwrap() error {
	return e.Err
}
