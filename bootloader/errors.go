package bootloader

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-mtkboot/transport"
)

// Kind classifies bootstrap failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindChannelOpenFailure
	KindWriteFailure
	KindShortWrite
	KindReadFailure
	KindUnexpectedResponseSize
	KindImageOpenFailure
	KindPacketReadFailure
	KindHandshakeTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindChannelOpenFailure:
		return "channel open failure"
	case KindWriteFailure:
		return "write failure"
	case KindShortWrite:
		return "short write"
	case KindReadFailure:
		return "read failure"
	case KindUnexpectedResponseSize:
		return "unexpected response size"
	case KindImageOpenFailure:
		return "image open failure"
	case KindPacketReadFailure:
		return "packet read failure"
	case KindHandshakeTimedOut:
		return "handshake timed out"
	default:
		return "unknown"
	}
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var (
		openErr    *transport.ChannelOpenError
		writeErr   *transport.WriteError
		readErr    *transport.ReadError
		sizeErr    *ResponseSizeError
		imageErr   *ImageOpenError
		packetErr  *PacketReadError
		timeoutErr *HandshakeTimeoutError
	)

	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &openErr):
		return KindChannelOpenFailure
	case errors.As(err, &imageErr):
		return KindImageOpenFailure
	case errors.As(err, &packetErr):
		return KindPacketReadFailure
	case errors.As(err, &writeErr):
		if writeErr.Short() {
			return KindShortWrite
		}
		return KindWriteFailure
	case errors.As(err, &readErr):
		return KindReadFailure
	case errors.As(err, &timeoutErr):
		return KindHandshakeTimedOut
	case errors.As(err, &sizeErr):
		return KindUnexpectedResponseSize
	default:
		return KindUnknown
	}
}

// ImageOpenError indicates that the download agent could not be opened or measured.
// No CmdSendDA byte has been sent when it is returned.
type ImageOpenError struct {
	Path string
	Err  error
}

func (e *ImageOpenError) Error() string {
	return fmt.Sprintf("open download agent %q: %v", e.Path, e.Err)
}

func (e *ImageOpenError) Unwrap() error {
	return e.Err
}

// PacketReadError indicates that the agent image ran dry or failed mid-upload.
type PacketReadError struct {
	Packet int64
	Size   int
	Err    error
}

func (e *PacketReadError) Error() string {
	return fmt.Sprintf("read agent packet %d (%d bytes): %v", e.Packet, e.Size, e.Err)
}

func (e *PacketReadError) Unwrap() error {
	return e.Err
}

// HandshakeTimeoutError indicates that the boot ROM never sent the ready byte
// within the polling budget.
type HandshakeTimeoutError struct {
	Attempts int
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("handshake not established after %d attempts", e.Attempts)
}

// ResponseSizeError reports a handshake reply of an unexpected width.
// It is logged, never returned as fatal.
type ResponseSizeError struct {
	Expected []int
	Got      int
}

func (e *ResponseSizeError) Error() string {
	return fmt.Sprintf("unexpected response size: got %d bytes, expected one of %v", e.Got, e.Expected)
}
