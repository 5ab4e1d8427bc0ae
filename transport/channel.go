package transport

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-mtkboot/protocol"
)

// Channel is a duplex byte stream to the boot ROM.
//
// Each Read issues exactly one underlying read and never loops to fill the
// buffer; the caller's command schema decides how many bytes it expects.
// Every operation is paced by a fixed quiescence delay and traced.
//
// A Channel is owned by a single session and is not safe for concurrent use.
type Channel struct {
	rw     io.ReadWriter
	buf    []byte
	delay  time.Duration
	logger zerolog.Logger
	sleep  func(time.Duration)
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithDelay overrides the quiescence delay (protocol.IODelay by default).
func WithDelay(d time.Duration) ChannelOption {
	return func(c *Channel) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithTraceLogger sets the logger that receives per-exchange hex traces.
func WithTraceLogger(logger zerolog.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithSleeper replaces time.Sleep. Tests use it to observe pacing.
func WithSleeper(sleep func(time.Duration)) ChannelOption {
	return func(c *Channel) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewChannel wraps rw. Ownership of rw passes to the Channel; Close closes it
// when it implements io.Closer.
func NewChannel(rw io.ReadWriter, opts ...ChannelOption) *Channel {
	if rw == nil {
		panic("stream cannot be nil")
	}

	c := &Channel{
		rw:     rw,
		buf:    make([]byte, 64),
		delay:  protocol.IODelay,
		logger: zerolog.Nop(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read waits the quiescence delay and issues one read of at most max bytes.
// A short read, including zero bytes on a read timeout, is not an error.
// The returned slice is a fresh copy owned by the caller.
func (c *Channel) Read(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	if cap(c.buf) < max {
		c.buf = make([]byte, max)
	}
	buf := c.buf[:max]

	c.sleep(c.delay)

	n, err := c.rw.Read(buf)
	if n < 0 {
		n = 0
	}
	data := append([]byte(nil), buf[:n]...)

	c.logger.Debug().
		Str("op", "read").
		Int("requested", max).
		Int("count", n).
		Str("hex", strings.TrimSuffix(protocol.HexDump(data), "\n")).
		Msg("channel exchange")

	if err != nil && !errors.Is(err, io.EOF) {
		return data, &ReadError{Requested: max, Err: err}
	}
	return data, nil
}

// Write issues one write of data and then waits the quiescence delay.
// Anything short of a complete write is a *WriteError.
func (c *Channel) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	n, err := c.rw.Write(data)

	written := n
	if written < 0 {
		written = 0
	}
	c.logger.Debug().
		Str("op", "write").
		Int("requested", len(data)).
		Int("count", n).
		Str("hex", strings.TrimSuffix(protocol.HexDump(data[:written]), "\n")).
		Msg("channel exchange")

	if err != nil || n <= 0 || n < len(data) {
		return written, &WriteError{Requested: len(data), Written: written, Err: err}
	}

	c.sleep(c.delay)
	return n, nil
}

// WriteByte writes a single command byte.
func (c *Channel) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

// Close releases the underlying stream if it can be closed.
func (c *Channel) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
