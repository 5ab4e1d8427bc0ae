package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/moffa90/go-mtkboot/protocol"
)

// OpenConfig describes how the serial line to the device is acquired.
type OpenConfig struct {
	// Port is the device path, e.g. /dev/ttyACM0
	Port string

	// BaudRate defaults to protocol.DefaultBaudRate
	BaudRate int

	// Attempts bounds the open retry loop; the port only appears once the
	// phone is plugged in, so the loop is expected to spin for a while
	Attempts int

	// Interval is slept between attempts
	Interval time.Duration

	// ReadTimeout is the per-read deadline; expiry yields a short read
	ReadTimeout time.Duration

	// Logger receives open diagnostics
	Logger zerolog.Logger
}

// DefaultOpenConfig returns the settings used against MT67xx boot ROMs.
func DefaultOpenConfig(port string) OpenConfig {
	return OpenConfig{
		Port:        port,
		BaudRate:    protocol.DefaultBaudRate,
		Attempts:    protocol.DefaultOpenAttempts,
		Interval:    protocol.OpenInterval,
		ReadTimeout: protocol.ReadTimeout,
		Logger:      zerolog.Nop(),
	}
}

// Mode returns the line settings: 8 data bits, no parity, one stop bit.
// go.bug.st/serial always opens the port in raw, non-canonical mode.
func (c OpenConfig) Mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = protocol.DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: protocol.DefaultDataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort acquires the serial port, retrying until it appears or the attempt
// budget is spent, then configures the read timeout and flushes stale input.
func OpenPort(ctx context.Context, cfg OpenConfig) (serial.Port, error) {
	mode := cfg.Mode()

	var port serial.Port
	err := retryOpen(ctx, cfg.Port, cfg.Attempts, cfg.Interval, func() error {
		p, err := serial.Open(cfg.Port, mode)
		if err != nil {
			return err
		}
		port = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush input: %w", err)
	}

	cfg.Logger.Info().
		Str("port", cfg.Port).
		Int("baud", mode.BaudRate).
		Msg("serial port open")

	return port, nil
}

// retryOpen calls open until it succeeds, attempts are exhausted or ctx ends.
func retryOpen(ctx context.Context, port string, attempts int, interval time.Duration, open func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return &ChannelOpenError{Port: port, Attempts: i, Err: err}
		}

		lastErr = open()
		if lastErr == nil {
			return nil
		}

		if i < attempts-1 && interval > 0 {
			select {
			case <-ctx.Done():
				return &ChannelOpenError{Port: port, Attempts: i + 1, Err: ctx.Err()}
			case <-time.After(interval):
			}
		}
	}

	return &ChannelOpenError{Port: port, Attempts: attempts, Err: lastErr}
}

// ListPorts returns the serial ports currently present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Opener produces the raw stream a session runs over.
// OpenPort is the serial implementation; tests and the simulator supply their own.
type Opener func(ctx context.Context) (io.ReadWriter, error)

// SerialOpener returns an Opener backed by OpenPort.
func SerialOpener(cfg OpenConfig) Opener {
	return func(ctx context.Context) (io.ReadWriter, error) {
		return OpenPort(ctx, cfg)
	}
}

// StaticOpener returns an Opener that hands out an already open stream.
func StaticOpener(rw io.ReadWriter) Opener {
	return func(context.Context) (io.ReadWriter, error) {
		return rw, nil
	}
}
