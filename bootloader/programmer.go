package bootloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/moffa90/go-mtkboot/protocol"
	"github.com/moffa90/go-mtkboot/transport"
)

// Programmer drives one bootstrap session against a MediaTek boot ROM.
// It exclusively owns the channel for the duration of the session.
//
// Programmer is not safe for concurrent use: the protocol is strictly
// sequential and every exchange depends on the previous one.
type Programmer struct {
	ch     *transport.Channel
	config Config

	handshake  *Handshake
	transcript []Exchange
}

// Result is everything the device said during a successful Run.
type Result struct {
	Setup      *SetupInfo
	SendDA     *protocol.SendDAResponse
	Upload     *UploadResult
	Transfer   *protocol.TransferStatus
	Run        *protocol.RunResponse
	Transcript []Exchange
	Elapsed    time.Duration
}

// New creates a new Programmer over device with the given options.
// device is normally a serial port opened with transport.OpenPort.
//
// Example:
//
//	port, err := transport.OpenPort(ctx, transport.DefaultOpenConfig("/dev/ttyACM0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prog := bootloader.New(port,
//	    bootloader.WithAgentPath("MT6735P.bin"),
//	    bootloader.WithLogger(log.Logger),
//	)
func New(device io.ReadWriter, opts ...Option) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}
	return newProgrammer(device, buildConfig(opts))
}

func buildConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sleep == nil {
		cfg.sleep = time.Sleep
	}
	return cfg
}

func newProgrammer(device io.ReadWriter, cfg Config) *Programmer {
	return &Programmer{
		ch: transport.NewChannel(device,
			transport.WithDelay(cfg.IODelay),
			transport.WithTraceLogger(cfg.Logger),
			transport.WithSleeper(cfg.sleep),
		),
		config: cfg,
	}
}

// Boot acquires the channel with open and runs the full bootstrap on it.
// The channel is closed before Boot returns. When open fails the handshake
// moves from StateProbing straight to StateFailed and the returned error
// wraps the opener's error.
//
// Example:
//
//	cfg := transport.DefaultOpenConfig("/dev/ttyACM0")
//	result, err := bootloader.Boot(ctx, transport.SerialOpener(cfg),
//	    bootloader.WithAgentPath("MT6735P.bin"),
//	)
func Boot(ctx context.Context, open transport.Opener, opts ...Option) (*Result, error) {
	cfg := buildConfig(opts)
	hs := NewHandshake(cfg.HandshakeAttempts)

	prog, err := acquire(ctx, open, cfg, hs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := prog.ch.Close(); err != nil {
			prog.logError("close channel", "err", err.Error())
		}
	}()

	return prog.Run(ctx)
}

// acquire opens the channel and drives hs through its open transition.
func acquire(ctx context.Context, open transport.Opener, cfg Config, hs *Handshake) (*Programmer, error) {
	device, err := open(ctx)
	if err != nil || device == nil {
		hs.OpenFailed()
		if err == nil {
			err = errors.New("opener returned no device")
		}
		cfg.Logger.Error().
			Err(err).
			Str("state", hs.State().String()).
			Msg("acquire channel")
		return nil, fmt.Errorf("acquire channel: %w", err)
	}

	prog := newProgrammer(device, cfg)
	hs.Opened()
	prog.handshake = hs
	return prog, nil
}

// Run performs the complete bootstrap sequence:
//  1. Handshake until the boot ROM reports ready
//  2. Setup commands (chip info, versions, registers, watchdog)
//  3. Open the download agent and announce it with SendDA
//  4. Upload the agent in bulk packets and read the transfer status
//  5. Jump to the agent and read its acknowledgment
//
// Any write failure aborts the remaining steps.
func (p *Programmer) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	if err := p.Handshake(ctx); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	p.reportProgress(Progress{Phase: PhaseSetup, ElapsedTime: time.Since(startTime)})

	setup, err := p.Setup(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	result, err := p.LoadAgent(ctx)
	if err != nil {
		return nil, err
	}
	result.Setup = setup
	result.Transcript = p.Transcript()
	result.Elapsed = time.Since(startTime)

	p.reportProgress(Progress{
		Phase:         PhaseComplete,
		CurrentPacket: result.Upload.PacketsSent,
		TotalPackets:  result.Upload.Plan.PacketCount(),
		Percentage:    100,
		BytesWritten:  result.Upload.BytesSent,
		TotalBytes:    result.Upload.Plan.Total,
		ElapsedTime:   result.Elapsed,
	})

	p.logInfo("download agent running",
		"ack", string(result.Run.Ack),
		"elapsed", result.Elapsed.String(),
	)
	return result, nil
}

// LoadAgent opens the configured download agent, announces it, uploads it
// and jumps to it. The agent is opened before any CmdSendDA byte is sent,
// so an *ImageOpenError leaves the device untouched.
func (p *Programmer) LoadAgent(ctx context.Context) (*Result, error) {
	img, err := p.config.OpenAgent(p.config.AgentPath)
	if err != nil {
		return nil, &ImageOpenError{Path: p.config.AgentPath, Err: err}
	}

	size := img.Size()
	if size < 0 || size > math.MaxUint32 {
		_ = img.Close()
		return nil, &ImageOpenError{
			Path: p.config.AgentPath,
			Err:  fmt.Errorf("agent length %d does not fit a 32-bit field", size),
		}
	}

	p.logInfo("download agent",
		"path", p.config.AgentPath,
		"size", fmt.Sprintf("0x%X", size),
	)

	result := &Result{}

	result.SendDA, err = p.SendDA(ctx, p.config.LoadAddress, uint32(size), p.config.SignatureLength)
	if err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("send da: %w", err)
	}

	p.reportProgress(Progress{Phase: PhaseUploading, TotalBytes: size})

	result.Upload, err = p.Upload(ctx, img, p.config.MaxBulkSize)
	if err != nil {
		return nil, fmt.Errorf("upload agent: %w", err)
	}

	result.Transfer, err = p.ReadTransferStatus(ctx)
	if err != nil {
		return nil, err
	}
	p.logDebug("transfer status",
		"checksum", fmt.Sprintf("% X", result.Transfer.Checksum),
		"status", fmt.Sprintf("% X", result.Transfer.Status),
	)

	p.reportProgress(Progress{Phase: PhaseRunning, Percentage: 100, BytesWritten: size, TotalBytes: size})

	result.Run, err = p.RunProgram(ctx)
	if err != nil {
		return nil, fmt.Errorf("run agent: %w", err)
	}
	return result, nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message with key-value pairs.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	p.config.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

// logInfo logs an info message with key-value pairs.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	p.config.Logger.Info().Fields(keysAndValues).Msg(msg)
}

// logError logs an error message with key-value pairs.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	p.config.Logger.Error().Fields(keysAndValues).Msg(msg)
}
