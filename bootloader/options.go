package bootloader

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-mtkboot/agent"
	"github.com/moffa90/go-mtkboot/protocol"
)

// AgentOpener opens the download agent image.
type AgentOpener func(path string) (AgentImage, error)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger receives session events and per-exchange traces at debug level
	Logger zerolog.Logger

	// IODelay is slept before each read and after each write
	IODelay time.Duration

	// PacketDelay is slept after each download agent packet
	PacketDelay time.Duration

	// HandshakeInterval is slept after each handshake poll
	HandshakeInterval time.Duration

	// HandshakeAttempts bounds the handshake polling loop
	HandshakeAttempts int

	// MaxBulkSize is the largest download agent packet
	MaxBulkSize int

	// Read32Address is the register read during setup
	Read32Address uint32

	// WatchdogAddress and WatchdogValue are written during setup
	WatchdogAddress uint32
	WatchdogValue   uint32

	// LoadAddress is where the boot ROM places the download agent
	LoadAddress uint32

	// SignatureLength is the trailing signature size the boot ROM strips
	SignatureLength uint32

	// AgentPath is the download agent file
	AgentPath string

	// OpenAgent opens AgentPath; defaults to agent.Open
	OpenAgent AgentOpener

	sleep func(time.Duration)
}

// defaultConfig returns the configuration for MT67xx boot ROMs.
func defaultConfig() Config {
	return Config{
		Logger:            zerolog.Nop(),
		IODelay:           protocol.IODelay,
		PacketDelay:       protocol.PacketDelay,
		HandshakeInterval: protocol.HandshakeInterval,
		HandshakeAttempts: protocol.DefaultHandshakeAttempts,
		MaxBulkSize:       protocol.DefaultMaxBulkSize,
		Read32Address:     protocol.DefaultRead32Address,
		WatchdogAddress:   protocol.DefaultWrite32Address,
		WatchdogValue:     protocol.DefaultWrite32Value,
		LoadAddress:       protocol.DefaultDALoadAddress,
		SignatureLength:   protocol.DefaultSignatureLength,
		OpenAgent:         openAgentFile,
		sleep:             time.Sleep,
	}
}

func openAgentFile(path string) (AgentImage, error) {
	img, err := agent.Open(path)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track progress.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets the logger for session events and exchange traces.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithLogger(log.Logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAgentPath sets the download agent file.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithAgentPath("MT6735P.bin"))
func WithAgentPath(path string) Option {
	return func(c *Config) {
		c.AgentPath = path
	}
}

// WithAgentOpener replaces the function used to open the download agent.
func WithAgentOpener(open AgentOpener) Option {
	return func(c *Config) {
		if open != nil {
			c.OpenAgent = open
		}
	}
}

// WithIODelay sets the delay around every read and write.
func WithIODelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.IODelay = d
		}
	}
}

// WithPacketDelay sets the delay after every download agent packet.
func WithPacketDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PacketDelay = d
		}
	}
}

// WithHandshake sets the handshake polling budget and interval.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithHandshake(20, 10*time.Millisecond))
func WithHandshake(attempts int, interval time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.HandshakeAttempts = attempts
		}
		if interval >= 0 {
			c.HandshakeInterval = interval
		}
	}
}

// WithMaxBulkSize sets the download agent packet size.
// Default is protocol.DefaultMaxBulkSize (0x3F0).
func WithMaxBulkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.MaxBulkSize = size
		}
	}
}

// WithLoadAddress sets where the boot ROM places the download agent.
func WithLoadAddress(addr uint32) Option {
	return func(c *Config) {
		c.LoadAddress = addr
	}
}

// WithSignatureLength sets the signature size the boot ROM strips from the agent.
func WithSignatureLength(n uint32) Option {
	return func(c *Config) {
		c.SignatureLength = n
	}
}

// WithRegisters sets the register read and the watchdog write issued during setup.
func WithRegisters(read32Addr, watchdogAddr, watchdogValue uint32) Option {
	return func(c *Config) {
		c.Read32Address = read32Addr
		c.WatchdogAddress = watchdogAddr
		c.WatchdogValue = watchdogValue
	}
}

// WithoutDelays disables every pacing delay. Only useful against simulated devices.
func WithoutDelays() Option {
	return func(c *Config) {
		c.IODelay = 0
		c.PacketDelay = 0
		c.HandshakeInterval = 0
	}
}

// withSleeper replaces time.Sleep for pacing delays.
func withSleeper(sleep func(time.Duration)) Option {
	return func(c *Config) {
		c.sleep = sleep
	}
}
