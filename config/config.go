// Package config loads mtkboot settings from a TOML file and the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/moffa90/go-mtkboot/bootloader"
	"github.com/moffa90/go-mtkboot/protocol"
	"github.com/moffa90/go-mtkboot/transport"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "mtkboot.toml"

// Config is the top-level configuration loaded from mtkboot.toml.
type Config struct {
	Serial    SerialConfig    `toml:"serial"`
	Agent     AgentConfig     `toml:"agent"`
	Handshake HandshakeConfig `toml:"handshake"`
	Timing    TimingConfig    `toml:"timing"`
	Registers RegisterConfig  `toml:"registers"`
}

// SerialConfig describes the port the boot ROM enumerates on.
type SerialConfig struct {
	Port         string   `toml:"port"`
	Baud         int      `toml:"baud"`
	OpenAttempts int      `toml:"open_attempts"`
	OpenInterval Duration `toml:"open_interval"`
	ReadTimeout  Duration `toml:"read_timeout"`
}

// AgentConfig describes the download agent and where it is loaded.
type AgentConfig struct {
	Path            string `toml:"path"`
	LoadAddress     uint32 `toml:"load_address"`
	SignatureLength uint32 `toml:"signature_length"`
	MaxBulkSize     int    `toml:"max_bulk_size"`
}

// HandshakeConfig bounds the handshake polling loop.
type HandshakeConfig struct {
	Attempts int      `toml:"attempts"`
	Interval Duration `toml:"interval"`
}

// TimingConfig holds the pacing delays.
type TimingConfig struct {
	IODelay     Duration `toml:"io_delay"`
	PacketDelay Duration `toml:"packet_delay"`
}

// RegisterConfig holds the register read and watchdog write issued during setup.
type RegisterConfig struct {
	Read32          uint32 `toml:"read32"`
	WatchdogAddress uint32 `toml:"watchdog_address"`
	WatchdogValue   uint32 `toml:"watchdog_value"`
}

// Duration is a time.Duration written as a string ("15ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the settings for an MT67xx boot ROM on the default port.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         defaultPort(),
			Baud:         protocol.DefaultBaudRate,
			OpenAttempts: protocol.DefaultOpenAttempts,
			OpenInterval: Duration{protocol.OpenInterval},
			ReadTimeout:  Duration{protocol.ReadTimeout},
		},
		Agent: AgentConfig{
			LoadAddress:     protocol.DefaultDALoadAddress,
			SignatureLength: protocol.DefaultSignatureLength,
			MaxBulkSize:     protocol.DefaultMaxBulkSize,
		},
		Handshake: HandshakeConfig{
			Attempts: protocol.DefaultHandshakeAttempts,
			Interval: Duration{protocol.HandshakeInterval},
		},
		Timing: TimingConfig{
			IODelay:     Duration{protocol.IODelay},
			PacketDelay: Duration{protocol.PacketDelay},
		},
		Registers: RegisterConfig{
			Read32:          protocol.DefaultRead32Address,
			WatchdogAddress: protocol.DefaultWrite32Address,
			WatchdogValue:   protocol.DefaultWrite32Value,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults, applies
// environment variable overrides and validates the result. A missing file
// is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %s: unknown key %q", path, undecoded[0].String())
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides the file with MTKBOOT_* environment variables.
func (c *Config) applyEnv() error {
	if port := os.Getenv("MTKBOOT_PORT"); port != "" {
		c.Serial.Port = port
	}
	if path := os.Getenv("MTKBOOT_AGENT"); path != "" {
		c.Agent.Path = path
	}
	if baud := os.Getenv("MTKBOOT_BAUD"); baud != "" {
		v, err := strconv.Atoi(baud)
		if err != nil {
			return fmt.Errorf("MTKBOOT_BAUD: %w", err)
		}
		c.Serial.Baud = v
	}
	return nil
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Serial.Baud <= 0:
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	case c.Serial.OpenAttempts <= 0:
		return fmt.Errorf("serial.open_attempts must be positive, got %d", c.Serial.OpenAttempts)
	case c.Agent.MaxBulkSize <= 0:
		return fmt.Errorf("agent.max_bulk_size must be positive, got %d", c.Agent.MaxBulkSize)
	case c.Handshake.Attempts <= 0:
		return fmt.Errorf("handshake.attempts must be positive, got %d", c.Handshake.Attempts)
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// OpenConfig returns the serial settings for transport.OpenPort.
func (c *Config) OpenConfig(logger zerolog.Logger) transport.OpenConfig {
	return transport.OpenConfig{
		Port:        c.Serial.Port,
		BaudRate:    c.Serial.Baud,
		Attempts:    c.Serial.OpenAttempts,
		Interval:    c.Serial.OpenInterval.Duration,
		ReadTimeout: c.Serial.ReadTimeout.Duration,
		Logger:      logger,
	}
}

// Options returns the programmer options equivalent to c.
func (c *Config) Options() []bootloader.Option {
	return []bootloader.Option{
		bootloader.WithAgentPath(c.Agent.Path),
		bootloader.WithLoadAddress(c.Agent.LoadAddress),
		bootloader.WithSignatureLength(c.Agent.SignatureLength),
		bootloader.WithMaxBulkSize(c.Agent.MaxBulkSize),
		bootloader.WithHandshake(c.Handshake.Attempts, c.Handshake.Interval.Duration),
		bootloader.WithIODelay(c.Timing.IODelay.Duration),
		bootloader.WithPacketDelay(c.Timing.PacketDelay.Duration),
		bootloader.WithRegisters(c.Registers.Read32, c.Registers.WatchdogAddress, c.Registers.WatchdogValue),
	}
}
