// Package simulator provides an in-process MediaTek boot ROM for tests,
// examples and the simulate command.
//
// Device implements io.ReadWriter. Writes are parsed as the boot ROM would
// parse them and the replies are queued for subsequent reads; a read with
// nothing queued returns 0 bytes, like a serial read that timed out.
//
//	dev := simulator.New()
//	prog := bootloader.New(dev, bootloader.WithoutDelays(),
//	    bootloader.WithAgentOpener(func(string) (bootloader.AgentImage, error) {
//	        return agent.FromBytes(payload), nil
//	    }),
//	)
//	result, err := prog.Run(ctx)
package simulator

import (
	"bytes"
	"sync"

	"github.com/moffa90/go-mtkboot/protocol"
)

// Config describes the simulated chip.
type Config struct {
	// Probe is what the device sends before the handshake (default "READY")
	Probe []byte

	// ReadyByte answers protocol.HandshakeStart (nil for protocol.HandshakeReady).
	// A pointer so that 0x00 can be simulated.
	ReadyByte *byte

	// HWCode is returned by CmdGetChipInfo (default 03 35, MT6735)
	HWCode [2]byte

	// Registers holds initial register contents
	Registers map[uint32]uint32

	// FailWritesAfter makes every write after the first N accept 0 bytes (0 disables)
	FailWritesAfter int

	// Silent makes the device never send anything
	Silent bool
}

// DefaultConfig returns an MT6735P as seen on the bench.
func DefaultConfig() Config {
	ready := byte(protocol.HandshakeReady)
	return Config{
		Probe:     []byte("READY"),
		ReadyByte: &ready,
		HWCode:    [2]byte{0x03, 0x35},
		Registers: map[uint32]uint32{
			protocol.DefaultRead32Address: 0x28900010,
		},
	}
}

// field is a multi-byte argument the device is waiting for.
type field struct {
	size   int
	handle func(data []byte)
}

// Device is a simulated boot ROM.
type Device struct {
	mu sync.Mutex

	cfg       Config
	ready     byte
	out       bytes.Buffer
	in        []byte
	expect    []field
	registers map[uint32]uint32

	handshaken bool
	commands   []byte
	writes     int

	agent       bytes.Buffer
	checksum    AgentChecksum
	daRemaining uint32
	daAddress   uint32
	loaded      bool
	running     bool
	closed      bool
}

// New returns a device with DefaultConfig.
func New() *Device {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig returns a device for cfg. Zero fields take their defaults.
func NewWithConfig(cfg Config) *Device {
	def := DefaultConfig()
	if cfg.Probe == nil {
		cfg.Probe = def.Probe
	}
	if cfg.ReadyByte == nil {
		cfg.ReadyByte = def.ReadyByte
	}
	if cfg.HWCode == [2]byte{} {
		cfg.HWCode = def.HWCode
	}

	d := &Device{cfg: cfg, ready: *cfg.ReadyByte, registers: make(map[uint32]uint32)}
	for addr, v := range def.Registers {
		d.registers[addr] = v
	}
	for addr, v := range cfg.Registers {
		d.registers[addr] = v
	}
	d.queue(cfg.Probe)
	return d
}

// Read returns queued replies, at most len(p) bytes.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out.Len() == 0 {
		return 0, nil
	}
	return d.out.Read(p)
}

// Write feeds bytes to the device.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.FailWritesAfter > 0 && d.writes >= d.cfg.FailWritesAfter {
		return 0, nil
	}
	d.writes++

	d.in = append(d.in, p...)
	d.process()
	return len(p), nil
}

// Close marks the device as released.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Agent returns the download agent bytes received so far.
func (d *Device) Agent() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.agent.Bytes()...)
}

// AgentAddress returns the load address announced with CmdSendDA.
func (d *Device) AgentAddress() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.daAddress
}

// Running reports whether CmdRunProgram was received after a complete agent.
func (d *Device) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Commands returns the command codes received, in order.
func (d *Device) Commands() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.commands...)
}

// Register returns the simulated register at addr.
func (d *Device) Register(addr uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers[addr]
}

// Writes returns the number of Write calls the device accepted.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *Device) queue(b ...[]byte) {
	if d.cfg.Silent {
		return
	}
	for _, chunk := range b {
		d.out.Write(chunk)
	}
}

// process consumes as much buffered input as the current state allows.
func (d *Device) process() {
	for len(d.in) > 0 {
		switch {
		case d.daRemaining > 0:
			n := uint32(len(d.in))
			if n > d.daRemaining {
				n = d.daRemaining
			}
			d.agent.Write(d.in[:n])
			d.checksum.Write(d.in[:n])
			d.in = d.in[n:]
			d.daRemaining -= n
			if d.daRemaining == 0 {
				d.loaded = true
				d.queue(d.checksum.Bytes(), status())
			}

		case len(d.expect) > 0:
			f := d.expect[0]
			if len(d.in) < f.size {
				return
			}
			data := append([]byte(nil), d.in[:f.size]...)
			d.in = d.in[f.size:]
			d.expect = d.expect[1:]
			f.handle(data)

		default:
			cmd := d.in[0]
			d.in = d.in[1:]
			d.command(cmd)
		}
	}
}

func (d *Device) command(cmd byte) {
	if !d.handshaken {
		if cmd == protocol.HandshakeStart {
			d.handshaken = true
			d.queue([]byte{d.ready})
		}
		return
	}

	d.commands = append(d.commands, cmd)

	switch cmd {
	case protocol.CmdContinue, protocol.CmdInitA, protocol.CmdInitB:
		// Handshake continuation bytes are answered inverted.
		d.queue([]byte{^cmd})

	case protocol.CmdGetChipInfo:
		d.queue([]byte{cmd}, d.cfg.HWCode[:], status())

	case protocol.CmdGetVersion:
		d.queue([]byte{cmd}, []byte{0x8A, 0x00}, []byte{0xCA, 0x00}, status(), status())

	case protocol.CmdRead32:
		d.queue([]byte{cmd})
		var addr uint32
		d.expectWord(func(v uint32) { addr = v })
		d.expectWord(func(count uint32) {
			d.queue(status())
			for i := uint32(0); i < count; i++ {
				d.queue(protocol.EncodeWord(d.registers[addr+4*i]))
			}
			d.queue(status())
		})

	case protocol.CmdWrite32:
		d.queue([]byte{cmd})
		var addr, count uint32
		d.expectWord(func(v uint32) { addr = v })
		d.expectWord(func(v uint32) {
			count = v
			d.queue(status())
			for i := uint32(0); i < count; i++ {
				reg := addr + 4*i
				d.expectWord(func(value uint32) {
					d.registers[reg] = value
					d.queue(status())
				})
			}
		})

	case protocol.CmdGetBootloaderVersion:
		d.queue([]byte{cmd})
		d.expectByte(func(byte) { d.queue([]byte{0x05}) })
		d.expectByte(func(byte) { d.queue([]byte{cmd}) })

	case protocol.CmdSendDA:
		d.queue([]byte{cmd})
		var length uint32
		d.expectWord(func(v uint32) { d.daAddress = v })
		d.expectWord(func(v uint32) { length = v })
		d.expectWord(func(uint32) {
			d.queue(status())
			d.agent.Reset()
			d.checksum = AgentChecksum{}
			d.loaded = false
			d.daRemaining = length
			if length == 0 {
				d.loaded = true
				d.queue(d.checksum.Bytes(), status())
			}
		})

	case protocol.CmdRunProgram:
		d.queue([]byte{cmd})
		if d.loaded {
			d.running = true
			d.queue(protocol.ReadyAck)
		}
	}
}

// expectWord waits for a 4-byte big-endian argument, echoes it and calls handle.
func (d *Device) expectWord(handle func(uint32)) {
	d.expect = append(d.expect, field{size: protocol.WordSize, handle: func(data []byte) {
		d.queue(data)
		v, _ := protocol.DecodeWord(data)
		handle(v)
	}})
}

func (d *Device) expectByte(handle func(byte)) {
	d.expect = append(d.expect, field{size: 1, handle: func(data []byte) {
		handle(data[0])
	}})
}

func status() []byte {
	return []byte{0x00, 0x00}
}
