package bootloader

import (
	"context"
	"fmt"

	"github.com/moffa90/go-mtkboot/protocol"
)

// Direction tells whether an Exchange was sent or received.
type Direction int

const (
	DirWrite Direction = iota
	DirRead
)

func (d Direction) String() string {
	if d == DirWrite {
		return "write"
	}
	return "read"
}

// Exchange is one raw transfer of the command session.
type Exchange struct {
	Step      string
	Direction Direction
	Data      []byte
}

// SetupInfo collects the raw replies of the setup commands.
// Nothing in it is validated; callers can check it against their own allow-lists.
type SetupInfo struct {
	ContinueEcho      []byte
	InitEcho          [2][]byte
	ChipInfo          *protocol.ChipInfo
	Version           *protocol.VersionInfo
	Read32            *protocol.Read32Response
	Watchdog          *protocol.Write32Response
	BootloaderVersion *protocol.BootloaderVersion
}

// Continue sends CmdContinue, the first command after the handshake.
func (p *Programmer) Continue(ctx context.Context) ([]byte, error) {
	const step = "continue"
	if err := p.sendByte(ctx, step, protocol.CmdContinue); err != nil {
		return nil, err
	}
	return p.recv(step, protocol.EchoSize)
}

// Init sends the two undocumented initialization bytes.
func (p *Programmer) Init(ctx context.Context) ([2][]byte, error) {
	const step = "init"
	var echoes [2][]byte

	for i, cmd := range []byte{protocol.CmdInitA, protocol.CmdInitB} {
		if err := p.sendByte(ctx, step, cmd); err != nil {
			return echoes, err
		}
		echo, err := p.recv(step, protocol.EchoSize)
		if err != nil {
			return echoes, err
		}
		echoes[i] = echo
	}
	return echoes, nil
}

// GetChipInfo queries the hardware code.
func (p *Programmer) GetChipInfo(ctx context.Context) (*protocol.ChipInfo, error) {
	const step = "get chip info"
	if err := p.sendByte(ctx, step, protocol.CmdGetChipInfo); err != nil {
		return nil, err
	}

	fields, err := p.recvAll(step, protocol.EchoSize, protocol.HWFieldSize, protocol.HWFieldSize)
	if err != nil {
		return nil, err
	}
	return &protocol.ChipInfo{Echo: fields[0], HWCode: fields[1], Reserved: fields[2]}, nil
}

// GetVersion queries the hardware and software versions.
func (p *Programmer) GetVersion(ctx context.Context) (*protocol.VersionInfo, error) {
	const step = "get version"
	if err := p.sendByte(ctx, step, protocol.CmdGetVersion); err != nil {
		return nil, err
	}

	echo, err := p.recv(step, protocol.EchoSize)
	if err != nil {
		return nil, err
	}
	info := &protocol.VersionInfo{Echo: echo}
	for i := range info.Fields {
		if info.Fields[i], err = p.recv(step, protocol.HWFieldSize); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// Read32 reads count 32-bit registers starting at addr.
//
// Schema:
//
//	-> D1 <- 1  -> ADDR <- 4  -> COUNT <- 4  <- STATUS(2) <- VALUE(4) <- STATUS(2)
func (p *Programmer) Read32(ctx context.Context, addr, count uint32) (*protocol.Read32Response, error) {
	const step = "read32"
	if err := p.sendByte(ctx, step, protocol.CmdRead32); err != nil {
		return nil, err
	}

	resp := &protocol.Read32Response{}
	var err error
	if resp.Echo, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	if resp.AddressEcho, err = p.exchangeWord(ctx, step, addr); err != nil {
		return nil, err
	}
	if resp.CountEcho, err = p.exchangeWord(ctx, step, count); err != nil {
		return nil, err
	}

	fields, err := p.recvAll(step, protocol.StatusSize, protocol.WordSize, protocol.StatusSize)
	if err != nil {
		return nil, err
	}
	resp.Status, resp.Value, resp.FinalStatus = fields[0], fields[1], fields[2]
	return resp, nil
}

// Write32 writes value to count 32-bit registers starting at addr.
//
// Schema:
//
//	-> D4 <- 1  -> ADDR <- 4  -> COUNT <- 4  <- STATUS(2)  -> VALUE <- 4  <- STATUS(2)
func (p *Programmer) Write32(ctx context.Context, addr, count, value uint32) (*protocol.Write32Response, error) {
	const step = "write32"
	if err := p.sendByte(ctx, step, protocol.CmdWrite32); err != nil {
		return nil, err
	}

	resp := &protocol.Write32Response{}
	var err error
	if resp.Echo, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	if resp.AddressEcho, err = p.exchangeWord(ctx, step, addr); err != nil {
		return nil, err
	}
	if resp.CountEcho, err = p.exchangeWord(ctx, step, count); err != nil {
		return nil, err
	}
	if resp.Status, err = p.recv(step, protocol.StatusSize); err != nil {
		return nil, err
	}
	if resp.ValueEcho, err = p.exchangeWord(ctx, step, value); err != nil {
		return nil, err
	}
	if resp.FinalStatus, err = p.recv(step, protocol.StatusSize); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBootloaderVersion queries the boot ROM / preloader version.
// The device expects two extra probe bytes after the command.
func (p *Programmer) GetBootloaderVersion(ctx context.Context) (*protocol.BootloaderVersion, error) {
	const step = "get bootloader version"
	if err := p.sendByte(ctx, step, protocol.CmdGetBootloaderVersion); err != nil {
		return nil, err
	}

	resp := &protocol.BootloaderVersion{}
	var err error
	if resp.Echo, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	if err := p.sendByte(ctx, step, protocol.BootloaderVersionProbe); err != nil {
		return nil, err
	}
	if resp.First, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	if err := p.sendByte(ctx, step, protocol.BootloaderVersionProbe); err != nil {
		return nil, err
	}
	if resp.Second, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendDA announces a download agent of length bytes to be loaded at addr.
// The agent itself is streamed afterwards with Upload.
//
// Schema:
//
//	-> D7 <- 1  -> ADDR <- 4  -> LEN <- 4  -> SIGLEN <- 4  <- STATUS(2)
func (p *Programmer) SendDA(ctx context.Context, addr, length, sigLen uint32) (*protocol.SendDAResponse, error) {
	const step = "send da"
	if err := p.sendByte(ctx, step, protocol.CmdSendDA); err != nil {
		return nil, err
	}

	resp := &protocol.SendDAResponse{}
	var err error
	if resp.Echo, err = p.recv(step, protocol.EchoSize); err != nil {
		return nil, err
	}
	if resp.AddressEcho, err = p.exchangeWord(ctx, step, addr); err != nil {
		return nil, err
	}
	if resp.LengthEcho, err = p.exchangeWord(ctx, step, length); err != nil {
		return nil, err
	}
	if resp.SignatureEcho, err = p.exchangeWord(ctx, step, sigLen); err != nil {
		return nil, err
	}
	if resp.Status, err = p.recv(step, protocol.StatusSize); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadTransferStatus reads the checksum and status the device sends after the
// last agent packet. The checksum is not verified.
func (p *Programmer) ReadTransferStatus(ctx context.Context) (*protocol.TransferStatus, error) {
	const step = "transfer status"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cancelled: %w", err)
	}

	fields, err := p.recvAll(step, protocol.ChecksumSize, protocol.StatusSize)
	if err != nil {
		return nil, err
	}
	return &protocol.TransferStatus{Checksum: fields[0], Status: fields[1]}, nil
}

// RunProgram jumps to the uploaded download agent and reads its acknowledgment.
func (p *Programmer) RunProgram(ctx context.Context) (*protocol.RunResponse, error) {
	const step = "run program"
	if err := p.sendByte(ctx, step, protocol.CmdRunProgram); err != nil {
		return nil, err
	}

	fields, err := p.recvAll(step, protocol.EchoSize, protocol.ReadySize)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Echo: fields[0], Ack: fields[1]}, nil
}

// Setup runs the configuration commands that follow the handshake, in order:
// continue, init, chip info, version, register read, watchdog write and
// bootloader version. Any write failure aborts the remaining commands.
func (p *Programmer) Setup(ctx context.Context) (*SetupInfo, error) {
	info := &SetupInfo{}
	var err error

	if info.ContinueEcho, err = p.Continue(ctx); err != nil {
		return info, err
	}
	if info.InitEcho, err = p.Init(ctx); err != nil {
		return info, err
	}
	if info.ChipInfo, err = p.GetChipInfo(ctx); err != nil {
		return info, err
	}
	if info.Version, err = p.GetVersion(ctx); err != nil {
		return info, err
	}
	if info.Read32, err = p.Read32(ctx, p.config.Read32Address, protocol.DefaultRegisterCount); err != nil {
		return info, err
	}
	if info.Watchdog, err = p.Write32(ctx, p.config.WatchdogAddress, protocol.DefaultRegisterCount, p.config.WatchdogValue); err != nil {
		return info, err
	}
	if info.BootloaderVersion, err = p.GetBootloaderVersion(ctx); err != nil {
		return info, err
	}

	p.config.Logger.Info().
		Hex("hw_code", info.ChipInfo.HWCode).
		Msg("setup complete")
	return info, nil
}

// Transcript returns every exchange of the session so far, in order.
func (p *Programmer) Transcript() []Exchange {
	return append([]Exchange(nil), p.transcript...)
}

// sendByte writes a single command byte.
func (p *Programmer) sendByte(ctx context.Context, step string, b byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: cancelled: %w", step, err)
	}
	if err := p.ch.WriteByte(b); err != nil {
		p.logError("write failed", "step", step, "err", err.Error())
		return fmt.Errorf("%s: %w", step, err)
	}
	p.record(step, DirWrite, []byte{b})
	return nil
}

// send writes data and records it. Failures are fatal for the session.
func (p *Programmer) send(ctx context.Context, step string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: cancelled: %w", step, err)
	}
	if _, err := p.ch.Write(data); err != nil {
		p.logError("write failed", "step", step, "err", err.Error())
		return fmt.Errorf("%s: %w", step, err)
	}
	p.record(step, DirWrite, data)
	return nil
}

// recv issues one read of n bytes and records whatever came back.
// The count is not checked: the device may answer short.
func (p *Programmer) recv(step string, n int) ([]byte, error) {
	data, err := p.ch.Read(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	p.record(step, DirRead, data)
	return data, nil
}

// recvAll issues one read per width.
func (p *Programmer) recvAll(step string, widths ...int) ([][]byte, error) {
	fields := make([][]byte, len(widths))
	for i, n := range widths {
		data, err := p.recv(step, n)
		if err != nil {
			return nil, err
		}
		fields[i] = data
	}
	return fields, nil
}

// exchangeWord writes a big-endian word and reads its 4-byte echo.
func (p *Programmer) exchangeWord(ctx context.Context, step string, v uint32) ([]byte, error) {
	if err := p.send(ctx, step, protocol.EncodeWord(v)); err != nil {
		return nil, err
	}
	return p.recv(step, protocol.WordSize)
}

func (p *Programmer) record(step string, dir Direction, data []byte) {
	p.transcript = append(p.transcript, Exchange{
		Step:      step,
		Direction: dir,
		Data:      append([]byte(nil), data...),
	})
}
