package protocol

import "time"

// Handshake bytes exchanged before any command is accepted.
const (
	// HandshakeStart is sent in answer to the device's 5-byte textual probe
	HandshakeStart = 0xA0

	// HandshakeReady is the status byte the device returns once the link is up
	HandshakeReady = 0x5F

	// ProbeSize is the width of the textual probe the device emits ("READY")
	ProbeSize = 5

	// StatusByteSize is the width of a handshake status reply
	StatusByteSize = 1
)

// Command codes understood by the boot ROM.
const (
	// CmdContinue continues the handshake after HandshakeReady
	CmdContinue = 0x0A

	// CmdInitA and CmdInitB are undocumented device-specific init steps
	CmdInitA = 0x50
	CmdInitB = 0x05

	// CmdGetChipInfo queries the hardware code
	CmdGetChipInfo = 0xFD

	// CmdGetVersion queries hardware/software versions
	CmdGetVersion = 0xFC

	// CmdRead32 reads 32-bit registers
	CmdRead32 = 0xD1

	// CmdWrite32 writes 32-bit registers
	CmdWrite32 = 0xD4

	// CmdGetBootloaderVersion queries the BROM/preloader version
	CmdGetBootloaderVersion = 0xFE

	// CmdSendDA starts a download agent transfer
	CmdSendDA = 0xD7

	// CmdRunProgram jumps to the uploaded download agent
	CmdRunProgram = 0xD5

	// CmdLegacyJump is an older jump command; not used by this session
	CmdLegacyJump = 0xA8

	// BootloaderVersionProbe is written twice after CmdGetBootloaderVersion
	BootloaderVersionProbe = 0xFF
)

// WordSize is the width of every multi-byte field on the wire.
const WordSize = 4

// Response widths of the fixed command schemas.
const (
	EchoSize     = 1
	StatusSize   = 2
	ChecksumSize = 2
	HWFieldSize  = 2

	// VersionFields is the number of 2-byte fields returned by CmdGetVersion
	VersionFields = 4

	// ReadySize is the width of the textual acknowledgment after CmdRunProgram
	ReadySize = 5
)

// Session defaults for the supported SoC.
const (
	// DefaultRead32Address is the register read during setup
	DefaultRead32Address = 0x10206044

	// DefaultWrite32Address is the watchdog register written during setup
	DefaultWrite32Address = 0x10007000

	// DefaultWrite32Value disables the watchdog
	DefaultWrite32Value = 0x22000000

	// DefaultRegisterCount is the word count used by read32/write32
	DefaultRegisterCount = 0x1

	// DefaultDALoadAddress is where the download agent is placed in SRAM
	DefaultDALoadAddress = 0x200000

	// DefaultSignatureLength is the trailing signature size the device strips
	DefaultSignatureLength = 0x100

	// DefaultMaxBulkSize is the largest packet the device accepts in one write
	DefaultMaxBulkSize = 0x3F0
)

// Timing constants. These were tuned against real hardware and encode
// device-side processing latency; they are not a backoff policy.
const (
	// IODelay is slept before every read and after every write. Immediate
	// reads can come back empty on some USB-serial drivers.
	IODelay = 1 * time.Millisecond

	// PacketDelay is slept after every bulk packet of the download agent.
	PacketDelay = 15 * time.Millisecond

	// HandshakeInterval is slept after every handshake poll.
	HandshakeInterval = 10 * time.Millisecond

	// OpenInterval is slept between serial port open attempts.
	OpenInterval = 100 * time.Millisecond

	// ReadTimeout is the per-read deadline configured on the serial line.
	ReadTimeout = 100 * time.Millisecond
)

// Bounded retry budgets.
const (
	DefaultOpenAttempts      = 150
	DefaultHandshakeAttempts = 10
)

// Serial line settings.
const (
	DefaultBaudRate = 115200
	DefaultDataBits = 8
)

// ReadyAck is the acknowledgment the download agent prints once it runs.
var ReadyAck = []byte("READY")
