package protocol

// Responses are kept raw. The session never interprets them; callers that
// want to verify a chip against an allow-list can do it from these fields.

// ChipInfo is the reply to CmdGetChipInfo.
type ChipInfo struct {
	// Echo is the echoed command byte
	Echo []byte

	// HWCode is the hardware code (e.g. 03 35)
	HWCode []byte

	// Reserved is the trailing 2-byte field
	Reserved []byte
}

// VersionInfo is the reply to CmdGetVersion.
type VersionInfo struct {
	// Echo is the echoed command byte
	Echo []byte

	// Fields are the four 2-byte version words (hw subcode, hw version, sw version, reserved)
	Fields [VersionFields][]byte
}

// Read32Response is the reply to CmdRead32.
type Read32Response struct {
	Echo        []byte
	AddressEcho []byte
	CountEcho   []byte
	Status      []byte

	// Value is the register contents as sent by the device
	Value       []byte
	FinalStatus []byte
}

// Write32Response is the reply to CmdWrite32.
type Write32Response struct {
	Echo        []byte
	AddressEcho []byte
	CountEcho   []byte
	Status      []byte
	ValueEcho   []byte
	FinalStatus []byte
}

// BootloaderVersion is the reply to CmdGetBootloaderVersion and its two probes.
type BootloaderVersion struct {
	Echo   []byte
	First  []byte
	Second []byte
}

// SendDAResponse is the reply to the CmdSendDA header.
type SendDAResponse struct {
	Echo          []byte
	AddressEcho   []byte
	LengthEcho    []byte
	SignatureEcho []byte
	Status        []byte
}

// TransferStatus is what the device reports after the last agent packet.
type TransferStatus struct {
	// Checksum is the device-computed checksum; it is not verified
	Checksum []byte
	Status   []byte
}

// RunResponse is the reply to CmdRunProgram.
type RunResponse struct {
	Echo []byte

	// Ack is normally "READY" once the agent executes
	Ack []byte
}
