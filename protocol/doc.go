// Package protocol defines the MediaTek boot ROM (BROM) serial protocol.
//
// This package holds the wire constants, the byte codec and the download
// agent transfer plan. It performs no I/O.
//
// # Protocol Overview
//
// There is no framing. Every command is a single byte and the device echoes
// it; what follows is dictated by the command's fixed schema:
//
//	Handshake: <- "READY"   -> A0   <- 5F   -> 0A   <- F5
//	Read32:    -> D1 <- D1  -> ADDR(4) <- ADDR(4)  -> COUNT(4) <- COUNT(4)
//	           <- STATUS(2) <- VALUE(4) <- STATUS(2)
//	SendDA:    -> D7 <- D7  -> ADDR(4) <- ADDR(4)  -> LEN(4) <- LEN(4)
//	           -> SIGLEN(4) <- SIGLEN(4) <- STATUS(2)
//	           -> DATA in bulk packets  <- CHECKSUM(2) <- STATUS(2)
//
// Multi-byte fields are always 4 bytes, big-endian:
//
//	word := protocol.EncodeWord(protocol.DefaultDALoadAddress) // 00 20 00 00
//
// # Transfer Plan
//
// The download agent is sent in packets of at most DefaultMaxBulkSize bytes:
//
//	plan, err := protocol.NewTransferPlan(0x15358, protocol.DefaultMaxBulkSize)
//	// plan.FullPackets == 86, plan.Remainder == 0x58
//
// # Timing
//
// IODelay, PacketDelay and HandshakeInterval were found by trial against real
// devices. Changing them makes transfers unreliable.
package protocol
