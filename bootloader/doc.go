// Package bootloader bootstraps MediaTek boot ROMs (BROM/preloader) over a serial link.
//
// # Overview
//
// This package orchestrates the complete bootstrap sequence:
//   - Handshake: poll the device until it reports ready
//   - Setup: chip info, versions, a register read and the watchdog write
//   - SendDA: announce the download agent's load address and length
//   - Upload: stream the agent in bulk packets
//   - RunProgram: jump to the agent and wait for its "READY"
//
// # Basic Usage
//
//	cfg := transport.DefaultOpenConfig("/dev/ttyACM0")
//
//	result, err := bootloader.Boot(context.Background(), transport.SerialOpener(cfg),
//	    bootloader.WithAgentPath("MT6735P.bin"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("agent says %q\n", result.Run.Ack)
//
// # Step by Step
//
// The commands are exposed individually for callers that need a different
// script or want to verify replies:
//
//	prog := bootloader.New(port)
//	if err := prog.Handshake(ctx); err != nil {
//	    return err
//	}
//	info, err := prog.GetChipInfo(ctx)
//	if !bytes.Equal(info.HWCode, []byte{0x03, 0x35}) {
//	    return errors.New("not an MT6735")
//	}
//
// Replies are never validated by this package. They are returned raw and
// recorded in the session transcript.
//
// # Handshake State Machine
//
// NextHandshake is a pure transition function over
// StateProbing -> StateAwaitingReadyByte -> StateEstablished | StateFailed.
// Handshake drives it with 5-byte polls: a 5-byte reply is the device's
// textual probe and is answered with 0xA0; a 1-byte reply of 0x5F
// establishes the link. Anything else is logged and polling continues until
// the attempt budget is spent, which yields *HandshakeTimeoutError.
//
// # Error Handling
//
// The package provides structured error types:
//   - transport.ChannelOpenError: serial port never became available
//   - transport.WriteError: the device did not accept a write (fatal)
//   - transport.ReadError: the stream failed (a short read is not an error)
//   - ImageOpenError: the download agent could not be opened
//   - PacketReadError: the download agent ran dry mid-upload
//   - HandshakeTimeoutError: the device never reported ready
//
// KindOf classifies any returned error:
//
//	if bootloader.KindOf(err) == bootloader.KindHandshakeTimedOut {
//	    fmt.Println("is the phone powered off and plugged in?")
//	}
//
// # Timing
//
// All device I/O is paced by fixed delays (see the protocol package). They
// can be disabled with WithoutDelays for simulated devices only.
package bootloader
