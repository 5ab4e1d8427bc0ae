// Package agent provides the download agent (DA) image uploaded to the boot ROM.
//
// # Image Format
//
// A download agent is a raw ARM binary. No header or footer is imposed: only
// its byte length and contents are consumed. The boot ROM strips a trailing
// signature of protocol.DefaultSignatureLength bytes on its own.
//
// # Usage
//
// Open an agent from disk:
//
//	img, err := agent.Open("MT6735P.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	fmt.Printf("Agent size: 0x%X bytes\n", img.Size())
//
// Wrap an in-memory agent:
//
//	img := agent.FromBytes(payload)
//
// An Image is read once, front to back, and then closed. Close is safe to
// call more than once.
package agent
