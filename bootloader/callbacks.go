package bootloader

import "time"

// Progress phases, in the order Run goes through them.
const (
	PhaseHandshake = "handshake"
	PhaseSetup     = "setup"
	PhaseUploading = "uploading"
	PhaseRunning   = "running"
	PhaseComplete  = "complete"
)

// Progress contains information about the bootstrap progress.
// Passed to ProgressCallback during Run and Upload.
type Progress struct {
	// Phase describes the current operation phase:
	//   "handshake" - Waiting for the boot ROM to answer
	//   "setup"     - Running the command session
	//   "uploading" - Streaming the download agent
	//   "running"   - Jumping to the download agent
	//   "complete"  - The agent acknowledged it is running
	Phase string

	// CurrentPacket is the number of agent packets written so far
	CurrentPacket int64

	// TotalPackets is the number of agent packets in the transfer plan
	TotalPackets int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of agent bytes written so far
	BytesWritten int64

	// TotalBytes is the agent length
	TotalBytes int64

	// ElapsedTime is the time elapsed since the phase started
	ElapsedTime time.Duration
}

// ProgressCallback is called during the bootstrap to report progress.
// It runs on the session goroutine; return quickly to keep device timing intact.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - packet %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentPacket, p.TotalPackets)
//	    }),
//	)
type ProgressCallback func(Progress)
