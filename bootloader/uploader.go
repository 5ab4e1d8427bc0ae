package bootloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-mtkboot/protocol"
)

// AgentImage is a download agent source with a known length.
// *agent.Image implements it.
type AgentImage interface {
	io.Reader
	io.Closer
	Size() int64
}

// UploadResult summarizes a completed agent transfer.
type UploadResult struct {
	Plan        protocol.TransferPlan
	PacketsSent int64
	BytesSent   int64
	Elapsed     time.Duration
}

// Upload streams img to the device in packets of at most maxBulk bytes.
// The caller must already have announced the transfer with SendDA.
//
// Every full packet is followed by the packet delay; a zero-length remainder
// is skipped. img is closed on every return path. The device checksum that
// follows the transfer is read separately with ReadTransferStatus.
func (p *Programmer) Upload(ctx context.Context, img AgentImage, maxBulk int) (*UploadResult, error) {
	defer func() {
		if err := img.Close(); err != nil {
			p.logError("close agent", "err", err.Error())
		}
	}()

	plan, err := protocol.NewTransferPlan(img.Size(), maxBulk)
	if err != nil {
		return nil, err
	}

	p.logDebug("agent transfer plan",
		"total", plan.Total,
		"packet_size", plan.PacketSize,
		"full_packets", plan.FullPackets,
		"remainder", plan.Remainder,
	)

	result := &UploadResult{Plan: plan}
	startTime := time.Now()
	staging := make([]byte, maxBulk)

	sendPacket := func(size int) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		buf := staging[:size]
		if _, err := io.ReadFull(img, buf); err != nil {
			return &PacketReadError{Packet: result.PacketsSent, Size: size, Err: err}
		}
		if _, err := p.ch.Write(buf); err != nil {
			return fmt.Errorf("write agent packet %d: %w", result.PacketsSent, err)
		}

		result.PacketsSent++
		result.BytesSent += int64(size)
		p.reportProgress(Progress{
			Phase:         PhaseUploading,
			CurrentPacket: result.PacketsSent,
			TotalPackets:  plan.PacketCount(),
			Percentage:    percentOf(result.BytesSent, plan.Total),
			BytesWritten:  result.BytesSent,
			TotalBytes:    plan.Total,
			ElapsedTime:   time.Since(startTime),
		})
		return nil
	}

	for i := int64(0); i < plan.FullPackets; i++ {
		if err := sendPacket(plan.PacketSize); err != nil {
			return result, err
		}
		p.config.sleep(p.config.PacketDelay)
	}

	if plan.Remainder > 0 {
		if err := sendPacket(plan.Remainder); err != nil {
			return result, err
		}
	}
	p.config.sleep(p.config.PacketDelay)

	result.Elapsed = time.Since(startTime)
	p.logInfo("agent uploaded",
		"bytes", result.BytesSent,
		"packets", result.PacketsSent,
		"elapsed", result.Elapsed.String(),
	)
	return result, nil
}

func percentOf(n, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(n) / float64(total) * 100
}
