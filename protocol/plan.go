package protocol

import "fmt"

// TransferPlan describes how a download agent is split into bulk packets.
//
// FullPackets*PacketSize + Remainder always equals Total.
type TransferPlan struct {
	// Total is the agent image length in bytes
	Total int64

	// PacketSize is the device's maximum bulk size
	PacketSize int

	// FullPackets is the number of PacketSize packets
	FullPackets int64

	// Remainder is the size of the trailing short packet (0 when none)
	Remainder int
}

// NewTransferPlan splits total bytes into packets of at most maxBulk bytes.
func NewTransferPlan(total int64, maxBulk int) (TransferPlan, error) {
	if maxBulk <= 0 {
		return TransferPlan{}, fmt.Errorf("bulk size must be positive, got %d", maxBulk)
	}
	if total < 0 {
		return TransferPlan{}, fmt.Errorf("image length must not be negative, got %d", total)
	}

	return TransferPlan{
		Total:       total,
		PacketSize:  maxBulk,
		FullPackets: total / int64(maxBulk),
		Remainder:   int(total % int64(maxBulk)),
	}, nil
}

// PacketCount returns the number of writes the plan issues.
func (p TransferPlan) PacketCount() int64 {
	if p.Remainder > 0 {
		return p.FullPackets + 1
	}
	return p.FullPackets
}

// Packets returns the size of every packet in transfer order.
func (p TransferPlan) Packets() []int {
	sizes := make([]int, 0, p.PacketCount())
	for i := int64(0); i < p.FullPackets; i++ {
		sizes = append(sizes, p.PacketSize)
	}
	if p.Remainder > 0 {
		sizes = append(sizes, p.Remainder)
	}
	return sizes
}

func (p TransferPlan) String() string {
	return fmt.Sprintf("%d bytes: %d x 0x%X + 0x%X", p.Total, p.FullPackets, p.PacketSize, p.Remainder)
}
