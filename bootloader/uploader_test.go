package bootloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/moffa90/go-mtkboot/protocol"
	"github.com/moffa90/go-mtkboot/simulator"
)

// uploadingProgrammer returns a programmer whose device has already
// accepted CmdSendDA for n bytes.
func uploadingProgrammer(t *testing.T, n uint32) (*Programmer, *RecordingDevice, *simulator.Device) {
	t.Helper()
	dev := simulator.New()
	rec := &RecordingDevice{ReadWriter: dev}
	prog := New(rec, WithoutDelays())

	ctx := context.Background()
	if err := prog.Handshake(ctx); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	if _, err := prog.SendDA(ctx, protocol.DefaultDALoadAddress, n, protocol.DefaultSignatureLength); err != nil {
		t.Fatalf("SendDA() error = %v", err)
	}
	rec.writes = nil
	return prog, rec, dev
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		maxBulk     int
		wantWrites  []int
		wantPackets int64
	}{
		{
			name:        "remainder",
			size:        0x3F0 + 0x10,
			maxBulk:     0x3F0,
			wantWrites:  []int{0x3F0, 0x10},
			wantPackets: 2,
		},
		{
			name:        "zero remainder is skipped",
			size:        2 * 0x3F0,
			maxBulk:     0x3F0,
			wantWrites:  []int{0x3F0, 0x3F0},
			wantPackets: 2,
		},
		{
			name:        "smaller than one packet",
			size:        0x20,
			maxBulk:     0x3F0,
			wantWrites:  []int{0x20},
			wantPackets: 1,
		},
		{
			name:        "empty agent",
			size:        0,
			maxBulk:     0x3F0,
			wantWrites:  nil,
			wantPackets: 0,
		},
		{
			name:        "custom bulk size",
			size:        10,
			maxBulk:     4,
			wantWrites:  []int{4, 4, 2},
			wantPackets: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, rec, dev := uploadingProgrammer(t, uint32(tt.size))
			data := payload(tt.size)
			img := &TrackedImage{Reader: bytes.NewReader(data), size: int64(tt.size)}

			result, err := prog.Upload(context.Background(), img, tt.maxBulk)
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}

			if len(rec.writes) != len(tt.wantWrites) {
				t.Fatalf("writes = %v, want %v", rec.writes, tt.wantWrites)
			}
			for i := range tt.wantWrites {
				if rec.writes[i] != tt.wantWrites[i] {
					t.Errorf("write[%d] = %d, want %d", i, rec.writes[i], tt.wantWrites[i])
				}
			}
			if result.PacketsSent != tt.wantPackets || result.BytesSent != int64(tt.size) {
				t.Errorf("result = %d packets, %d bytes", result.PacketsSent, result.BytesSent)
			}
			if !bytes.Equal(dev.Agent(), data) {
				t.Error("device received a different agent")
			}
			if !img.closed {
				t.Error("image not closed")
			}
		})
	}
}

func TestUploadPacketReadError(t *testing.T) {
	prog, rec, _ := uploadingProgrammer(t, 0x500)
	// Claims 0x500 bytes but only holds 0x10.
	img := &TrackedImage{Reader: bytes.NewReader(payload(0x10)), size: 0x500}

	_, err := prog.Upload(context.Background(), img, 0x3F0)

	var pktErr *PacketReadError
	if !errors.As(err, &pktErr) {
		t.Fatalf("Upload() error = %v, want *PacketReadError", err)
	}
	if pktErr.Packet != 0 || pktErr.Size != 0x3F0 {
		t.Errorf("PacketReadError = %+v", pktErr)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("error %v does not wrap io.ErrUnexpectedEOF", err)
	}
	if KindOf(err) != KindPacketReadFailure {
		t.Errorf("KindOf() = %v", KindOf(err))
	}
	if len(rec.writes) != 0 {
		t.Errorf("partial packet written: %v", rec.writes)
	}
	if !img.closed {
		t.Error("image not closed on error")
	}
}

func TestUploadInvalidBulkSize(t *testing.T) {
	prog := New(simulator.New(), WithoutDelays())
	img := &TrackedImage{Reader: bytes.NewReader(nil)}

	if _, err := prog.Upload(context.Background(), img, 0); err == nil {
		t.Error("Upload() with zero bulk size succeeded")
	}
	if !img.closed {
		t.Error("image not closed on error")
	}
}

func TestUploadCancelled(t *testing.T) {
	prog, rec, _ := uploadingProgrammer(t, 0x100)
	img := &TrackedImage{Reader: bytes.NewReader(payload(0x100)), size: 0x100}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := prog.Upload(ctx, img, 0x3F0); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload() error = %v, want context.Canceled", err)
	}
	if len(rec.writes) != 0 {
		t.Errorf("writes after cancel: %v", rec.writes)
	}
}
