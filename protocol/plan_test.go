package protocol

import (
	"strings"
	"testing"
)

func TestNewTransferPlan(t *testing.T) {
	tests := []struct {
		name          string
		total         int64
		maxBulk       int
		wantFull      int64
		wantRemainder int
		wantPackets   int64
		wantErr       bool
		errMsg        string
	}{
		{
			name:          "reference agent image",
			total:         0x15358,
			maxBulk:       DefaultMaxBulkSize,
			wantFull:      86,
			wantRemainder: 0x58,
			wantPackets:   87,
		},
		{
			name:          "exact multiple",
			total:         DefaultMaxBulkSize * 3,
			maxBulk:       DefaultMaxBulkSize,
			wantFull:      3,
			wantRemainder: 0,
			wantPackets:   3,
		},
		{
			name:          "smaller than one packet",
			total:         10,
			maxBulk:       DefaultMaxBulkSize,
			wantFull:      0,
			wantRemainder: 10,
			wantPackets:   1,
		},
		{
			name:          "empty image",
			total:         0,
			maxBulk:       DefaultMaxBulkSize,
			wantFull:      0,
			wantRemainder: 0,
			wantPackets:   0,
		},
		{
			name:    "zero bulk size",
			total:   100,
			maxBulk: 0,
			wantErr: true,
			errMsg:  "bulk size must be positive",
		},
		{
			name:    "negative length",
			total:   -1,
			maxBulk: 16,
			wantErr: true,
			errMsg:  "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewTransferPlan(tt.total, tt.maxBulk)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if plan.FullPackets != tt.wantFull {
				t.Errorf("FullPackets = %d, want %d", plan.FullPackets, tt.wantFull)
			}
			if plan.Remainder != tt.wantRemainder {
				t.Errorf("Remainder = 0x%X, want 0x%X", plan.Remainder, tt.wantRemainder)
			}
			if plan.PacketCount() != tt.wantPackets {
				t.Errorf("PacketCount() = %d, want %d", plan.PacketCount(), tt.wantPackets)
			}
			if int64(len(plan.Packets())) != tt.wantPackets {
				t.Errorf("len(Packets()) = %d, want %d", len(plan.Packets()), tt.wantPackets)
			}
		})
	}
}

func TestTransferPlanInvariant(t *testing.T) {
	for _, maxBulk := range []int{1, 7, 64, DefaultMaxBulkSize, 4096} {
		for total := int64(1); total < 20000; total += 37 {
			plan, err := NewTransferPlan(total, maxBulk)
			if err != nil {
				t.Fatalf("NewTransferPlan(%d, %d): %v", total, maxBulk, err)
			}

			if plan.FullPackets*int64(maxBulk)+int64(plan.Remainder) != total {
				t.Fatalf("plan %v does not cover %d bytes", plan, total)
			}
			if plan.Remainder < 0 || plan.Remainder >= maxBulk {
				t.Fatalf("remainder %d out of range for bulk size %d", plan.Remainder, maxBulk)
			}

			var sum int64
			for _, size := range plan.Packets() {
				sum += int64(size)
			}
			if sum != total {
				t.Fatalf("Packets() sum = %d, want %d", sum, total)
			}
		}
	}
}

func TestTransferPlanString(t *testing.T) {
	plan, err := NewTransferPlan(0x15358, DefaultMaxBulkSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := plan.String()
	if !strings.Contains(s, "86 x 0x3F0") || !strings.Contains(s, "0x58") {
		t.Errorf("String() = %q, want packet breakdown", s)
	}
}
