package simulator

import (
	"bytes"
	"testing"
)

func TestChecksumAgent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0x0000,
		},
		{
			name:     "single byte",
			data:     []byte{0xAB},
			expected: 0x00AB,
		},
		{
			name:     "one halfword",
			data:     []byte{0x34, 0x12},
			expected: 0x1234,
		},
		{
			name:     "repeated halfword cancels",
			data:     []byte{0x34, 0x12, 0x34, 0x12},
			expected: 0x0000,
		},
		{
			name:     "odd tail",
			data:     []byte{0x01, 0x02, 0x03},
			expected: 0x0201 ^ 0x0003,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ChecksumAgent(tt.data)
			if result != tt.expected {
				t.Errorf("ChecksumAgent() = 0x%04X, want 0x%04X", result, tt.expected)
			}
		})
	}
}

func TestAgentChecksumStreaming(t *testing.T) {
	data := make([]byte, 0x15358)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	want := ChecksumAgent(data)

	// Odd packet sizes force halfwords to straddle Write calls.
	for _, size := range []int{1, 3, 0x3F0, 0x3F1, len(data)} {
		var c AgentChecksum
		for off := 0; off < len(data); off += size {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			c.Write(data[off:end])
		}
		if c.Sum16() != want {
			t.Errorf("packet size %d: Sum16() = 0x%04X, want 0x%04X", size, c.Sum16(), want)
		}
	}
}

func TestAgentChecksumBytes(t *testing.T) {
	var c AgentChecksum
	c.Write([]byte{0x8E, 0xBE})
	if !bytes.Equal(c.Bytes(), []byte{0xBE, 0x8E}) {
		t.Errorf("Bytes() = % X, want BE 8E", c.Bytes())
	}
}
