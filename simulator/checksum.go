package simulator

// bitsPerByte is the number of bits per byte
const bitsPerByte = 8

// AgentChecksum accumulates the 16-bit checksum the boot ROM reports after
// a download agent transfer: the XOR of the agent's little-endian halfwords,
// with an odd trailing byte taken as the low byte.
//
// The zero value is ready to use. Write may be called with packets of any
// size; an odd-length packet carries its last byte into the next call.
type AgentChecksum struct {
	sum     uint16
	pending byte
	odd     bool
}

// Write adds data to the checksum. It never fails.
func (c *AgentChecksum) Write(data []byte) (int, error) {
	i := 0
	if c.odd && len(data) > 0 {
		c.sum ^= uint16(c.pending) | uint16(data[0])<<bitsPerByte
		c.odd = false
		i = 1
	}
	for ; i+1 < len(data); i += 2 {
		c.sum ^= uint16(data[i]) | uint16(data[i+1])<<bitsPerByte
	}
	if i < len(data) {
		c.pending = data[i]
		c.odd = true
	}
	return len(data), nil
}

// Sum16 returns the checksum of everything written so far.
func (c *AgentChecksum) Sum16() uint16 {
	if c.odd {
		return c.sum ^ uint16(c.pending)
	}
	return c.sum
}

// Bytes returns Sum16 in the big-endian order the device sends it.
func (c *AgentChecksum) Bytes() []byte {
	sum := c.Sum16()
	return []byte{byte(sum >> bitsPerByte), byte(sum)}
}

// ChecksumAgent returns the checksum of a complete agent image.
func ChecksumAgent(data []byte) uint16 {
	var c AgentChecksum
	_, _ = c.Write(data)
	return c.Sum16()
}
