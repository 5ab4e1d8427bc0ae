package bootloader

import (
	"context"
	"fmt"

	"github.com/moffa90/go-mtkboot/protocol"
)

// HandshakeState is the link-establishment state.
type HandshakeState int

const (
	// StateProbing: the serial port is being acquired
	StateProbing HandshakeState = iota

	// StateAwaitingReadyByte: the port is open and the device is being polled
	StateAwaitingReadyByte

	// StateEstablished: the device answered with protocol.HandshakeReady
	StateEstablished

	// StateFailed: the port could not be opened or the polling budget ran out
	StateFailed
)

func (s HandshakeState) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateAwaitingReadyByte:
		return "awaiting-ready-byte"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s HandshakeState) Terminal() bool {
	return s == StateEstablished || s == StateFailed
}

// HandshakeEvent describes what a poll observed.
type HandshakeEvent int

const (
	EventNone HandshakeEvent = iota

	// EventOpened: the channel became available
	EventOpened

	// EventProbe: the device sent its 5-byte textual probe
	EventProbe

	// EventReady: the device sent protocol.HandshakeReady
	EventReady

	// EventOutOfOrder: the device sent a status byte other than HandshakeReady
	EventOutOfOrder

	// EventSizeMismatch: the poll returned neither 5 bytes nor 1 byte
	EventSizeMismatch
)

func (e HandshakeEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventOpened:
		return "opened"
	case EventProbe:
		return "probe"
	case EventReady:
		return "ready"
	case EventOutOfOrder:
		return "out-of-order"
	case EventSizeMismatch:
		return "size-mismatch"
	default:
		return fmt.Sprintf("HandshakeEvent(%d)", int(e))
	}
}

// HandshakeStep is the outcome of one transition.
type HandshakeStep struct {
	Next  HandshakeState
	Event HandshakeEvent

	// Emit is written to the device before the next poll (nil for nothing)
	Emit []byte
}

// NextHandshake is the pure transition function of the handshake.
// It maps the current state and the bytes returned by one poll to the next
// state and the bytes to send back. It performs no I/O.
func NextHandshake(state HandshakeState, observed []byte) HandshakeStep {
	switch state {
	case StateProbing:
		return HandshakeStep{Next: StateAwaitingReadyByte, Event: EventOpened}

	case StateAwaitingReadyByte:
		switch len(observed) {
		case protocol.ProbeSize:
			return HandshakeStep{
				Next:  StateAwaitingReadyByte,
				Event: EventProbe,
				Emit:  []byte{protocol.HandshakeStart},
			}
		case protocol.StatusByteSize:
			if observed[0] == protocol.HandshakeReady {
				return HandshakeStep{Next: StateEstablished, Event: EventReady}
			}
			return HandshakeStep{Next: StateAwaitingReadyByte, Event: EventOutOfOrder}
		default:
			return HandshakeStep{Next: StateAwaitingReadyByte, Event: EventSizeMismatch}
		}

	default:
		return HandshakeStep{Next: state, Event: EventNone}
	}
}

// Handshake tracks the handshake state against a bounded polling budget.
type Handshake struct {
	state       HandshakeState
	attempts    int
	maxAttempts int
}

// NewHandshake returns a handshake in StateProbing with the given polling budget.
func NewHandshake(maxAttempts int) *Handshake {
	if maxAttempts <= 0 {
		maxAttempts = protocol.DefaultHandshakeAttempts
	}
	return &Handshake{state: StateProbing, maxAttempts: maxAttempts}
}

// State returns the current state.
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Attempts returns the number of polls observed so far.
func (h *Handshake) Attempts() int {
	return h.attempts
}

// Opened records that the channel is available.
func (h *Handshake) Opened() HandshakeStep {
	step := NextHandshake(h.state, nil)
	h.state = step.Next
	return step
}

// OpenFailed records that the channel could not be acquired.
func (h *Handshake) OpenFailed() {
	if h.state == StateProbing {
		h.state = StateFailed
	}
}

// Observe feeds the bytes returned by one poll. When the budget is spent
// without reaching StateEstablished the returned step moves to StateFailed;
// its Emit is still meant to be written.
func (h *Handshake) Observe(observed []byte) HandshakeStep {
	if h.state.Terminal() {
		return HandshakeStep{Next: h.state, Event: EventNone}
	}

	h.attempts++
	step := NextHandshake(h.state, observed)
	if step.Next != StateEstablished && h.attempts >= h.maxAttempts {
		step.Next = StateFailed
	}
	h.state = step.Next
	return step
}

// Handshake polls the device until it reports ready or the budget runs out.
// Each poll is a 5-byte read; the device first sends a textual probe, which
// is answered with protocol.HandshakeStart, and then a single status byte.
//
// A handshake left in StateAwaitingReadyByte by Boot is continued; otherwise
// a fresh one is started. Returns *HandshakeTimeoutError when the device
// never becomes ready.
func (p *Programmer) Handshake(ctx context.Context) error {
	hs := p.handshake
	if hs == nil || hs.State() != StateAwaitingReadyByte || hs.Attempts() != 0 {
		hs = NewHandshake(p.config.HandshakeAttempts)
		p.handshake = hs
		hs.Opened()
	}

	p.reportProgress(Progress{Phase: PhaseHandshake})

	for !hs.State().Terminal() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		// A failed poll counts as an empty one; only the emit write is fatal.
		data, err := p.ch.Read(protocol.ProbeSize)
		if err != nil {
			p.config.Logger.Debug().Err(err).Int("attempt", hs.Attempts()+1).Msg("handshake poll failed")
			data = nil
		}

		step := hs.Observe(data)
		switch step.Event {
		case EventProbe:
			p.config.Logger.Info().Str("probe", string(data)).Msg("device probe")
		case EventReady:
			p.config.Logger.Info().Int("attempt", hs.Attempts()).Msg("handshake established")
		case EventOutOfOrder:
			p.config.Logger.Warn().
				Str("command", fmt.Sprintf("0x%02X", data[0])).
				Msg("command in wrong order")
		case EventSizeMismatch:
			p.config.Logger.Debug().
				Err(&ResponseSizeError{Expected: []int{protocol.ProbeSize, protocol.StatusByteSize}, Got: len(data)}).
				Msg("handshake poll")
		}

		if step.Emit != nil {
			if _, err := p.ch.Write(step.Emit); err != nil {
				hs.state = StateFailed
				return fmt.Errorf("handshake start: %w", err)
			}
		}

		if hs.State() == StateEstablished {
			return nil
		}
		p.config.sleep(p.config.HandshakeInterval)
	}

	return &HandshakeTimeoutError{Attempts: hs.Attempts()}
}

// HandshakeState returns the state of the last handshake, StateProbing if none ran.
func (p *Programmer) HandshakeState() HandshakeState {
	if p.handshake == nil {
		return StateProbing
	}
	return p.handshake.State()
}
