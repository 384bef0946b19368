package input

import (
	"fmt"
	"time"
)

// Phase is the externally visible lifecycle state of an action.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseStarted
	PhasePerformed
	PhaseCanceled
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseStarted:
		return "started"
	case PhasePerformed:
		return "performed"
	case PhaseCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Signal is what an interaction asks the action to do with its phase.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalStarted
	// SignalPerformed performs the action but keeps the interaction's own
	// state; it stays in progress and may cancel or perform again later.
	SignalPerformed
	// SignalPerformedAndReset performs the action and resets the interaction.
	SignalPerformedAndReset
	SignalCancelled
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalStarted:
		return "started"
	case SignalPerformed:
		return "performed"
	case SignalPerformedAndReset:
		return "performed_and_reset"
	case SignalCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Interaction.Process call. The owning action
// applies it: phase change and listener delivery first, then the timeout.
type Result struct {
	Signal Signal

	// Timeout, when SetTimeout is true, replaces any armed deadline of the
	// instance with now+Timeout.
	Timeout    time.Duration
	SetTimeout bool
}

// WithTimeout returns r with a timeout request attached.
func (r Result) WithTimeout(d time.Duration) Result {
	r.Timeout = d
	r.SetTimeout = true
	return r
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "waiting":
		return PhaseWaiting, nil
	case "started":
		return PhaseStarted, nil
	case "performed":
		return PhasePerformed, nil
	case "canceled":
		return PhaseCanceled, nil
	default:
		return PhaseWaiting, fmt.Errorf("unknown phase %q", s)
	}
}
