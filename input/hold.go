package input

import "time"

type holdPhase uint8

const (
	holdIdle holdPhase = iota
	holdStarted
	holdPerformed
)

// Hold performs once the control has stayed pressed for Duration. The timer
// firing is the success condition; releasing before it cancels, and releasing
// after it performed cancels the (already reported) cycle.
type Hold struct {
	Duration   time.Duration
	PressPoint float64

	phase holdPhase
}

// NewHold reads duration and pressPoint.
func NewHold(p Params) (Interaction, error) {
	tp, err := parseTiming(p, "duration")
	if err != nil {
		return nil, err
	}
	return &Hold{Duration: tp.duration, PressPoint: tp.pressPoint}, nil
}

func (h *Hold) Process(ctx *Context) Result {
	s := ctx.Settings()
	pressPoint := s.pressPointOr(h.PressPoint)
	held := ctx.IsActuated(s.releasePoint(pressPoint))

	if ctx.TimerHasExpired() {
		if h.phase != holdStarted {
			return ctx.None()
		}
		if held {
			h.phase = holdPerformed
			return ctx.Performed()
		}
		h.Reset()
		return ctx.PerformedAndReset()
	}

	switch h.phase {
	case holdIdle:
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		h.phase = holdStarted
		return ctx.Started().WithTimeout(durationOr(h.Duration, s.DefaultHoldTime))
	default:
		if held {
			return ctx.None()
		}
		h.Reset()
		return ctx.Cancelled()
	}
}

func (h *Hold) Reset() { h.phase = holdIdle }

func (h *Hold) SubPhase() string {
	switch h.phase {
	case holdStarted:
		return "started"
	case holdPerformed:
		return "performed"
	default:
		return "idle"
	}
}
