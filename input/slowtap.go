package input

import "time"

// SlowTap performs when the control is released after being held for at
// least Duration, and cancels on an earlier release.
type SlowTap struct {
	Duration   time.Duration
	PressPoint float64

	pressed bool
	start   time.Time
}

// NewSlowTap reads duration and pressPoint.
func NewSlowTap(p Params) (Interaction, error) {
	tp, err := parseTiming(p, "duration")
	if err != nil {
		return nil, err
	}
	return &SlowTap{Duration: tp.duration, PressPoint: tp.pressPoint}, nil
}

func (t *SlowTap) Process(ctx *Context) Result {
	if ctx.TimerHasExpired() {
		return ctx.None()
	}

	s := ctx.Settings()
	pressPoint := s.pressPointOr(t.PressPoint)

	if !t.pressed {
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		t.pressed = true
		t.start = ctx.Now()
		return ctx.Started()
	}

	if ctx.IsActuated(s.releasePoint(pressPoint)) {
		return ctx.None()
	}
	held := ctx.ElapsedSince(t.start)
	t.Reset()
	if held >= durationOr(t.Duration, s.DefaultSlowTapTime) {
		return ctx.PerformedAndReset()
	}
	return ctx.Cancelled()
}

func (t *SlowTap) Reset() {
	t.pressed = false
	t.start = time.Time{}
}

func (t *SlowTap) SubPhase() string {
	if t.pressed {
		return "pressed"
	}
	return "idle"
}
