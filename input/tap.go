package input

import "time"

// Tap performs when the control is pressed and released within Duration.
// Holding past Duration cancels as soon as the timer fires.
type Tap struct {
	Duration   time.Duration
	PressPoint float64

	pressed bool
	start   time.Time
}

// NewTap reads duration and pressPoint.
func NewTap(p Params) (Interaction, error) {
	tp, err := parseTiming(p, "duration")
	if err != nil {
		return nil, err
	}
	return &Tap{Duration: tp.duration, PressPoint: tp.pressPoint}, nil
}

func (t *Tap) Process(ctx *Context) Result {
	if ctx.TimerHasExpired() {
		if !t.pressed {
			return ctx.None()
		}
		t.Reset()
		return ctx.Cancelled()
	}

	s := ctx.Settings()
	pressPoint := s.pressPointOr(t.PressPoint)
	duration := durationOr(t.Duration, s.DefaultTapTime)

	if !t.pressed {
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		t.pressed = true
		t.start = ctx.Now()
		return ctx.Started().WithTimeout(duration)
	}

	if ctx.IsActuated(s.releasePoint(pressPoint)) {
		return ctx.None()
	}
	held := ctx.ElapsedSince(t.start)
	t.Reset()
	if held <= duration {
		return ctx.PerformedAndReset()
	}
	return ctx.Cancelled()
}

func (t *Tap) Reset() {
	t.pressed = false
	t.start = time.Time{}
}

func (t *Tap) SubPhase() string {
	if t.pressed {
		return "pressed"
	}
	return "idle"
}
