package input

import "strings"

// PressBehavior selects which edge of a press triggers the action.
type PressBehavior uint8

const (
	// PressOnly performs on press and cancels on release.
	PressOnly PressBehavior = iota
	// ReleaseOnly starts on press and performs on release.
	ReleaseOnly
	// PressAndRelease performs on both edges.
	PressAndRelease
)

func (b PressBehavior) String() string {
	switch b {
	case PressOnly:
		return "pressOnly"
	case ReleaseOnly:
		return "releaseOnly"
	case PressAndRelease:
		return "pressAndRelease"
	default:
		return "unknown"
	}
}

func parsePressBehavior(s string) (PressBehavior, error) {
	switch strings.ToLower(s) {
	case "", "pressonly", "0":
		return PressOnly, nil
	case "releaseonly", "1":
		return ReleaseOnly, nil
	case "pressandrelease", "2":
		return PressAndRelease, nil
	default:
		return 0, configErrorf("unknown press behavior %q", s)
	}
}

// Press is the default interaction: it follows the control across its press
// point. A binding with no interactions gets one implicitly.
type Press struct {
	PressPoint float64
	Behavior   PressBehavior

	pressed bool
}

// NewPress reads pressPoint and behavior.
func NewPress(p Params) (Interaction, error) {
	pp, err := p.pressPoint()
	if err != nil {
		return nil, err
	}
	raw, _ := p.String("behavior")
	b, err := parsePressBehavior(raw)
	if err != nil {
		return nil, err
	}
	return &Press{PressPoint: pp, Behavior: b}, nil
}

func (p *Press) Process(ctx *Context) Result {
	// Press arms no timers; a stray expiry carries no meaning.
	if ctx.TimerHasExpired() {
		return ctx.None()
	}

	s := ctx.Settings()
	pressPoint := s.pressPointOr(p.PressPoint)

	if !p.pressed {
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		p.pressed = true
		if p.Behavior == ReleaseOnly {
			return ctx.Started()
		}
		return ctx.Performed()
	}

	if ctx.IsActuated(s.releasePoint(pressPoint)) {
		return ctx.None()
	}
	p.pressed = false
	if p.Behavior == PressOnly {
		return ctx.Cancelled()
	}
	return ctx.PerformedAndReset()
}

func (p *Press) Reset() { p.pressed = false }

func (p *Press) SubPhase() string {
	if p.pressed {
		return "started"
	}
	return "idle"
}
