package input

import "time"

// MultiTapPhase is the internal sub-phase of a MultiTap instance.
type MultiTapPhase uint8

const (
	MultiTapNone MultiTapPhase = iota
	MultiTapWaitingForNextRelease
	MultiTapWaitingForNextPress
)

func (p MultiTapPhase) String() string {
	switch p {
	case MultiTapNone:
		return "none"
	case MultiTapWaitingForNextRelease:
		return "waiting_for_next_release"
	case MultiTapWaitingForNextPress:
		return "waiting_for_next_press"
	default:
		return "unknown"
	}
}

// MultiTap performs after TapCount taps, each held at most TapTime and
// separated by at most TapDelay.
type MultiTap struct {
	TapTime    time.Duration
	TapDelay   time.Duration
	TapCount   int
	PressPoint float64

	phase       MultiTapPhase
	taps        int
	startTime   time.Time
	releaseTime time.Time
}

// NewMultiTap reads tapTime, tapDelay, tapCount (default 2) and pressPoint.
func NewMultiTap(p Params) (Interaction, error) {
	tapTime, _, err := p.Duration("tapTime")
	if err != nil {
		return nil, err
	}
	tapDelay, _, err := p.Duration("tapDelay")
	if err != nil {
		return nil, err
	}
	count, ok, err := p.Int("tapCount")
	if err != nil {
		return nil, err
	}
	if !ok {
		count = 2
	}
	if count < 1 {
		return nil, configErrorf("tapCount must be >= 1 (got %d)", count)
	}
	pp, err := p.pressPoint()
	if err != nil {
		return nil, err
	}
	return &MultiTap{TapTime: tapTime, TapDelay: tapDelay, TapCount: count, PressPoint: pp}, nil
}

func (m *MultiTap) Process(ctx *Context) Result {
	// An expired timer always means the next input did not come in time.
	if ctx.TimerHasExpired() {
		if m.phase == MultiTapNone {
			return ctx.None()
		}
		m.Reset()
		return ctx.Cancelled()
	}

	s := ctx.Settings()
	pressPoint := s.pressPointOr(m.PressPoint)
	tapTime := durationOr(m.TapTime, s.DefaultTapTime)
	tapDelay := durationOr(m.TapDelay, s.MultiTapDelayTime)

	switch m.phase {
	case MultiTapNone:
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		m.startTime = ctx.Now()
		m.phase = MultiTapWaitingForNextRelease
		return ctx.Started().WithTimeout(tapTime)

	case MultiTapWaitingForNextRelease:
		if ctx.IsActuated(s.releasePoint(pressPoint)) {
			return ctx.None()
		}
		if ctx.ElapsedSince(m.startTime) > tapTime {
			m.Reset()
			return ctx.Cancelled()
		}
		m.taps++
		if m.taps >= m.TapCount {
			m.Reset()
			return ctx.PerformedAndReset()
		}
		m.releaseTime = ctx.Now()
		m.phase = MultiTapWaitingForNextPress
		return ctx.None().WithTimeout(tapDelay)

	case MultiTapWaitingForNextPress:
		if !ctx.IsActuated(pressPoint) {
			return ctx.None()
		}
		if ctx.ElapsedSince(m.releaseTime) > tapDelay {
			m.Reset()
			return ctx.Cancelled()
		}
		m.startTime = ctx.Now()
		m.phase = MultiTapWaitingForNextRelease
		return ctx.None().WithTimeout(tapTime)
	}
	return ctx.None()
}

func (m *MultiTap) Reset() {
	m.phase = MultiTapNone
	m.taps = 0
	m.startTime = time.Time{}
	m.releaseTime = time.Time{}
}

// Phase is the current sub-phase.
func (m *MultiTap) Phase() MultiTapPhase { return m.phase }

// Taps is the number of completed taps in the current sequence.
func (m *MultiTap) Taps() int { return m.taps }

func (m *MultiTap) SubPhase() string { return m.phase.String() }
