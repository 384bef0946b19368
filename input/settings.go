package input

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig marks configuration errors: bad parameters, negative timeouts,
// unknown interaction or composite names. They are reported where the bad
// value enters the engine and never coerced.
var ErrConfig = errors.New("input: configuration error")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Settings are the process-wide defaults interactions fall back to when a
// parameter is left unset. A Map snapshots them at the start of every tick.
type Settings struct {
	DefaultTapTime          time.Duration
	DefaultSlowTapTime      time.Duration
	DefaultHoldTime         time.Duration
	MultiTapDelayTime       time.Duration
	DefaultButtonPressPoint float64

	// ButtonReleaseThreshold is the fraction of the press point below which a
	// pressed control counts as released.
	ButtonReleaseThreshold float64
}

// DefaultSettings returns the stock defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultTapTime:          200 * time.Millisecond,
		DefaultSlowTapTime:      500 * time.Millisecond,
		DefaultHoldTime:         400 * time.Millisecond,
		MultiTapDelayTime:       750 * time.Millisecond,
		DefaultButtonPressPoint: 0.5,
		ButtonReleaseThreshold:  0.75,
	}
}

// Validate rejects settings that would leave an interaction without a usable default.
func (s Settings) Validate() error {
	if s.DefaultTapTime <= 0 {
		return configErrorf("default tap time must be > 0")
	}
	if s.DefaultSlowTapTime <= 0 {
		return configErrorf("default slow tap time must be > 0")
	}
	if s.DefaultHoldTime <= 0 {
		return configErrorf("default hold time must be > 0")
	}
	if s.MultiTapDelayTime <= 0 {
		return configErrorf("multi-tap delay time must be > 0")
	}
	if s.DefaultButtonPressPoint <= 0 || s.DefaultButtonPressPoint > 1 {
		return configErrorf("default button press point must be in (0, 1]")
	}
	if s.ButtonReleaseThreshold <= 0 || s.ButtonReleaseThreshold > 1 {
		return configErrorf("button release threshold must be in (0, 1]")
	}
	return nil
}

// pressPointOr returns p when set, otherwise the default press point.
func (s *Settings) pressPointOr(p float64) float64 {
	if p > 0 {
		return p
	}
	return s.DefaultButtonPressPoint
}

// releasePoint is the threshold under which a control pressed at pressPoint is released.
func (s *Settings) releasePoint(pressPoint float64) float64 {
	return pressPoint * s.ButtonReleaseThreshold
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
