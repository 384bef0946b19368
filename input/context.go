package input

import "time"

// Context is what an interaction sees during one Process call: the binding's
// value, the clock, whether its timer fired, and the settings snapshot of the
// current tick. It is read-only; an interaction answers with a Result.
type Context struct {
	now      time.Time
	value    Value
	previous Value
	control  Control
	expired  bool
	settings *Settings
}

// NewContext builds a context by hand. The engine builds its own; this exists
// for hosts and tests that drive an Interaction directly.
func NewContext(now time.Time, value, previous Value, timerExpired bool, settings *Settings) *Context {
	if settings == nil {
		s := DefaultSettings()
		settings = &s
	}
	return &Context{
		now:      now,
		value:    value,
		previous: previous,
		expired:  timerExpired,
		settings: settings,
	}
}

// Now is the time of the tick being processed.
func (c *Context) Now() time.Time { return c.now }

// ElapsedSince returns Now() - t.
func (c *Context) ElapsedSince(t time.Time) time.Duration { return c.now.Sub(t) }

// TimerHasExpired reports whether this call was caused by the instance's own deadline.
func (c *Context) TimerHasExpired() bool { return c.expired }

// Value is the binding's current logical value.
func (c *Context) Value() Value { return c.value }

// PreviousValue is the binding's value at the previous Process call.
func (c *Context) PreviousValue() Value { return c.previous }

// Control is the control that drove this call; nil for hand-built contexts.
func (c *Context) Control() Control { return c.control }

// Settings is the defaults snapshot for this tick.
func (c *Context) Settings() *Settings { return c.settings }

// IsActuated tests the binding's value against threshold.
// A threshold <= 0 falls back to the default press point.
func (c *Context) IsActuated(threshold float64) bool {
	if threshold <= 0 {
		threshold = c.settings.DefaultButtonPressPoint
	}
	return c.value.Actuated(threshold)
}

// Result constructors. They exist on Context so interaction code reads like
// the transition table it implements.

func (c *Context) None() Result              { return Result{} }
func (c *Context) Started() Result           { return Result{Signal: SignalStarted} }
func (c *Context) Performed() Result         { return Result{Signal: SignalPerformed} }
func (c *Context) PerformedAndReset() Result { return Result{Signal: SignalPerformedAndReset} }
func (c *Context) Cancelled() Result         { return Result{Signal: SignalCancelled} }
