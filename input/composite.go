package input

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// PartValues carries the current value of each named part of a composite.
// A part name bound to several controls reads the largest-magnitude value.
type PartValues map[string]Value

// Get returns the value of part name, or the zero value when it is unbound.
func (pv PartValues) Get(name string) Value {
	return pv[strings.ToLower(name)]
}

func (pv PartValues) merge(name string, v Value) {
	name = strings.ToLower(name)
	if cur, ok := pv[name]; !ok || v.Magnitude() > cur.Magnitude() {
		pv[name] = v
	}
}

// Composite combines part values into one logical binding value.
// Resolve must be pure; it runs every tick before interactions see the value.
type Composite interface {
	// Parts lists the part names the composite accepts.
	Parts() []string
	Resolve(parts PartValues, s *Settings) Value
}

// CompositeFactory builds a composite from authored params.
type CompositeFactory func(Params) (Composite, error)

// CompositeRegistry maps composite kind names to factories (case-insensitive).
type CompositeRegistry struct {
	mu        sync.RWMutex
	factories map[string]CompositeFactory
}

// NewCompositeRegistry returns a registry with the built-in composites.
func NewCompositeRegistry() *CompositeRegistry {
	r := &CompositeRegistry{factories: make(map[string]CompositeFactory)}
	r.Register("2DVector", NewVector2Composite)
	r.Register("dpad", NewVector2Composite)
	r.Register("1DAxis", NewAxisComposite)
	r.Register("axis", NewAxisComposite)
	r.Register("ButtonWithModifier", NewButtonWithModifier)
	r.Register("AnyButton", NewAnyButton)
	r.Register("OneOf", NewAnyButton)
	return r
}

func (r *CompositeRegistry) Register(name string, f CompositeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

func (r *CompositeRegistry) New(name string, p Params) (Composite, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, configErrorf("unknown composite %q", name)
	}
	c, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", name, err)
	}
	return c, nil
}

func (r *CompositeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ====================
// 2D vector
// ====================

// Vector2Mode controls how a Vector2Composite reads its parts.
type Vector2Mode uint8

const (
	// DigitalNormalized treats parts as buttons and scales the result to unit length.
	DigitalNormalized Vector2Mode = iota
	// Digital treats parts as buttons; diagonals have length sqrt(2).
	Digital
	// Analog uses part magnitudes, each axis clamped to [-1, 1].
	Analog
)

// Vector2Composite builds a 2D vector from up/down/left/right parts.
type Vector2Composite struct {
	Mode       Vector2Mode
	PressPoint float64
}

func NewVector2Composite(p Params) (Composite, error) {
	c := &Vector2Composite{}
	raw, _ := p.String("mode")
	switch strings.ToLower(raw) {
	case "", "digitalnormalized", "0":
		c.Mode = DigitalNormalized
	case "digital", "1":
		c.Mode = Digital
	case "analog", "2":
		c.Mode = Analog
	default:
		return nil, configErrorf("unknown 2D vector mode %q", raw)
	}
	pp, err := p.pressPoint()
	if err != nil {
		return nil, err
	}
	c.PressPoint = pp
	return c, nil
}

func (c *Vector2Composite) Parts() []string { return []string{"up", "down", "left", "right"} }

func (c *Vector2Composite) Resolve(parts PartValues, s *Settings) Value {
	read := func(name string) float64 {
		v := parts.Get(name)
		if c.Mode == Analog {
			return v.Magnitude()
		}
		if v.Actuated(s.pressPointOr(c.PressPoint)) {
			return 1
		}
		return 0
	}

	x := read("right") - read("left")
	y := read("up") - read("down")

	switch c.Mode {
	case Analog:
		x, y = clamp(x, -1, 1), clamp(y, -1, 1)
	case DigitalNormalized:
		if l := math.Hypot(x, y); l > 0 {
			x, y = x/l, y/l
		}
	}
	return Vec2(x, y)
}

// ====================
// 1D axis
// ====================

// AxisSide picks the winner when both sides of an axis are pressed.
type AxisSide uint8

const (
	Neither AxisSide = iota
	Positive
	Negative
)

// AxisComposite builds a scalar from negative/positive parts.
type AxisComposite struct {
	MinValue      float64
	MaxValue      float64
	WhichSideWins AxisSide
}

func NewAxisComposite(p Params) (Composite, error) {
	c := &AxisComposite{MinValue: -1, MaxValue: 1}
	if v, ok, err := p.Float("minValue"); err != nil {
		return nil, err
	} else if ok {
		c.MinValue = v
	}
	if v, ok, err := p.Float("maxValue"); err != nil {
		return nil, err
	} else if ok {
		c.MaxValue = v
	}
	if c.MinValue > c.MaxValue {
		return nil, configErrorf("minValue %v is greater than maxValue %v", c.MinValue, c.MaxValue)
	}
	raw, _ := p.String("whichSideWins")
	switch strings.ToLower(raw) {
	case "", "neither", "0":
		c.WhichSideWins = Neither
	case "positive", "1":
		c.WhichSideWins = Positive
	case "negative", "2":
		c.WhichSideWins = Negative
	default:
		return nil, configErrorf("unknown whichSideWins %q", raw)
	}
	return c, nil
}

func (c *AxisComposite) Parts() []string { return []string{"negative", "positive"} }

// Resolve returns zero when neither side is actuated. Otherwise the active
// side scales from the midpoint of [MinValue, MaxValue] towards its extreme.
func (c *AxisComposite) Resolve(parts PartValues, _ *Settings) Value {
	neg := clamp(parts.Get("negative").Magnitude(), 0, 1)
	pos := clamp(parts.Get("positive").Magnitude(), 0, 1)
	if neg == 0 && pos == 0 {
		return Value{}
	}

	mid := (c.MinValue + c.MaxValue) / 2
	if neg > 0 && pos > 0 {
		switch c.WhichSideWins {
		case Positive:
			neg = 0
		case Negative:
			pos = 0
		default:
			return Scalar(mid)
		}
	}
	if pos > 0 {
		return Scalar(mid + (c.MaxValue-mid)*pos)
	}
	return Scalar(mid - (mid-c.MinValue)*neg)
}

// ====================
// Modifier and OR composites
// ====================

// ButtonWithModifier passes the button value through while the modifier is held.
type ButtonWithModifier struct {
	PressPoint float64
}

func NewButtonWithModifier(p Params) (Composite, error) {
	pp, err := p.pressPoint()
	if err != nil {
		return nil, err
	}
	return &ButtonWithModifier{PressPoint: pp}, nil
}

func (c *ButtonWithModifier) Parts() []string { return []string{"modifier", "button"} }

func (c *ButtonWithModifier) Resolve(parts PartValues, s *Settings) Value {
	if !parts.Get("modifier").Actuated(s.pressPointOr(c.PressPoint)) {
		return Value{}
	}
	return parts.Get("button")
}

// AnyButton ORs any number of "button" parts: the most actuated one wins.
type AnyButton struct{}

func NewAnyButton(Params) (Composite, error) { return AnyButton{}, nil }

func (AnyButton) Parts() []string { return []string{"button"} }

func (AnyButton) Resolve(parts PartValues, _ *Settings) Value { return parts.Get("button") }
