package input

import (
	"fmt"
	"math"
)

// Value is the logical value of a control or binding.
// Scalars use X only; 2D vectors use X and Y.
type Value struct {
	X float64 `json:"x"`
	Y float64 `json:"y,omitempty"`
}

// Scalar returns a one-dimensional value.
func Scalar(v float64) Value { return Value{X: v} }

// Vec2 returns a two-dimensional value.
func Vec2(x, y float64) Value { return Value{X: x, Y: y} }

// Magnitude is the actuation of the value.
func (v Value) Magnitude() float64 {
	if v.Y == 0 {
		return math.Abs(v.X)
	}
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether the value is the zero value.
func (v Value) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Equal compares two values exactly.
func (v Value) Equal(o Value) bool { return v.X == o.X && v.Y == o.Y }

// Actuated reports whether the magnitude reaches threshold.
// A threshold <= 0 means "any non-zero actuation".
func (v Value) Actuated(threshold float64) bool {
	return actuated(v.Magnitude(), threshold)
}

func (v Value) String() string {
	if v.Y == 0 {
		return fmt.Sprintf("%.3f", v.X)
	}
	return fmt.Sprintf("(%.3f, %.3f)", v.X, v.Y)
}

func actuated(magnitude, threshold float64) bool {
	if threshold <= 0 {
		return magnitude > 0
	}
	return magnitude >= threshold
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
