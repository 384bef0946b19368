//go:build property
// +build property

package input_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"actionmap/input"
)

// Expired keys come out ordered by deadline, ties broken by arm order, and
// only the latest arm of a key counts.
func TestSchedulerOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("expired order is (deadline, arm sequence)", prop.ForAll(
		func(keys []int, delays []int) bool {
			s := input.NewScheduler[int]()
			type armed struct {
				at  time.Time
				seq int
			}
			last := make(map[int]armed)
			for i := 0; i < len(keys) && i < len(delays); i++ {
				d := time.Duration(delays[i]) * time.Millisecond
				if err := s.Arm(keys[i], t0, d); err != nil {
					return false
				}
				last[keys[i]] = armed{at: t0.Add(d), seq: i}
			}
			if s.Len() != len(last) {
				return false
			}
			fired := s.Expired(t0.Add(time.Hour))
			if len(fired) != len(last) || s.Len() != 0 {
				return false
			}
			for i := 1; i < len(fired); i++ {
				prev, cur := last[fired[i-1]], last[fired[i]]
				if cur.at.Before(prev.at) {
					return false
				}
				if cur.at.Equal(prev.at) && cur.seq < prev.seq {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

// Opposite directions held equally hard always cancel on that axis.
func TestVector2AxisCancellation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	reg := input.NewCompositeRegistry()
	s := input.DefaultSettings()
	modes := []string{"digitalNormalized", "digital", "analog"}

	properties.Property("left == right gives x == 0", prop.ForAll(
		func(side, up float64, mode int) bool {
			c, err := reg.New("2DVector", input.Params{"mode": modes[mode]})
			if err != nil {
				return false
			}
			v := c.Resolve(input.PartValues{
				"left":  input.Scalar(side),
				"right": input.Scalar(side),
				"up":    input.Scalar(up),
			}, &s)
			return v.X == 0 && v.Y >= 0 && v.Y <= 1
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.IntRange(0, len(modes)-1),
	))

	properties.TestingRun(t)
}

// Any input history followed by Reset leaves an interaction in a state where
// an expired timer does nothing.
func TestResetIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	reg := input.NewRegistry()
	kinds := []string{"press", "tap", "slowtap", "hold", "multitap"}

	properties.Property("reset then expiry is a no-op", prop.ForAll(
		func(kind int, values []float64) bool {
			in, err := reg.New(kinds[kind], nil)
			if err != nil {
				return false
			}
			initial := in.(input.SubPhaser).SubPhase()
			s := input.DefaultSettings()
			prev := input.Value{}
			for i, v := range values {
				cur := input.Scalar(v)
				in.Process(input.NewContext(at(i*40), cur, prev, i%5 == 4, &s))
				prev = cur
			}
			in.Reset()
			r := in.Process(input.NewContext(at(len(values)*40+1000), input.Value{}, prev, true, &s))
			return r.Signal == input.SignalNone && in.(input.SubPhaser).SubPhase() == initial
		},
		gen.IntRange(0, len(kinds)-1),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
