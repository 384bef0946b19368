package input_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"actionmap/input"
)

var t0 = time.Unix(1000, 0)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

type recorder struct {
	events []input.PhaseEvent
}

func (r *recorder) listen(ev input.PhaseEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) phases() []input.Phase {
	out := make([]input.Phase, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Phase)
	}
	return out
}

func (r *recorder) count(p input.Phase) int {
	n := 0
	for _, ev := range r.events {
		if ev.Phase == p {
			n++
		}
	}
	return n
}

func (r *recorder) clear() { r.events = nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMap(t *testing.T, opts ...input.Option) (*input.Map, *input.VirtualDevice) {
	t.Helper()
	dev := input.NewVirtualDevice("pad/")
	base := []input.Option{input.WithResolver(dev), input.WithLogger(quietLogger())}
	m, err := input.NewMap("test", append(base, opts...)...)
	require.NoError(t, err)
	return m, dev
}

// set changes a control and polls the map at ms.
func set(t *testing.T, m *input.Map, c *input.VirtualControl, v float64, ms int) {
	t.Helper()
	c.SetScalar(v)
	require.NoError(t, m.Update(at(ms)))
}

func step(in input.Interaction, ms int, v float64, expired bool) input.Result {
	s := input.DefaultSettings()
	return in.Process(input.NewContext(at(ms), input.Scalar(v), input.Value{}, expired, &s))
}

func mustInteraction(t *testing.T, name string, p input.Params) input.Interaction {
	t.Helper()
	in, err := input.NewRegistry().New(name, p)
	require.NoError(t, err)
	return in
}
