package input

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Interaction is a pluggable state machine deciding when an action reports
// Started, Performed and Canceled.
//
// Process is called only when the watched binding's value changed since the
// previous call, or when the instance's own timer expired. It must not block.
// Reset returns the instance to its initial sub-phase and is idempotent.
type Interaction interface {
	Process(ctx *Context) Result
	Reset()
}

// SubPhaser is implemented by interactions that expose their internal
// sub-phase. It is used for diagnostics and snapshots only.
type SubPhaser interface {
	SubPhase() string
}

// InteractionFactory builds a fresh interaction instance from authored params.
// Bad params are reported as errors wrapping ErrConfig.
type InteractionFactory func(Params) (Interaction, error)

// InteractionSpec names an interaction type and its parameters as authored
// on an action or a binding.
type InteractionSpec struct {
	Type   string `json:"type" yaml:"type"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}

func (s InteractionSpec) String() string {
	if len(s.Params) == 0 {
		return s.Type
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Params[k])
	}
	return fmt.Sprintf("%s(%s)", s.Type, strings.Join(parts, ","))
}

// Registry maps interaction type names to factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]InteractionFactory
}

// NewRegistry returns a registry holding the built-in interactions:
// press, tap, slowtap, hold and multitap.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]InteractionFactory)}
	r.Register("press", NewPress)
	r.Register("tap", NewTap)
	r.Register("slowtap", NewSlowTap)
	r.Register("hold", NewHold)
	r.Register("multitap", NewMultiTap)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f InteractionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New builds an instance of the named interaction.
func (r *Registry) New(name string, p Params) (Interaction, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, configErrorf("unknown interaction %q", name)
	}
	in, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("interaction %s: %w", name, err)
	}
	return in, nil
}

// Names lists registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// timingParams holds the parameters shared by the timed interactions.
type timingParams struct {
	duration   time.Duration
	pressPoint float64
}

func parseTiming(p Params, durationKey string) (timingParams, error) {
	var tp timingParams
	d, _, err := p.Duration(durationKey)
	if err != nil {
		return tp, err
	}
	pp, err := p.pressPoint()
	if err != nil {
		return tp, err
	}
	tp.duration = d
	tp.pressPoint = pp
	return tp, nil
}
