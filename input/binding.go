package input

import (
	"fmt"
	"strings"
)

// BindingID identifies a binding within its map. IDs are never reused.
type BindingID uint64

// InstanceID identifies one interaction instance within its map.
type InstanceID uint64

// PartSpec binds one named composite part to a control path.
type PartSpec struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// BindingSpec is an authored binding: either a control path, or a composite
// kind with params and parts. Interactions listed here run before the
// action-level ones.
type BindingSpec struct {
	Path         string            `json:"path,omitempty"`
	Composite    string            `json:"composite,omitempty"`
	Params       Params            `json:"params,omitempty"`
	Parts        []PartSpec        `json:"parts,omitempty"`
	Interactions []InteractionSpec `json:"interactions,omitempty"`
}

func (s BindingSpec) String() string {
	if s.Composite == "" {
		return s.Path
	}
	parts := make([]string, 0, len(s.Parts))
	for _, p := range s.Parts {
		parts = append(parts, p.Name+"="+p.Path)
	}
	return fmt.Sprintf("%s(%s)", s.Composite, strings.Join(parts, ","))
}

type binding struct {
	id        BindingID
	spec      BindingSpec
	composite Composite
	slots     []*slot
	unbound   []string
}

type partControl struct {
	name    string
	control Control
}

// slot is one resolved instance of a binding: a single control for a simple
// binding, the set of part controls for a composite.
type slot struct {
	binding   *binding
	control   Control
	parts     []partControl
	instances []*instance
}

// read resolves the slot's current value and the control that drives it.
func (s *slot) read(settings *Settings) (Value, Control) {
	if s.binding.composite == nil {
		return s.control.Value(), s.control
	}
	pv := make(PartValues, len(s.parts))
	var (
		active Control
		best   = -1.0
	)
	for _, p := range s.parts {
		v := p.control.Value()
		pv.merge(p.name, v)
		if m := v.Magnitude(); m > best {
			best, active = m, p.control
		}
	}
	return s.binding.composite.Resolve(pv, settings), active
}

func (s *slot) watches(c Control) bool {
	path := c.Path()
	if s.control != nil {
		return s.control.Path() == path
	}
	for _, p := range s.parts {
		if p.control.Path() == path {
			return true
		}
	}
	return false
}

// key describes the controls behind the slot; two slots with equal keys read
// the same controls.
func (s *slot) key() string {
	if s.control != nil {
		return s.control.Path()
	}
	var sb strings.Builder
	for _, p := range s.parts {
		sb.WriteString(p.name)
		sb.WriteByte('=')
		sb.WriteString(p.control.Path())
		sb.WriteByte(';')
	}
	return sb.String()
}

func sameControls(a, b *binding) bool {
	if len(a.slots) != len(b.slots) {
		return false
	}
	for i := range a.slots {
		if a.slots[i].key() != b.slots[i].key() {
			return false
		}
	}
	return true
}

func (b *binding) instances() []*instance {
	var out []*instance
	for _, s := range b.slots {
		out = append(out, s.instances...)
	}
	return out
}

// instance is one interaction watching one slot.
type instance struct {
	id          InstanceID
	action      *Action
	slot        *slot
	kind        string
	interaction Interaction
	inProgress  bool

	// last is the binding value this instance saw on its previous Process call.
	last Value
}

// reset drops the instance's state and its timeout.
func (in *instance) reset() {
	in.interaction.Reset()
	in.inProgress = false
	in.action.m.timers.Cancel(in)
}

// hardReset additionally forgets the last seen value, so a control still held
// when the action comes back is seen as a fresh actuation.
func (in *instance) hardReset() {
	in.reset()
	in.last = Value{}
}

func (in *instance) subPhase() string {
	if sp, ok := in.interaction.(SubPhaser); ok {
		return sp.SubPhase()
	}
	return ""
}
