package input

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PhaseEvent is delivered to listeners on every phase change of an action.
type PhaseEvent struct {
	Action string
	Phase  Phase

	// Control is the control that drove the change. For composites it is the
	// most actuated part. It may be nil.
	Control Control
	Time    time.Time

	Instance    InstanceID
	Interaction string
	Binding     BindingID
}

// ControlPath returns the path of ev.Control, or "" when there is none.
func (ev PhaseEvent) ControlPath() string {
	if ev.Control == nil {
		return ""
	}
	return ev.Control.Path()
}

// Listener observes phase changes. A returned error (or a panic) is logged
// and counted by the map; it never stops delivery to other listeners.
type Listener func(PhaseEvent) error

type listenerEntry struct {
	id uint64
	fn Listener
}

type listenerSet struct {
	next    uint64
	entries []listenerEntry
}

func (s *listenerSet) add(fn Listener) func() {
	s.next++
	id := s.next
	s.entries = append(s.entries, listenerEntry{id: id, fn: fn})
	return func() {
		s.entries = slices.DeleteFunc(s.entries, func(e listenerEntry) bool { return e.id == id })
	}
}

func (s *listenerSet) snapshot() []listenerEntry { return slices.Clone(s.entries) }

// Action is a named unit with a phase, fed by its bindings.
// It is created by Map.AddAction and must only be used from the goroutine
// that drives its map.
type Action struct {
	m            *Map
	name         string
	interactions []InteractionSpec
	phase        Phase
	owner        *instance // instance that opened the current cycle
	enabled      bool
	bindings     []*binding
	listeners    listenerSet
}

func (a *Action) Name() string { return a.name }

// Phase is the current phase. Performed and Canceled last for one tick.
func (a *Action) Phase() Phase { return a.phase }

// Enabled reports whether the action itself is enabled. The owning map must
// be enabled too for it to process input.
func (a *Action) Enabled() bool { return a.enabled }

// Interactions returns the action-level interaction specs.
func (a *Action) Interactions() []InteractionSpec { return slices.Clone(a.interactions) }

// AddListener registers fn for this action's phase changes and returns a
// func that removes it.
func (a *Action) AddListener(fn Listener) (remove func()) {
	return a.listeners.add(fn)
}

// AddBinding binds a control path.
func (a *Action) AddBinding(path string, interactions ...InteractionSpec) (BindingID, error) {
	return a.Bind(BindingSpec{Path: path, Interactions: interactions})
}

// AddCompositeBinding binds a composite of the given kind.
func (a *Action) AddCompositeBinding(kind string, params Params, parts []PartSpec, interactions ...InteractionSpec) (BindingID, error) {
	return a.Bind(BindingSpec{Composite: kind, Params: params, Parts: parts, Interactions: interactions})
}

// Bind resolves spec and attaches it. Errors are reported immediately; when
// called during a tick the binding is attached once the tick completes.
func (a *Action) Bind(spec BindingSpec) (BindingID, error) {
	if a.m.closed {
		return 0, ErrClosed
	}
	b, err := a.newBinding(spec)
	if err != nil {
		return 0, fmt.Errorf("action %s: binding %s: %w", a.name, spec, err)
	}
	a.m.nextBinding++
	b.id = a.m.nextBinding
	a.m.structural(func() {
		a.bindings = append(a.bindings, b)
		a.m.log.Debug("binding added", "map", a.m.name, "action", a.name, "binding", spec.String(), "slots", len(b.slots))
		if len(b.unbound) > 0 {
			a.m.log.Debug("binding has unresolved paths", "map", a.m.name, "action", a.name, "paths", b.unbound)
		}
	})
	return b.id, nil
}

// RemoveBinding detaches a binding. Its instances are reset without signals.
func (a *Action) RemoveBinding(id BindingID) {
	a.m.structural(func() {
		i := slices.IndexFunc(a.bindings, func(b *binding) bool { return b.id == id })
		if i < 0 {
			return
		}
		for _, in := range a.bindings[i].instances() {
			in.hardReset()
		}
		a.bindings = slices.Delete(a.bindings, i, i+1)
		a.settle()
		a.m.log.Debug("binding removed", "map", a.m.name, "action", a.name, "binding", id)
	})
}

// Enable lets the action process input again.
func (a *Action) Enable() {
	a.m.structural(func() { a.enabled = true })
}

// Disable hard-resets the action: every instance is reset, timeouts are
// dropped and the phase returns to Waiting, with no signals.
func (a *Action) Disable() {
	a.m.structural(func() {
		if !a.enabled {
			return
		}
		a.enabled = false
		a.hardReset()
	})
}

// Unbound lists binding paths that resolved to no control.
func (a *Action) Unbound() []string {
	var out []string
	for _, b := range a.bindings {
		out = append(out, b.unbound...)
	}
	return out
}

func (a *Action) active() bool { return a.enabled && a.m.enabled }

func (a *Action) hardReset() {
	for _, b := range a.bindings {
		for _, in := range b.instances() {
			in.hardReset()
		}
	}
	a.phase = PhaseWaiting
	a.owner = nil
}

// settle drops a dangling Started phase once no instance is in progress.
// When the owner went away but another instance is still running, that
// instance takes the cycle over.
func (a *Action) settle() {
	if a.owner != nil && a.owner.inProgress {
		return
	}
	a.owner = nil
	for _, b := range a.bindings {
		for _, in := range b.instances() {
			if in.inProgress {
				a.owner = in
				return
			}
		}
	}
	if a.phase == PhaseStarted {
		a.phase = PhaseWaiting
	}
}

func (a *Action) replaceBinding(old, b *binding) {
	i := slices.Index(a.bindings, old)
	if i < 0 {
		return
	}
	for _, in := range old.instances() {
		in.hardReset()
	}
	a.bindings[i] = b
	a.settle()
}

// newBinding resolves spec and builds its instances without attaching it.
func (a *Action) newBinding(spec BindingSpec) (*binding, error) {
	m := a.m
	specs := append(slices.Clone(spec.Interactions), a.interactions...)
	for _, is := range specs {
		if _, err := m.registry.New(is.Type, is.Params); err != nil {
			return nil, err
		}
	}

	b := &binding{spec: spec}
	switch {
	case spec.Composite != "":
		comp, err := m.composites.New(spec.Composite, spec.Params)
		if err != nil {
			return nil, err
		}
		if len(spec.Parts) == 0 {
			return nil, configErrorf("composite %s has no parts", spec.Composite)
		}
		b.composite = comp
		allowed := comp.Parts()
		s := &slot{binding: b}
		for _, part := range spec.Parts {
			if !slices.ContainsFunc(allowed, func(n string) bool { return strings.EqualFold(n, part.Name) }) {
				return nil, configErrorf("composite %s has no part %q (parts: %s)", spec.Composite, part.Name, strings.Join(allowed, ", "))
			}
			controls := m.resolve(part.Path)
			switch len(controls) {
			case 0:
				b.unbound = append(b.unbound, part.Path)
			case 1:
				s.parts = append(s.parts, partControl{name: part.Name, control: controls[0]})
			default:
				return nil, configErrorf("composite %s part %s: path %q resolves to %d controls, want 1",
					spec.Composite, part.Name, part.Path, len(controls))
			}
		}
		if len(s.parts) > 0 {
			b.slots = []*slot{s}
		}

	case spec.Path != "":
		controls := m.resolve(spec.Path)
		if len(controls) == 0 {
			b.unbound = []string{spec.Path}
		}
		for _, c := range controls {
			b.slots = append(b.slots, &slot{binding: b, control: c})
		}

	default:
		return nil, configErrorf("binding needs a path or a composite")
	}

	if len(specs) == 0 {
		specs = []InteractionSpec{{Type: "press"}}
	}
	for _, s := range b.slots {
		for _, is := range specs {
			in, err := m.registry.New(is.Type, is.Params)
			if err != nil {
				return nil, err
			}
			m.nextInstance++
			s.instances = append(s.instances, &instance{
				id:          m.nextInstance,
				action:      a,
				slot:        s,
				kind:        strings.ToLower(is.Type),
				interaction: in,
			})
		}
	}
	return b, nil
}

// apply turns one interaction result into phase changes, listener calls and
// a timeout.
func (a *Action) apply(in *instance, res Result, ctl Control, now time.Time) error {
	switch res.Signal {
	case SignalStarted:
		in.inProgress = true
		// Started or further along this tick: the instance runs on but the
		// action phase is already decided.
		if a.phase == PhaseWaiting {
			a.owner = in
			a.setPhase(PhaseStarted, in, ctl, now)
		}

	case SignalPerformed, SignalPerformedAndReset:
		// A Performed that lands after another instance finished this tick
		// opens a cycle of its own.
		if a.phase != PhaseStarted {
			a.setPhase(PhaseStarted, in, ctl, now)
		}
		a.setPhase(PhasePerformed, in, ctl, now)
		if res.Signal == SignalPerformedAndReset {
			a.owner = nil
			in.reset()
		} else {
			a.owner = in
			in.inProgress = true
		}

	case SignalCancelled:
		// Only the owner may cancel. Other instances just start over.
		if in.inProgress && a.owner == in && (a.phase == PhaseStarted || a.phase == PhaseWaiting) {
			a.setPhase(PhaseCanceled, in, ctl, now)
		}
		if a.owner == in {
			a.owner = nil
		}
		in.reset()
	}

	if !res.SetTimeout {
		return nil
	}
	if err := a.m.timers.Arm(in, now, res.Timeout); err != nil {
		a.m.log.Error("timeout rejected", "map", a.m.name, "action", a.name, "interaction", in.kind, "timeout", res.Timeout, "error", err)
		return fmt.Errorf("action %s: %s: %w", a.name, in.kind, err)
	}
	return nil
}

func (a *Action) setPhase(p Phase, in *instance, ctl Control, now time.Time) {
	a.phase = p
	a.m.deliver(a, PhaseEvent{
		Action:      a.name,
		Phase:       p,
		Control:     ctl,
		Time:        now,
		Instance:    in.id,
		Interaction: in.kind,
		Binding:     in.slot.binding.id,
	})
}
