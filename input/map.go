package input

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed map.
	ErrClosed = errors.New("input: map is closed")

	errReentrantTick = errors.New("input: map ticked from inside its own tick")
)

// Option configures a Map.
type Option func(*Map)

// WithLogger sets the logger used for listener failures, rejected timeouts
// and structural changes. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Map) { m.log = l }
}

// WithRegistry sets the interaction registry.
func WithRegistry(r *Registry) Option {
	return func(m *Map) { m.registry = r }
}

// WithCompositeRegistry sets the composite registry.
func WithCompositeRegistry(r *CompositeRegistry) Option {
	return func(m *Map) { m.composites = r }
}

// WithSettings sets the initial defaults.
func WithSettings(s Settings) Option {
	return func(m *Map) { m.settings = s }
}

// WithResolver sets the resolver binding paths are looked up in.
func WithResolver(r Resolver) Option {
	return func(m *Map) { m.resolver = r }
}

// Map owns a set of actions, their interaction instances and the timeout
// scheduler, and advances them one tick at a time.
//
// A Map is not safe for concurrent use: a single goroutine drives it. Calls
// made from listeners during a tick are allowed; structural ones (enable,
// disable, binding changes, settings, close) take effect once the tick's
// signal delivery has completed.
type Map struct {
	name       string
	log        *slog.Logger
	registry   *Registry
	composites *CompositeRegistry
	resolver   Resolver
	settings   Settings

	actions   []*Action
	byName    map[string]*Action
	listeners listenerSet
	timers    *Scheduler[*instance]

	nextBinding  BindingID
	nextInstance InstanceID

	enabled  bool
	closed   bool
	inTick   bool
	deferred []func()

	failures atomic.Uint64
}

// NewMap creates an enabled, empty map.
func NewMap(name string, opts ...Option) (*Map, error) {
	m := &Map{
		name:     name,
		settings: DefaultSettings(),
		byName:   make(map[string]*Action),
		timers:   NewScheduler[*instance](),
		enabled:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.composites == nil {
		m.composites = NewCompositeRegistry()
	}
	if err := m.settings.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) Name() string { return m.name }

// AddAction creates an action with optional action-level interactions.
// Interaction specs are validated here.
func (m *Map) AddAction(name string, interactions ...InteractionSpec) (*Action, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, configErrorf("action name must not be empty")
	}
	if _, dup := m.byName[name]; dup {
		return nil, configErrorf("duplicate action %q", name)
	}
	for _, is := range interactions {
		if _, err := m.registry.New(is.Type, is.Params); err != nil {
			return nil, fmt.Errorf("action %s: %w", name, err)
		}
	}
	a := &Action{
		m:            m,
		name:         name,
		interactions: slices.Clone(interactions),
		enabled:      true,
	}
	m.actions = append(m.actions, a)
	m.byName[name] = a
	return a, nil
}

// Action returns the named action, or nil.
func (m *Map) Action(name string) *Action { return m.byName[name] }

// Actions returns the actions in authored order.
func (m *Map) Actions() []*Action { return slices.Clone(m.actions) }

// AddListener registers fn for phase changes of every action in the map.
// Action listeners run before map listeners.
func (m *Map) AddListener(fn Listener) (remove func()) {
	return m.listeners.add(fn)
}

func (m *Map) Enabled() bool { return m.enabled }

func (m *Map) Enable() {
	m.structural(func() { m.enabled = true })
}

// Disable hard-resets every action in the map. See Action.Disable.
func (m *Map) Disable() {
	m.structural(func() {
		if !m.enabled {
			return
		}
		m.enabled = false
		for _, a := range m.actions {
			a.hardReset()
		}
		m.log.Debug("map disabled", "map", m.name)
	})
}

// Settings returns the defaults the next tick will use.
func (m *Map) Settings() Settings { return m.settings }

// SetSettings replaces the defaults. Ticks already running keep their snapshot.
func (m *Map) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.structural(func() { m.settings = s })
	return nil
}

// Update advances every enabled action at time now. It is the polling entry
// point: each instance whose binding value changed since it last looked, or
// whose timer is due, is processed once.
func (m *Map) Update(now time.Time) error {
	return m.tick(now, nil)
}

// HandleControlChange is the event-driven entry point: it fires due timers
// and processes the bindings that read ctl.
func (m *Map) HandleControlChange(ctl Control, now time.Time) error {
	if ctl == nil {
		return m.tick(now, nil)
	}
	return m.tick(now, ctl)
}

// Refresh re-resolves every binding. Bindings whose controls changed get
// fresh instances; the old ones are reset without signals.
func (m *Map) Refresh() error {
	if m.closed {
		return ErrClosed
	}
	type swap struct {
		action   *Action
		old, new *binding
	}
	var (
		swaps []swap
		errs  []error
	)
	for _, a := range m.actions {
		for _, b := range a.bindings {
			nb, err := a.newBinding(b.spec)
			if err != nil {
				errs = append(errs, fmt.Errorf("action %s: binding %s: %w", a.name, b.spec, err))
				continue
			}
			if sameControls(b, nb) {
				continue
			}
			nb.id = b.id
			swaps = append(swaps, swap{action: a, old: b, new: nb})
		}
	}
	m.structural(func() {
		for _, s := range swaps {
			s.action.replaceBinding(s.old, s.new)
		}
		if len(swaps) > 0 {
			m.log.Debug("bindings re-resolved", "map", m.name, "changed", len(swaps))
		}
	})
	return errors.Join(errs...)
}

// Unbound lists, per action, the binding paths that resolved to no control.
func (m *Map) Unbound() map[string][]string {
	out := make(map[string][]string)
	for _, a := range m.actions {
		if u := a.Unbound(); len(u) > 0 {
			out[a.name] = u
		}
	}
	return out
}

// ListenerFailures counts listener errors and panics since the map was created.
// It is safe to call from any goroutine.
func (m *Map) ListenerFailures() uint64 { return m.failures.Load() }

// NextDeadline returns the earliest armed timeout.
func (m *Map) NextDeadline() (time.Time, bool) { return m.timers.Next() }

// Close resets everything and releases the actions.
func (m *Map) Close() {
	m.structural(func() {
		if m.closed {
			return
		}
		for _, a := range m.actions {
			a.hardReset()
		}
		m.actions = nil
		m.byName = make(map[string]*Action)
		m.closed = true
	})
}

func (m *Map) resolve(path string) []Control {
	if m.resolver == nil {
		return nil
	}
	return m.resolver.Resolve(path)
}

func (m *Map) structural(op func()) {
	if m.inTick {
		m.deferred = append(m.deferred, op)
		return
	}
	op()
}

func (m *Map) drain() {
	for len(m.deferred) > 0 {
		ops := m.deferred
		m.deferred = nil
		for _, op := range ops {
			op()
		}
	}
}

func (m *Map) tick(now time.Time, changed Control) error {
	if m.closed {
		return ErrClosed
	}
	if m.inTick {
		return errReentrantTick
	}
	var err error
	func() {
		m.inTick = true
		defer func() { m.inTick = false }()
		err = m.run(now, changed)
	}()
	m.drain()
	return err
}

func (m *Map) run(now time.Time, changed Control) error {
	settings := m.settings
	var errs []error

	for _, a := range m.actions {
		if a.phase == PhasePerformed || a.phase == PhaseCanceled {
			a.phase = PhaseWaiting
		}
	}

	// Due timers go first. The instance sees the current value, so a change
	// that arrived in the same tick is consumed by the expiry call.
	for _, in := range m.timers.Expired(now) {
		if !in.action.active() {
			continue
		}
		v, ctl := in.slot.read(&settings)
		if err := m.process(in, &settings, now, v, ctl, true); err != nil {
			errs = append(errs, err)
		}
	}

	for _, a := range m.actions {
		if !a.active() {
			continue
		}
		for _, b := range a.bindings {
			for _, s := range b.slots {
				if changed != nil && !s.watches(changed) {
					continue
				}
				v, ctl := s.read(&settings)
				for _, in := range s.instances {
					if in.last.Equal(v) {
						continue
					}
					if err := m.process(in, &settings, now, v, ctl, false); err != nil {
						errs = append(errs, err)
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Map) process(in *instance, settings *Settings, now time.Time, v Value, ctl Control, expired bool) error {
	ctx := &Context{
		now:      now,
		value:    v,
		previous: in.last,
		control:  ctl,
		expired:  expired,
		settings: settings,
	}
	in.last = v
	res := in.interaction.Process(ctx)
	return in.action.apply(in, res, ctl, now)
}

func (m *Map) deliver(a *Action, ev PhaseEvent) {
	for _, l := range a.listeners.snapshot() {
		m.call(l.fn, ev)
	}
	for _, l := range m.listeners.snapshot() {
		m.call(l.fn, ev)
	}
}

func (m *Map) call(fn Listener, ev PhaseEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.listenerFailed(ev, fmt.Errorf("listener panic: %v", r))
		}
	}()
	if err := fn(ev); err != nil {
		m.listenerFailed(ev, err)
	}
}

func (m *Map) listenerFailed(ev PhaseEvent, err error) {
	m.failures.Add(1)
	m.log.Warn("listener failed", "map", m.name, "action", ev.Action, "phase", ev.Phase.String(), "error", err)
}
