package input

import (
	"sort"
	"strings"
	"sync"
)

// Control is one sampled device control. Implementations live with the host
// (evdev, virtual controls, test doubles); the engine only reads them.
type Control interface {
	Path() string
	Value() Value
	PreviousValue() Value
	IsActuated(threshold float64) bool
}

// Resolver turns a binding path into the concrete controls it matches.
// Path syntax belongs to the resolver; the engine treats paths as opaque.
type Resolver interface {
	Resolve(path string) []Control
}

// Resolvers chains resolvers. Results from all of them are concatenated in order.
type Resolvers []Resolver

func (rs Resolvers) Resolve(path string) []Control {
	var out []Control
	for _, r := range rs {
		if r == nil {
			continue
		}
		out = append(out, r.Resolve(path)...)
	}
	return out
}

// VirtualControl is a settable in-memory control.
type VirtualControl struct {
	mu   sync.Mutex
	path string
	cur  Value
	prev Value
}

// NewVirtualControl creates a control at rest.
func NewVirtualControl(path string) *VirtualControl {
	return &VirtualControl{path: path}
}

func (c *VirtualControl) Path() string { return c.path }

func (c *VirtualControl) Value() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *VirtualControl) PreviousValue() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}

func (c *VirtualControl) IsActuated(threshold float64) bool {
	return c.Value().Actuated(threshold)
}

// Set stores a new value; the old one becomes the previous value.
func (c *VirtualControl) Set(v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prev = c.cur
	c.cur = v
}

// SetScalar is Set(Scalar(v)).
func (c *VirtualControl) SetScalar(v float64) { c.Set(Scalar(v)) }

// VirtualDevice is a Resolver over virtual controls.
//
// Paths are matched exactly, except that a trailing "*" matches any suffix
// (e.g. "pad/*" resolves every control under "pad/").
type VirtualDevice struct {
	mu       sync.Mutex
	prefix   string
	controls map[string]*VirtualControl
}

// NewVirtualDevice creates a device whose controls are addressed as prefix + name.
// With an empty prefix, names are used as-is.
func NewVirtualDevice(prefix string) *VirtualDevice {
	return &VirtualDevice{
		prefix:   prefix,
		controls: make(map[string]*VirtualControl),
	}
}

// Control returns the control for path, creating it on first use.
// Paths without the device prefix get it prepended.
func (d *VirtualDevice) Control(path string) *VirtualControl {
	if d.prefix != "" && !strings.HasPrefix(path, d.prefix) {
		path = d.prefix + path
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.controls[path]
	if !ok {
		c = NewVirtualControl(path)
		d.controls[path] = c
	}
	return c
}

// Lookup returns an existing control without creating it.
func (d *VirtualDevice) Lookup(path string) (*VirtualControl, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.controls[path]
	return c, ok
}

func (d *VirtualDevice) Resolve(path string) []Control {
	d.mu.Lock()
	defer d.mu.Unlock()

	if strings.HasSuffix(path, "*") {
		stem := strings.TrimSuffix(path, "*")
		var keys []string
		for k := range d.controls {
			if strings.HasPrefix(k, stem) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out := make([]Control, 0, len(keys))
		for _, k := range keys {
			out = append(out, d.controls[k])
		}
		return out
	}

	if c, ok := d.controls[path]; ok {
		return []Control{c}
	}
	return nil
}
