package evdev

import (
	"sort"
	"strings"
	"sync"

	"actionmap/input"
)

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// normalize maps a raw axis value to [-1, 1] for centred axes and to [0, 1]
// for axes whose range starts at zero or above. Values inside the flat zone
// of a centred axis read as zero.
func (a AbsInfo) normalize(raw int32) float64 {
	if a.Maximum <= a.Minimum {
		return float64(raw)
	}
	if a.Minimum >= 0 {
		v := float64(raw-a.Minimum) / float64(a.Maximum-a.Minimum)
		return clamp(v, 0, 1)
	}
	mid := (float64(a.Minimum) + float64(a.Maximum)) / 2
	half := (float64(a.Maximum) - float64(a.Minimum)) / 2
	d := float64(raw) - mid
	if a.Flat > 0 && d < float64(a.Flat) && d > -float64(a.Flat) {
		return 0
	}
	return clamp(d/half, -1, 1)
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

// Device exposes the controls of one evdev device as input controls.
//
// Paths are "key/NAME", "abs/NAME" and "rel/NAME" (numeric codes accepted),
// optionally behind the device prefix. A path with a trailing "*" matches
// the controls the device has already created. Controls are created on first
// resolution, so bindings can name keys the device has not reported yet.
type Device struct {
	mu       sync.Mutex
	name     string
	prefix   string
	controls map[string]*input.VirtualControl
	abs      map[uint16]AbsInfo
	rel      map[string]*input.VirtualControl
}

// NewDevice creates a device. name is informational; prefix is prepended to
// every control path it serves.
func NewDevice(name, prefix string) *Device {
	return &Device{
		name:     name,
		prefix:   prefix,
		controls: make(map[string]*input.VirtualControl),
		abs:      make(map[uint16]AbsInfo),
		rel:      make(map[string]*input.VirtualControl),
	}
}

func (d *Device) Name() string { return d.name }

// SetAbsInfo records the range of an absolute axis.
func (d *Device) SetAbsInfo(code uint16, info AbsInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.abs[code] = info
}

// canonical turns a user path into the device's own path for the control.
func (d *Device) canonical(path string) (string, bool) {
	rest := path
	if d.prefix != "" {
		var ok bool
		rest, ok = strings.CutPrefix(path, d.prefix)
		if !ok {
			return "", false
		}
	}
	evType, code, err := ParsePath(rest)
	if err != nil {
		return "", false
	}
	p, _ := ControlPath(evType, code)
	return d.prefix + p, true
}

func (d *Device) control(path string) *input.VirtualControl {
	c, ok := d.controls[path]
	if !ok {
		c = input.NewVirtualControl(path)
		d.controls[path] = c
	}
	return c
}

func (d *Device) Resolve(path string) []input.Control {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stem, ok := strings.CutSuffix(path, "*"); ok {
		var keys []string
		for k := range d.controls {
			if strings.HasPrefix(k, stem) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out := make([]input.Control, 0, len(keys))
		for _, k := range keys {
			out = append(out, d.controls[k])
		}
		return out
	}

	p, ok := d.canonical(path)
	if !ok {
		return nil
	}
	return []input.Control{d.control(p)}
}

// Apply folds one event into the device's controls and returns the control
// whose value changed. Key repeats, sync events and unknown types change nothing.
func (d *Device) Apply(ev Event) (input.Control, bool) {
	path, ok := ControlPath(ev.Type, ev.Code)
	if !ok {
		return nil, false
	}
	path = d.prefix + path

	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.control(path)

	var v float64
	switch ev.Type {
	case EV_KEY:
		switch ev.Value {
		case evValueRelease:
			v = 0
		case evValuePress:
			v = 1
		default:
			return nil, false
		}
	case EV_ABS:
		info, ok := d.abs[ev.Code]
		if !ok {
			v = float64(ev.Value)
		} else {
			v = info.normalize(ev.Value)
		}
	case EV_REL:
		// relative motion accumulates until ResetRelative
		v = c.Value().X + float64(ev.Value)
		d.rel[path] = c
	}

	if c.Value().Equal(input.Scalar(v)) {
		return nil, false
	}
	c.SetScalar(v)
	return c, true
}

// ResetRelative zeroes relative axes that moved since the last call, and
// returns them. The host calls it after each engine tick.
func (d *Device) ResetRelative() []input.Control {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []input.Control
	for path, c := range d.rel {
		if !c.Value().IsZero() {
			c.SetScalar(0)
			out = append(out, c)
		}
		delete(d.rel, path)
	}
	return out
}
