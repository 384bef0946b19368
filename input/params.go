package input

import (
	"strconv"
	"strings"
	"time"
)

// Params is the flat key/value parameter set attached to an interaction or a
// composite by its author (e.g. tapCount=2, pressPoint=0.3). Keys are matched
// case-insensitively.
type Params map[string]string

func (p Params) lookup(key string) (string, bool) {
	if v, ok := p[key]; ok {
		return strings.TrimSpace(v), true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// String returns the raw value for key.
func (p Params) String(key string) (string, bool) {
	return p.lookup(key)
}

// Float parses key as a float. Missing keys return ok=false and no error.
func (p Params) Float(key string) (float64, bool, error) {
	s, ok := p.lookup(key)
	if !ok || s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, configErrorf("parameter %s=%q is not a number", key, s)
	}
	return f, true, nil
}

// Int parses key as an integer.
func (p Params) Int(key string) (int, bool, error) {
	s, ok := p.lookup(key)
	if !ok || s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, configErrorf("parameter %s=%q is not an integer", key, s)
	}
	return n, true, nil
}

// Duration parses key either as seconds ("0.2") or as a Go duration ("200ms").
// Negative durations are configuration errors.
func (p Params) Duration(key string) (time.Duration, bool, error) {
	s, ok := p.lookup(key)
	if !ok || s == "" {
		return 0, false, nil
	}
	var d time.Duration
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(f * float64(time.Second))
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, false, configErrorf("parameter %s=%q is not a duration", key, s)
		}
	}
	if d < 0 {
		return 0, false, configErrorf("parameter %s must not be negative (got %s)", key, s)
	}
	return d, true, nil
}

// pressPoint reads the optional pressPoint parameter; 0 means "use the default".
func (p Params) pressPoint() (float64, error) {
	v, ok, err := p.Float("pressPoint")
	if err != nil || !ok {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, configErrorf("pressPoint must be in [0, 1] (got %v)", v)
	}
	return v, nil
}
