package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"actionmap/input"
)

// Config is the top-level YAML configuration for the actiond daemon.
//
// Defaults, file, environment and flags are layered in that order; Validate
// runs last so the rest of the code can assume a well-formed config.
type Config struct {
	// Input devices to read (evdev nodes). May be empty when only virtual
	// controls driven over IPC are used.
	Devices []string `yaml:"devices,omitempty"`

	Engine  EngineConfig  `yaml:"engine"`
	IPC     IPCConfig     `yaml:"ipc"`
	PhaseWS PhaseWSConfig `yaml:"phase_ws"`
	Logging LoggingConfig `yaml:"logging"`

	Actions []ActionConfig `yaml:"actions"`
}

// EngineConfig holds the tick rate and the interaction defaults.
type EngineConfig struct {
	UpdateHz         int     `yaml:"update_hz"`
	TapTimeMS        int     `yaml:"tap_time_ms"`
	SlowTapTimeMS    int     `yaml:"slow_tap_time_ms"`
	HoldTimeMS       int     `yaml:"hold_time_ms"`
	MultiTapDelayMS  int     `yaml:"multi_tap_delay_ms"`
	PressPoint       float64 `yaml:"press_point"`
	ReleaseThreshold float64 `yaml:"release_threshold"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`

	// VirtualPrefix is the path prefix of controls set over IPC.
	VirtualPrefix string `yaml:"virtual_prefix"`
}

// PhaseWSConfig configures the websocket phase feed. An empty Listen disables it.
type PhaseWSConfig struct {
	Listen       string `yaml:"listen"`
	Path         string `yaml:"path"`
	SendBuf      int    `yaml:"send_buf"`
	BroadcastBuf int    `yaml:"broadcast_buf"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ActionConfig is one authored action.
type ActionConfig struct {
	Name         string                  `yaml:"name"`
	Interactions []input.InteractionSpec `yaml:"interactions,omitempty"`
	Bindings     []BindingConfig         `yaml:"bindings"`
}

// BindingConfig is either a plain control path or a composite with parts.
type BindingConfig struct {
	Path         string                  `yaml:"path,omitempty"`
	Composite    string                  `yaml:"composite,omitempty"`
	Params       input.Params            `yaml:"params,omitempty"`
	Parts        []input.PartSpec        `yaml:"parts,omitempty"`
	Interactions []input.InteractionSpec `yaml:"interactions,omitempty"`
}

// Spec converts the binding to the engine's form.
func (b BindingConfig) Spec() input.BindingSpec {
	return input.BindingSpec{
		Path:         b.Path,
		Composite:    b.Composite,
		Params:       b.Params,
		Parts:        b.Parts,
		Interactions: b.Interactions,
	}
}

// DefaultConfig returns a fully-populated Config with defaults and no actions.
func DefaultConfig() Config {
	s := input.DefaultSettings()
	return Config{
		Engine: EngineConfig{
			UpdateHz:         defaultUpdateHz,
			TapTimeMS:        int(s.DefaultTapTime / time.Millisecond),
			SlowTapTimeMS:    int(s.DefaultSlowTapTime / time.Millisecond),
			HoldTimeMS:       int(s.DefaultHoldTime / time.Millisecond),
			MultiTapDelayMS:  int(s.MultiTapDelayTime / time.Millisecond),
			PressPoint:       s.DefaultButtonPressPoint,
			ReleaseThreshold: s.ButtonReleaseThreshold,
		},
		IPC: IPCConfig{
			SocketPath:    "/tmp/actiond.sock",
			VirtualPrefix: "virtual/",
		},
		PhaseWS: PhaseWSConfig{
			Listen:       "127.0.0.1:3002",
			Path:         "/phases",
			SendBuf:      32,
			BroadcastBuf: 128,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

const defaultUpdateHz = 60

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected, as is anything after the first document.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML config bytes on top of the defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
// Interaction and composite parameters are checked when the map is built.
func (c *Config) Validate() error {
	for i, dev := range c.Devices {
		if dev == "" {
			return fmt.Errorf("devices[%d] is empty", i)
		}
	}

	e := c.Engine
	if e.UpdateHz <= 0 || e.UpdateHz > 1000 {
		return errors.New("engine.update_hz must be between 1 and 1000")
	}
	if e.TapTimeMS <= 0 {
		return errors.New("engine.tap_time_ms must be > 0")
	}
	if e.SlowTapTimeMS <= 0 {
		return errors.New("engine.slow_tap_time_ms must be > 0")
	}
	if e.HoldTimeMS <= 0 {
		return errors.New("engine.hold_time_ms must be > 0")
	}
	if e.MultiTapDelayMS <= 0 {
		return errors.New("engine.multi_tap_delay_ms must be > 0")
	}
	if e.PressPoint <= 0 || e.PressPoint > 1 {
		return errors.New("engine.press_point must be in (0, 1]")
	}
	if e.ReleaseThreshold <= 0 || e.ReleaseThreshold > 1 {
		return errors.New("engine.release_threshold must be in (0, 1]")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.IPC.VirtualPrefix == "" {
		return errors.New("ipc.virtual_prefix must not be empty")
	}

	if c.PhaseWS.Listen != "" {
		if c.PhaseWS.Path == "" || c.PhaseWS.Path[0] != '/' {
			return errors.New("phase_ws.path must start with /")
		}
		if c.PhaseWS.SendBuf <= 0 {
			return errors.New("phase_ws.send_buf must be > 0")
		}
		if c.PhaseWS.BroadcastBuf <= 0 {
			return errors.New("phase_ws.broadcast_buf must be > 0")
		}
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	seen := make(map[string]bool, len(c.Actions))
	for i, a := range c.Actions {
		if a.Name == "" {
			return fmt.Errorf("actions[%d].name must not be empty", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("actions[%d]: duplicate action name %q", i, a.Name)
		}
		seen[a.Name] = true
		for j, is := range a.Interactions {
			if is.Type == "" {
				return fmt.Errorf("actions[%d].interactions[%d].type must not be empty", i, j)
			}
		}
		for j, b := range a.Bindings {
			if (b.Path == "") == (b.Composite == "") {
				return fmt.Errorf("actions[%d].bindings[%d]: exactly one of path or composite must be set", i, j)
			}
			if b.Path != "" && len(b.Parts) > 0 {
				return fmt.Errorf("actions[%d].bindings[%d]: parts are only valid on composites", i, j)
			}
			for k, p := range b.Parts {
				if p.Name == "" || p.Path == "" {
					return fmt.Errorf("actions[%d].bindings[%d].parts[%d]: name and path are required", i, j, k)
				}
			}
			for k, is := range b.Interactions {
				if is.Type == "" {
					return fmt.Errorf("actions[%d].bindings[%d].interactions[%d].type must not be empty", i, j, k)
				}
			}
		}
	}
	return nil
}

// ToSettings converts the engine section into interaction defaults.
func (c *Config) ToSettings() input.Settings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return input.Settings{
		DefaultTapTime:          ms(c.Engine.TapTimeMS),
		DefaultSlowTapTime:      ms(c.Engine.SlowTapTimeMS),
		DefaultHoldTime:         ms(c.Engine.HoldTimeMS),
		MultiTapDelayTime:       ms(c.Engine.MultiTapDelayMS),
		DefaultButtonPressPoint: c.Engine.PressPoint,
		ButtonReleaseThreshold:  c.Engine.ReleaseThreshold,
	}
}

// UpdateInterval is the engine tick period.
func (c *Config) UpdateInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.UpdateHz)
}

// BuildMap creates a map named name from the configured actions, resolving
// binding paths through resolver. Extra options are applied after the
// config's settings.
func (c *Config) BuildMap(name string, resolver input.Resolver, opts ...input.Option) (*input.Map, error) {
	all := append([]input.Option{input.WithSettings(c.ToSettings()), input.WithResolver(resolver)}, opts...)
	m, err := input.NewMap(name, all...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	for i, ac := range c.Actions {
		a, err := m.AddAction(ac.Name, ac.Interactions...)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		for j, bc := range ac.Bindings {
			if _, err := a.Bind(bc.Spec()); err != nil {
				return nil, fmt.Errorf("actions[%d].bindings[%d]: %w", i, j, err)
			}
		}
	}
	return m, nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
