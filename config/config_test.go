package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"actionmap/input"
)

const sampleYAML = `
devices: [/dev/input/event3]
engine:
  update_hz: 120
  tap_time_ms: 150
logging:
  level: debug
actions:
  - name: fire
    interactions:
      - type: tap
    bindings:
      - path: virtual/fire
        interactions:
          - type: multitap
            params: { tapCount: 3, tapDelay: "0.25" }
  - name: move
    bindings:
      - composite: 2DVector
        params: { mode: digital }
        parts:
          - { name: up, path: virtual/w }
          - { name: down, path: virtual/s }
`

func TestParse_LayersOnDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Engine.UpdateHz != 120 || cfg.Engine.TapTimeMS != 150 {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.HoldTimeMS != 400 {
		t.Fatalf("hold_time_ms default lost: %d", cfg.Engine.HoldTimeMS)
	}
	if cfg.IPC.SocketPath != "/tmp/actiond.sock" {
		t.Fatalf("ipc default lost: %q", cfg.IPC.SocketPath)
	}
	if len(cfg.Actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(cfg.Actions))
	}
	mt := cfg.Actions[0].Bindings[0].Interactions[0]
	if mt.Type != "multitap" || mt.Params["tapCount"] != "3" || mt.Params["tapDelay"] != "0.25" {
		t.Fatalf("interaction = %+v", mt)
	}
	if got := cfg.UpdateInterval(); got != time.Second/120 {
		t.Fatalf("UpdateInterval = %v", got)
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("engine:\n  tap_tme_ms: 10\n"))
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParse_RejectsTrailingDocument(t *testing.T) {
	_, err := Parse([]byte("logging:\n  level: info\n---\nlogging:\n  level: debug\n"))
	if err == nil || !strings.Contains(err.Error(), "trailing document") {
		t.Fatalf("err = %v, want trailing document error", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actiond.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}

	if _, err := LoadConfigFile(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"update hz", func(c *Config) { c.Engine.UpdateHz = 0 }, "engine.update_hz"},
		{"press point", func(c *Config) { c.Engine.PressPoint = 1.5 }, "engine.press_point"},
		{"empty device", func(c *Config) { c.Devices = []string{""} }, "devices[0]"},
		{"ws path", func(c *Config) { c.PhaseWS.Path = "phases" }, "phase_ws.path"},
		{"level", func(c *Config) { c.Logging.Level = "" }, "logging.level"},
		{"action name", func(c *Config) { c.Actions = []ActionConfig{{}} }, "actions[0].name"},
		{"duplicate", func(c *Config) {
			c.Actions = []ActionConfig{{Name: "a"}, {Name: "a"}}
		}, "duplicate"},
		{"path and composite", func(c *Config) {
			c.Actions = []ActionConfig{{Name: "a", Bindings: []BindingConfig{{Path: "x", Composite: "dpad"}}}}
		}, "exactly one"},
		{"part without path", func(c *Config) {
			c.Actions = []ActionConfig{{Name: "a", Bindings: []BindingConfig{{Composite: "dpad", Parts: []input.PartSpec{{Name: "up"}}}}}}
		}, "parts[0]"},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want mention of %q", tc.name, err, tc.want)
		}
	}

	cfg := DefaultConfig()
	cfg.PhaseWS = PhaseWSConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled phase_ws should validate: %v", err)
	}
}

func TestOverrides_Order(t *testing.T) {
	cfg := DefaultConfig()

	envs, err := LoadEnvOverridesFrom(map[string]string{
		"ACTIOND_LOG_LEVEL": "warn",
		"ACTIOND_DEVICES":   "/dev/input/event1,/dev/input/event2",
		"ACTIOND_UPDATE_HZ": "30",
	})
	if err != nil {
		t.Fatalf("LoadEnvOverridesFrom: %v", err)
	}
	envs.Apply(&cfg)
	if cfg.Logging.Level != "warn" || cfg.Engine.UpdateHz != 30 || len(cfg.Devices) != 2 {
		t.Fatalf("after env: %+v", cfg)
	}
	if envs.TapTimeMS != nil {
		t.Fatalf("unset variable should stay nil")
	}

	level := "error"
	hz := 0
	FlagOverrides{LogLevel: &level, UpdateHz: &hz}.Apply(&cfg)
	if cfg.Logging.Level != "error" {
		t.Fatalf("flag did not win over env: %q", cfg.Logging.Level)
	}
	if cfg.Engine.UpdateHz != 0 {
		t.Fatalf("zero-valued flag must still apply")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("update_hz 0 must fail validation")
	}
}

func TestOverrides_BadEnvValue(t *testing.T) {
	if _, err := LoadEnvOverridesFrom(map[string]string{"ACTIOND_UPDATE_HZ": "fast"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestToSettings(t *testing.T) {
	cfg := DefaultConfig()
	if got, want := cfg.ToSettings(), input.DefaultSettings(); got != want {
		t.Fatalf("default settings round trip: got %+v want %+v", got, want)
	}
}

func TestBuildMap(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dev := input.NewVirtualDevice("virtual/")
	dev.Control("fire")
	dev.Control("w")

	m, err := cfg.BuildMap("test", dev)
	if err != nil {
		t.Fatalf("BuildMap: %v", err)
	}
	if m.Action("fire") == nil || m.Action("move") == nil {
		t.Fatalf("actions missing")
	}
	snap := m.Snapshot()
	// multitap from the binding, tap from the action
	if n := len(snap[0].Instances); n != 2 {
		t.Fatalf("fire has %d instances, want 2", n)
	}
	if snap[0].Instances[0].Interaction != "multitap" || snap[0].Instances[1].Interaction != "tap" {
		t.Fatalf("instance order = %+v", snap[0].Instances)
	}
	if u := m.Unbound()["move"]; len(u) != 1 || u[0] != "virtual/s" {
		t.Fatalf("unbound = %v", m.Unbound())
	}
}

func TestBuildMap_BadInteraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Actions = []ActionConfig{{
		Name:     "a",
		Bindings: []BindingConfig{{Path: "virtual/a", Interactions: []input.InteractionSpec{{Type: "multitap", Params: input.Params{"tapCount": "0"}}}}},
	}}
	_, err := cfg.BuildMap("test", input.NewVirtualDevice("virtual/"))
	if !errors.Is(err, input.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if !strings.Contains(err.Error(), "actions[0].bindings[0]") {
		t.Fatalf("err lacks location: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x.yaml"); got != filepath.Join(home, "x.yaml") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/etc/x.yaml"); got != "/etc/x.yaml" {
		t.Fatalf("ExpandPath = %q", got)
	}
}
