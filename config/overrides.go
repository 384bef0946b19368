package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are read from ACTIOND_* environment variables. Unset
// variables leave their field nil.
type EnvOverrides struct {
	Devices       []string `env:"ACTIOND_DEVICES"        envSeparator:","`
	UpdateHz      *int     `env:"ACTIOND_UPDATE_HZ"`
	TapTimeMS     *int     `env:"ACTIOND_TAP_TIME_MS"`
	HoldTimeMS    *int     `env:"ACTIOND_HOLD_TIME_MS"`
	PressPoint    *float64 `env:"ACTIOND_PRESS_POINT"`
	IPCSocketPath *string  `env:"ACTIOND_IPC_SOCKET"`
	WSListen      *string  `env:"ACTIOND_WS_LISTEN"`
	LogLevel      *string  `env:"ACTIOND_LOG_LEVEL"`
}

// LoadEnvOverrides parses the process environment.
func LoadEnvOverrides() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// LoadEnvOverridesFrom parses the given variables instead of the process environment.
func LoadEnvOverridesFrom(vars map[string]string) (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: vars}); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Apply merges the overrides into cfg.
func (o EnvOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if len(o.Devices) > 0 {
		cfg.Devices = append([]string(nil), o.Devices...)
	}
	if o.UpdateHz != nil {
		cfg.Engine.UpdateHz = *o.UpdateHz
	}
	if o.TapTimeMS != nil {
		cfg.Engine.TapTimeMS = *o.TapTimeMS
	}
	if o.HoldTimeMS != nil {
		cfg.Engine.HoldTimeMS = *o.HoldTimeMS
	}
	if o.PressPoint != nil {
		cfg.Engine.PressPoint = *o.PressPoint
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSListen != nil {
		cfg.PhaseWS.Listen = *o.WSListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// FlagOverrides are applied last. main decides which flags exist; each field
// is applied only when its pointer is non-nil, even for zero values.
type FlagOverrides struct {
	Device *string

	UpdateHz         *int
	TapTimeMS        *int
	SlowTapTimeMS    *int
	HoldTimeMS       *int
	MultiTapDelayMS  *int
	PressPoint       *float64
	ReleaseThreshold *float64

	IPCSocketPath *string
	WSListen      *string
	WSPath        *string

	LogLevel *string
}

// Apply merges the overrides into cfg. A device flag replaces the device list.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Devices = []string{*o.Device}
	}

	if o.UpdateHz != nil {
		cfg.Engine.UpdateHz = *o.UpdateHz
	}
	if o.TapTimeMS != nil {
		cfg.Engine.TapTimeMS = *o.TapTimeMS
	}
	if o.SlowTapTimeMS != nil {
		cfg.Engine.SlowTapTimeMS = *o.SlowTapTimeMS
	}
	if o.HoldTimeMS != nil {
		cfg.Engine.HoldTimeMS = *o.HoldTimeMS
	}
	if o.MultiTapDelayMS != nil {
		cfg.Engine.MultiTapDelayMS = *o.MultiTapDelayMS
	}
	if o.PressPoint != nil {
		cfg.Engine.PressPoint = *o.PressPoint
	}
	if o.ReleaseThreshold != nil {
		cfg.Engine.ReleaseThreshold = *o.ReleaseThreshold
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSListen != nil {
		cfg.PhaseWS.Listen = *o.WSListen
	}
	if o.WSPath != nil {
		cfg.PhaseWS.Path = *o.WSPath
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}
