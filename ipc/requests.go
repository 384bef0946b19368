package ipc

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Requests
// ============================================================================
// Requests are what IPC clients ask the daemon to do. The daemon loop is the
// only place they are applied, so the engine stays single-goroutine.
// ============================================================================

// Request is a marker interface for all IPC requests.
type Request interface {
	requestMarker()
}

// SetControl sets a virtual control's value. Paths without the daemon's
// virtual prefix get it prepended.
type SetControl struct {
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y,omitempty"`
}

// EnableAction enables a single action by name.
type EnableAction struct {
	Name string `json:"name"`
}

// DisableAction hard-resets and disables a single action.
type DisableAction struct {
	Name string `json:"name"`
}

// EnableMap and DisableMap switch the whole action map.
type EnableMap struct{}
type DisableMap struct{}

// SetSettings changes engine defaults. Nil fields keep their current value.
type SetSettings struct {
	TapTimeMS        *int     `json:"tap_time_ms,omitempty"`
	SlowTapTimeMS    *int     `json:"slow_tap_time_ms,omitempty"`
	HoldTimeMS       *int     `json:"hold_time_ms,omitempty"`
	MultiTapDelayMS  *int     `json:"multi_tap_delay_ms,omitempty"`
	PressPoint       *float64 `json:"press_point,omitempty"`
	ReleaseThreshold *float64 `json:"release_threshold,omitempty"`
}

// GetState asks for a snapshot of every action.
type GetState struct{}

func (SetControl) requestMarker()    {}
func (EnableAction) requestMarker()  {}
func (DisableAction) requestMarker() {}
func (EnableMap) requestMarker()     {}
func (DisableMap) requestMarker()    {}
func (SetSettings) requestMarker()   {}
func (GetState) requestMarker()      {}

// Envelope wraps a request with a type discriminator for JSON marshaling.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeSetControl    = "set_control"
	TypeEnableAction  = "enable_action"
	TypeDisableAction = "disable_action"
	TypeEnableMap     = "enable_map"
	TypeDisableMap    = "disable_map"
	TypeSetSettings   = "set_settings"
	TypeGetState      = "get_state"
)

func decodeData[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalRequest decodes one envelope into a concrete Request.
func UnmarshalRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case TypeSetControl:
		r, err := decodeData[SetControl](env)
		if err != nil {
			return nil, err
		}
		if r.Path == "" {
			return nil, fmt.Errorf("%s: path is required", env.Type)
		}
		return r, nil

	case TypeEnableAction:
		r, err := decodeData[EnableAction](env)
		if err != nil {
			return nil, err
		}
		if r.Name == "" {
			return nil, fmt.Errorf("%s: name is required", env.Type)
		}
		return r, nil

	case TypeDisableAction:
		r, err := decodeData[DisableAction](env)
		if err != nil {
			return nil, err
		}
		if r.Name == "" {
			return nil, fmt.Errorf("%s: name is required", env.Type)
		}
		return r, nil

	case TypeSetSettings:
		r, err := decodeData[SetSettings](env)
		if err != nil {
			return nil, err
		}
		return r, nil

	case TypeEnableMap:
		return EnableMap{}, nil
	case TypeDisableMap:
		return DisableMap{}, nil
	case TypeGetState:
		return GetState{}, nil

	default:
		return nil, fmt.Errorf("unknown request type: %q", env.Type)
	}
}

// MarshalRequest encodes a Request into an envelope.
func MarshalRequest(r Request) ([]byte, error) {
	var env Envelope
	var payload any

	switch r := r.(type) {
	case SetControl:
		env.Type, payload = TypeSetControl, r
	case EnableAction:
		env.Type, payload = TypeEnableAction, r
	case DisableAction:
		env.Type, payload = TypeDisableAction, r
	case SetSettings:
		env.Type, payload = TypeSetSettings, r
	case EnableMap:
		env.Type = TypeEnableMap
	case DisableMap:
		env.Type = TypeDisableMap
	case GetState:
		env.Type = TypeGetState
	default:
		return nil, fmt.Errorf("unsupported request type: %T", r)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
