package phasews

import (
	"encoding/json"
	"time"

	"actionmap/input"
)

// Message types sent to clients.
const (
	TypeStateInit = "state_init"
	TypePhase     = "phase"
)

// Envelope is the wire format for every frame: {type, ts, data}.
type Envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PhaseData is the payload of a "phase" frame.
type PhaseData struct {
	Action      string           `json:"action"`
	Phase       input.Phase      `json:"phase"`
	Control     string           `json:"control,omitempty"`
	Interaction string           `json:"interaction,omitempty"`
	Instance    input.InstanceID `json:"instance,omitempty"`
	Binding     input.BindingID  `json:"binding,omitempty"`
}

// StateInitData is the payload of the "state_init" frame sent on connect.
type StateInitData struct {
	Actions []input.ActionState `json:"actions"`
}

func encode(typ string, ts time.Time, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(Envelope{Type: typ, Ts: &ts, Data: raw})
}

// EncodePhase serializes a phase event into a "phase" frame.
func EncodePhase(ev input.PhaseEvent) ([]byte, error) {
	return encode(TypePhase, ev.Time, PhaseData{
		Action:      ev.Action,
		Phase:       ev.Phase,
		Control:     ev.ControlPath(),
		Interaction: ev.Interaction,
		Instance:    ev.Instance,
		Binding:     ev.Binding,
	})
}

// EncodeStateInit serializes an action snapshot into a "state_init" frame.
func EncodeStateInit(actions []input.ActionState) ([]byte, error) {
	if actions == nil {
		actions = []input.ActionState{}
	}
	return encode(TypeStateInit, time.Time{}, StateInitData{Actions: actions})
}
