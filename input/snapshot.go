package input

import "time"

// ActionState is a diagnostic view of one action.
type ActionState struct {
	Name      string          `json:"name"`
	Phase     Phase           `json:"phase"`
	Enabled   bool            `json:"enabled"`
	Bindings  int             `json:"bindings"`
	Unbound   []string        `json:"unbound,omitempty"`
	Instances []InstanceState `json:"instances,omitempty"`
}

// InstanceState is a diagnostic view of one interaction instance.
type InstanceState struct {
	ID          InstanceID `json:"id"`
	Binding     BindingID  `json:"binding"`
	Control     string     `json:"control"`
	Interaction string     `json:"interaction"`
	SubPhase    string     `json:"sub_phase,omitempty"`
	InProgress  bool       `json:"in_progress"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// Snapshot describes every action in authored order.
func (m *Map) Snapshot() []ActionState {
	out := make([]ActionState, 0, len(m.actions))
	for _, a := range m.actions {
		st := ActionState{
			Name:     a.name,
			Phase:    a.phase,
			Enabled:  a.active(),
			Bindings: len(a.bindings),
			Unbound:  a.Unbound(),
		}
		for _, b := range a.bindings {
			for _, s := range b.slots {
				for _, in := range s.instances {
					is := InstanceState{
						ID:          in.id,
						Binding:     b.id,
						Control:     s.key(),
						Interaction: in.kind,
						SubPhase:    in.subPhase(),
						InProgress:  in.inProgress,
					}
					if d, ok := m.timers.Deadline(in); ok {
						is.Deadline = &d
					}
					st.Instances = append(st.Instances, is)
				}
			}
		}
		out = append(out, st)
	}
	return out
}
