package types

type ActionState string

const (
	StateUnanswered ActionState = "unanswered"
	StateInFlight   ActionState = "in_flight"
	StateAnswered   ActionState = "answered"
)

type ControlKind string

const (
	ControlButton ControlKind = "button"
	ControlInput  ControlKind = "input"
	ControlSelect ControlKind = "select"
	ControlPin    ControlKind = "pin"
	ControlRating ControlKind = "rating"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Control struct {
	Name     string      `json:"name"`
	Kind     ControlKind `json:"kind"`
	Label    string      `json:"label,omitempty"`
	Action   string      `json:"action"`
	Value    string      `json:"value,omitempty"`
	Options  []Option    `json:"options,omitempty"`
	Length   int         `json:"length,omitempty"`
	Disabled bool        `json:"disabled,omitempty"`
}

// View is the display-agnostic rendering of one block instance. Body is
// markdown; Controls is empty once the instance is answered.
type View struct {
	Key       InstanceKey `json:"key"`
	BlockType BlockType   `json:"block_type"`
	State     ActionState `json:"state"`
	Title     string      `json:"title"`
	Body      string      `json:"body,omitempty"`
	Controls  []Control   `json:"controls,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (v *View) Completed() bool {
	return v != nil && v.State == StateAnswered
}

// DisableControls marks every control disabled, used while a call is in flight.
func (v *View) DisableControls() {
	for i := range v.Controls {
		v.Controls[i].Disabled = true
	}
}
