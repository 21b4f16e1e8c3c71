package model

type TemporalState string

const (
	ActiveIncident TemporalState = "ACTIVE_INCIDENT"
	PostMortem     TemporalState = "POST_MORTEM"
)

// Urgency is ordinal; higher is more urgent.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyHigh:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

// ParseUrgency maps an external severity signal onto the ordinal scale.
// Unknown signals default to MEDIUM.
func ParseUrgency(s string) Urgency {
	switch s {
	case "LOW", "low", "minor":
		return UrgencyLow
	case "HIGH", "high", "critical", "sev1":
		return UrgencyHigh
	default:
		return UrgencyMedium
	}
}

// PathSelection is the derived strategy directive for the next action. It is
// re-evaluated every turn and cached on the case, never independently
// persisted.
type PathSelection struct {
	Temporal TemporalState `json:"temporal_state"`
	Urgency  Urgency       `json:"urgency"`
	Strategy string        `json:"strategy"`
}
