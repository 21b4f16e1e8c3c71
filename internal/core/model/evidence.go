package model

import "time"

type EvidenceDirection string

const (
	DirectionRequested EvidenceDirection = "REQUESTED"
	DirectionProvided  EvidenceDirection = "PROVIDED"
)

type EvidenceStatus string

const (
	EvidenceRequested EvidenceStatus = "REQUESTED"
	EvidenceReceived  EvidenceStatus = "RECEIVED"
	EvidenceValidated EvidenceStatus = "VALIDATED"
	EvidenceRejected  EvidenceStatus = "REJECTED"
)

// Classification tags are produced by the external classification
// collaborator; the core treats them as data. Relevance weights hypothesis
// scoring.
type Classification struct {
	Type        string  `json:"type,omitempty"`
	Sensitivity string  `json:"sensitivity,omitempty"`
	Relevance   float64 `json:"relevance"`
}

// Evidence is one ledger entry per fact requested from or supplied by the
// user. MentionCount counts re-requests while the entry is still REQUESTED
// and freezes once the entry is satisfied or rejected.
type Evidence struct {
	ID             string            `json:"id"`
	Direction      EvidenceDirection `json:"direction"`
	Description    string            `json:"description"`
	Payload        string            `json:"payload,omitempty"`
	Classification Classification    `json:"classification"`
	Status         EvidenceStatus    `json:"status"`
	RejectReason   string            `json:"reject_reason,omitempty"`
	MentionCount   int               `json:"mention_count"`
	RequestedTurn  int               `json:"requested_turn"`
	ResolvedTurn   int               `json:"resolved_turn,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Satisfied reports whether the entry has left the REQUESTED state with a
// usable payload.
func (e Evidence) Satisfied() bool {
	return e.Status == EvidenceReceived || e.Status == EvidenceValidated
}
