package model

import "time"

type CaseStatus string

const (
	StatusConsulting    CaseStatus = "CONSULTING"
	StatusInvestigating CaseStatus = "INVESTIGATING"
	StatusResolved      CaseStatus = "RESOLVED"
	StatusClosed        CaseStatus = "CLOSED"
)

// Case is the investigation root aggregate. It is mutated one turn at a time;
// Version is the optimistic-concurrency counter checked by the store on commit.
type Case struct {
	ID         string                `json:"id"`
	Owner      string                `json:"owner"`
	Status     CaseStatus            `json:"status"`
	Progress   InvestigationProgress `json:"progress"`
	Hypotheses []Hypothesis          `json:"hypotheses,omitempty"`
	Conclusion string                `json:"conclusion,omitempty"`
	Evidence   []Evidence            `json:"evidence"`
	Turn       int                   `json:"turn"`
	Temporal   TemporalState         `json:"temporal_state"`
	Urgency    Urgency               `json:"urgency"`
	LastPath   *PathSelection        `json:"last_path,omitempty"`
	Version    uint64                `json:"version"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Clone returns a deep copy. Turn transactions mutate a clone and commit it
// conditionally, so the stored aggregate is never half-updated.
func (c *Case) Clone() *Case {
	out := *c
	out.Evidence = make([]Evidence, len(c.Evidence))
	copy(out.Evidence, c.Evidence)
	if c.Hypotheses != nil {
		out.Hypotheses = make([]Hypothesis, len(c.Hypotheses))
		for i, h := range c.Hypotheses {
			out.Hypotheses[i] = h
			out.Hypotheses[i].Supporting = append([]string(nil), h.Supporting...)
			out.Hypotheses[i].Contradicting = append([]string(nil), h.Contradicting...)
		}
	}
	if c.LastPath != nil {
		p := *c.LastPath
		out.LastPath = &p
	}
	return &out
}

// FindEvidence returns a pointer into the case's evidence list, or nil.
func (c *Case) FindEvidence(id string) *Evidence {
	for i := range c.Evidence {
		if c.Evidence[i].ID == id {
			return &c.Evidence[i]
		}
	}
	return nil
}

// FindHypothesis returns a pointer into the case's hypothesis list, or nil.
func (c *Case) FindHypothesis(id string) *Hypothesis {
	for i := range c.Hypotheses {
		if c.Hypotheses[i].ID == id {
			return &c.Hypotheses[i]
		}
	}
	return nil
}
