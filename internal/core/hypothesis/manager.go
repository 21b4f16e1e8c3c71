// Package hypothesis maintains the candidate explanations for a case and
// their confidence scores. Confidence is always recomputed from the evidence
// ledger; the only hand-set value is the seed at creation.
package hypothesis

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/common"
	"github.com/agenthands/sleuth/internal/core/model"
)

type Manager struct {
	decayPerTurn         float64
	supportWeight        float64
	contradictionPenalty float64
	tolerance            float64
}

func NewManager(cfg config.PolicyConfig) *Manager {
	return &Manager{
		decayPerTurn:         cfg.DecayPerTurn,
		supportWeight:        cfg.SupportWeight,
		contradictionPenalty: cfg.ContradictionPenalty,
		tolerance:            cfg.AnchoringTolerance,
	}
}

// Propose adds a candidate explanation. Proposals are accepted on any turn,
// including turn one; hypothesis generation is not gated to a stage.
func (m *Manager) Propose(c *model.Case, statement string, seed float64) string {
	h := model.Hypothesis{
		ID:              uuid.New().String(),
		Statement:       statement,
		Seed:            common.Clamp01(seed),
		Confidence:      common.Clamp01(seed),
		CreatedTurn:     c.Turn,
		LastSupportTurn: c.Turn,
		UpdatedTurn:     c.Turn,
	}
	c.Hypotheses = append(c.Hypotheses, h)
	return h.ID
}

// Link attaches an evidence entry to a hypothesis as support or
// contradiction. Supporting links move the decay origin to the current turn.
func (m *Manager) Link(c *model.Case, hypothesisID, evidenceID string, supports bool) error {
	h := c.FindHypothesis(hypothesisID)
	if h == nil {
		return fmt.Errorf("hypothesis %s: not found", hypothesisID)
	}
	e := c.FindEvidence(evidenceID)
	if e == nil {
		return fmt.Errorf("evidence %s: not found", evidenceID)
	}
	if !e.Satisfied() {
		return fmt.Errorf("evidence %s is %s, cannot back a hypothesis: %w", evidenceID, e.Status, model.ErrInvalidTransition)
	}
	if supports {
		if !contains(h.Supporting, evidenceID) {
			h.Supporting = append(h.Supporting, evidenceID)
			h.LastSupportTurn = c.Turn
		}
	} else {
		if !contains(h.Contradicting, evidenceID) {
			h.Contradicting = append(h.Contradicting, evidenceID)
		}
	}
	return nil
}

// Rescore recomputes every confidence from the current ledger state:
// seed + relevance-weighted support − contradiction penalty − linear decay
// since the last supporting evidence, clamped to [0, 1]. Absent new support
// the score is monotone non-increasing turn over turn.
func (m *Manager) Rescore(c *model.Case) {
	for i := range c.Hypotheses {
		h := &c.Hypotheses[i]
		if h.Retired {
			continue
		}

		support := 0.0
		for _, id := range h.Supporting {
			if e := c.FindEvidence(id); e != nil && e.Satisfied() {
				support += relevanceOf(e)
			}
		}
		contra := float64(len(h.Contradicting))

		turnsSinceSupport := c.Turn - h.LastSupportTurn
		if turnsSinceSupport < 0 {
			turnsSinceSupport = 0
		}
		decay := m.decayPerTurn * float64(turnsSinceSupport)

		h.Confidence = common.Clamp01(h.Seed + m.supportWeight*support - m.contradictionPenalty*contra - decay)
		h.UpdatedTurn = c.Turn
	}
}

// Retire withdraws a hypothesis from consideration without deleting its
// history.
func (m *Manager) Retire(c *model.Case, id string) error {
	h := c.FindHypothesis(id)
	if h == nil {
		return fmt.Errorf("hypothesis %s: not found", id)
	}
	h.Retired = true
	h.UpdatedTurn = c.Turn
	return nil
}

// EligibleRootCause returns the hypothesis allowed to satisfy the root-cause
// milestone, or nil. The leader is ineligible while any rival sits within the
// anchoring tolerance: ties must be broken by new evidence, not by generation
// order.
func (m *Manager) EligibleRootCause(c *model.Case) *model.Hypothesis {
	var leader *model.Hypothesis
	for i := range c.Hypotheses {
		h := &c.Hypotheses[i]
		if h.Retired {
			continue
		}
		if leader == nil || h.Confidence > leader.Confidence {
			leader = h
		}
	}
	if leader == nil {
		return nil
	}
	for i := range c.Hypotheses {
		h := &c.Hypotheses[i]
		if h.Retired || h.ID == leader.ID {
			continue
		}
		if leader.Confidence-h.Confidence < m.tolerance {
			return nil
		}
	}
	return leader
}

// Active counts hypotheses still in play.
func (m *Manager) Active(c *model.Case) int {
	n := 0
	for i := range c.Hypotheses {
		if !c.Hypotheses[i].Retired {
			n++
		}
	}
	return n
}

func relevanceOf(e *model.Evidence) float64 {
	if e.Classification.Relevance > 0 {
		return e.Classification.Relevance
	}
	// Unclassified evidence counts at half weight.
	return 0.5
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
