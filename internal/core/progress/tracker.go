// Package progress tracks investigation milestones and derives the current
// stage. Milestones are independent flags, not ordered phases: any subset may
// become true on a single turn, which is what makes one-turn resolution
// possible.
package progress

import (
	"fmt"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/evidence"
	"github.com/agenthands/sleuth/internal/core/hypothesis"
	"github.com/agenthands/sleuth/internal/core/model"
)

type Tracker struct {
	ledger     *evidence.Ledger
	hypotheses *hypothesis.Manager
	ceiling    float64
}

func NewTracker(cfg config.PolicyConfig, l *evidence.Ledger, h *hypothesis.Manager) *Tracker {
	return &Tracker{
		ledger:     l,
		hypotheses: h,
		ceiling:    cfg.StallConfidenceCeiling,
	}
}

// StageOf derives the stage from milestones alone. Never stored.
func StageOf(p model.InvestigationProgress) model.Stage {
	switch {
	case p.SolutionProposed || p.SolutionApplied || p.SolutionVerified:
		return model.StageResolving
	case p.SymptomVerified && !p.RootCauseIdentified:
		return model.StageDiagnosing
	default:
		return model.StageUnderstanding
	}
}

// CurrentStage is defined only while the case is INVESTIGATING; outside that
// status it returns nil.
func CurrentStage(c *model.Case) *model.Stage {
	if c.Status != model.StatusInvestigating {
		return nil
	}
	s := StageOf(c.Progress)
	return &s
}

// Commit moves a consulting case into a structured investigation.
func (t *Tracker) Commit(c *model.Case) error {
	switch c.Status {
	case model.StatusConsulting:
		c.Status = model.StatusInvestigating
		return nil
	case model.StatusInvestigating:
		return nil // already committed, no-op
	default:
		return fmt.Errorf("commit to investigation from %s: %w", c.Status, model.ErrInvalidTransition)
	}
}

// ApplyMilestone sets a milestone flag. It is idempotent: applying an
// already-true milestone is a no-op, not an error. Evidence refs must exist
// in the ledger and be satisfied. The returned bool reports whether the flag
// was newly set.
func (t *Tracker) ApplyMilestone(c *model.Case, m model.Milestone, refs []string) (bool, error) {
	if c.Status == model.StatusConsulting || c.Status == model.StatusClosed {
		return false, fmt.Errorf("milestone %s while %s: %w", m, c.Status, model.ErrInvalidTransition)
	}
	if c.Progress.Is(m) {
		return false, nil
	}

	for _, ref := range refs {
		e := c.FindEvidence(ref)
		if e == nil {
			return false, fmt.Errorf("milestone %s references unknown evidence %s: %w", m, ref, model.ErrInvalidTransition)
		}
		if !e.Satisfied() {
			return false, fmt.Errorf("milestone %s references unsatisfied evidence %s: %w", m, ref, model.ErrInvalidTransition)
		}
	}

	switch m {
	case model.MilestoneSymptomVerified:
		c.Progress.SymptomVerified = true
	case model.MilestoneScopeAssessed:
		c.Progress.ScopeAssessed = true
	case model.MilestoneTimelineEstablished:
		c.Progress.TimelineEstablished = true
	case model.MilestoneChangesIdentified:
		c.Progress.ChangesIdentified = true
	case model.MilestoneRootCauseIdentified:
		return t.identifyRootCause(c, refs)
	case model.MilestoneSolutionProposed, model.MilestoneSolutionApplied, model.MilestoneSolutionVerified:
		return t.applySolutionMilestone(c, m)
	default:
		return false, fmt.Errorf("unknown milestone %q: %w", m, model.ErrInvalidTransition)
	}
	return true, nil
}

// identifyRootCause applies the root-cause milestone. When hypotheses exist,
// the anchoring rule requires a clear leader; its confidence becomes the
// recorded root-cause confidence. With no hypotheses the cause was identified
// by direct evidence and confidence derives from the refs' mean relevance.
// Under evidence stall the recorded confidence is capped at the ceiling.
func (t *Tracker) identifyRootCause(c *model.Case, refs []string) (bool, error) {
	var conf float64
	var method string

	if t.hypotheses.Active(c) > 0 {
		leader := t.hypotheses.EligibleRootCause(c)
		if leader == nil {
			return false, fmt.Errorf("root cause blocked: competing hypotheses within tolerance, break the tie with new evidence: %w", model.ErrInvalidTransition)
		}
		conf = leader.Confidence
		method = "hypothesis"
	} else {
		if len(refs) == 0 {
			return false, fmt.Errorf("root cause by direct evidence requires evidence refs: %w", model.ErrInvalidTransition)
		}
		sum := 0.0
		for _, ref := range refs {
			e := c.FindEvidence(ref)
			r := e.Classification.Relevance
			if r <= 0 {
				r = 0.5
			}
			sum += r
		}
		conf = sum / float64(len(refs))
		method = "direct"
	}

	if t.ledger.IsStalled(c) && conf > t.ceiling {
		conf = t.ceiling
	}

	c.Progress.RootCauseIdentified = true
	c.Progress.RootCauseConfidence = conf
	c.Progress.RootCauseMethod = method
	return true, nil
}

// applySolutionMilestone sets a resolution flag. Resolving before any symptom
// verification violates the state machine.
func (t *Tracker) applySolutionMilestone(c *model.Case, m model.Milestone) (bool, error) {
	if !c.Progress.SymptomVerified {
		return false, fmt.Errorf("solution milestone %s before symptom verification: %w", m, model.ErrInvalidTransition)
	}
	switch m {
	case model.MilestoneSolutionProposed:
		c.Progress.SolutionProposed = true
	case model.MilestoneSolutionApplied:
		c.Progress.SolutionApplied = true
	case model.MilestoneSolutionVerified:
		c.Progress.SolutionVerified = true
	}
	return true, nil
}

// SyncStatus promotes INVESTIGATING to RESOLVED once a solution is proposed
// or applied. There is no shortcut from CONSULTING.
func (t *Tracker) SyncStatus(c *model.Case) {
	if c.Status == model.StatusInvestigating &&
		(c.Progress.SolutionProposed || c.Progress.SolutionApplied) {
		c.Status = model.StatusResolved
	}
}

// Close finishes a resolved case. The caller triggers memory consolidation
// after the transition commits.
func (t *Tracker) Close(c *model.Case) error {
	if c.Status != model.StatusResolved {
		return fmt.Errorf("close from %s: %w", c.Status, model.ErrInvalidTransition)
	}
	c.Status = model.StatusClosed
	return nil
}

// Reopen is the one operation allowed to clear milestones: it resets the
// whole progress struct and returns the case to INVESTIGATING.
func (t *Tracker) Reopen(c *model.Case) error {
	if c.Status != model.StatusResolved {
		return fmt.Errorf("reopen from %s: %w", c.Status, model.ErrInvalidTransition)
	}
	c.Status = model.StatusInvestigating
	c.Progress = model.InvestigationProgress{}
	c.Conclusion = ""
	return nil
}
