// Package evidence implements the evidence ledger: every fact requested from
// or supplied by the user, its provenance, and its validation status.
package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
)

type Ledger struct {
	minStalledEntries int
	minMentions       int
}

func NewLedger(cfg config.PolicyConfig) *Ledger {
	return &Ledger{
		minStalledEntries: cfg.StallMinEntries,
		minMentions:       cfg.StallMinMentions,
	}
}

// Request records a fact the investigation needs. Requesting a fact that is
// already pending bumps its mention count instead of duplicating the entry;
// that bump is the only mutation allowed while the entry is REQUESTED.
func (l *Ledger) Request(c *model.Case, description string) string {
	key := normalize(description)
	for i := range c.Evidence {
		e := &c.Evidence[i]
		if e.Status == model.EvidenceRequested && normalize(e.Description) == key {
			e.MentionCount++
			e.UpdatedAt = time.Now().UTC()
			return e.ID
		}
	}

	now := time.Now().UTC()
	e := model.Evidence{
		ID:            uuid.New().String(),
		Direction:     model.DirectionRequested,
		Description:   description,
		Status:        model.EvidenceRequested,
		MentionCount:  1,
		RequestedTurn: c.Turn,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.Evidence = append(c.Evidence, e)
	return e.ID
}

// Provide records an unsolicited fact the user volunteered. It enters the
// ledger already RECEIVED.
func (l *Ledger) Provide(c *model.Case, description, payload string, cls model.Classification) string {
	now := time.Now().UTC()
	e := model.Evidence{
		ID:             uuid.New().String(),
		Direction:      model.DirectionProvided,
		Description:    description,
		Payload:        payload,
		Classification: cls,
		Status:         model.EvidenceReceived,
		RequestedTurn:  c.Turn,
		ResolvedTurn:   c.Turn,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.Evidence = append(c.Evidence, e)
	return e.ID
}

// Fulfil attaches the payload to a pending request and freezes its mention
// count. Only a REQUESTED entry may be fulfilled.
func (l *Ledger) Fulfil(c *model.Case, id, payload string, cls model.Classification) error {
	e := c.FindEvidence(id)
	if e == nil {
		return fmt.Errorf("evidence %s: not found", id)
	}
	if e.Status != model.EvidenceRequested {
		return fmt.Errorf("fulfil evidence %s in status %s: %w", id, e.Status, model.ErrInvalidTransition)
	}
	e.Status = model.EvidenceReceived
	e.Payload = payload
	e.Classification = cls
	e.ResolvedTurn = c.Turn
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject marks a pending request as unanswerable.
func (l *Ledger) Reject(c *model.Case, id, reason string) error {
	e := c.FindEvidence(id)
	if e == nil {
		return fmt.Errorf("evidence %s: not found", id)
	}
	if e.Status != model.EvidenceRequested {
		return fmt.Errorf("reject evidence %s in status %s: %w", id, e.Status, model.ErrInvalidTransition)
	}
	e.Status = model.EvidenceRejected
	e.RejectReason = reason
	e.ResolvedTurn = c.Turn
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Validate promotes a received payload after it checks out.
func (l *Ledger) Validate(c *model.Case, id string) error {
	e := c.FindEvidence(id)
	if e == nil {
		return fmt.Errorf("evidence %s: not found", id)
	}
	if e.Status != model.EvidenceReceived {
		return fmt.Errorf("validate evidence %s in status %s: %w", id, e.Status, model.ErrInvalidTransition)
	}
	e.Status = model.EvidenceValidated
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsStalled reports whether the investigation is proceeding on thin evidence:
// at least minStalledEntries distinct entries re-requested minMentions times
// or more and still unanswered. It is recomputed on every call, never
// remembered.
func (l *Ledger) IsStalled(c *model.Case) bool {
	stalled := 0
	for i := range c.Evidence {
		e := &c.Evidence[i]
		if e.Status == model.EvidenceRequested && e.MentionCount >= l.minMentions {
			stalled++
		}
	}
	return stalled >= l.minStalledEntries
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
