// Package core wires the five investigation components into one engine that
// mutates a versioned Case aggregate one turn at a time. A turn is a single
// transaction: evidence updates, hypothesis rescoring, milestone application,
// strategy selection and memory recording all apply together or not at all.
package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/evidence"
	"github.com/agenthands/sleuth/internal/core/hypothesis"
	"github.com/agenthands/sleuth/internal/core/memory"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/core/progress"
	"github.com/agenthands/sleuth/internal/core/strategy"
	"github.com/agenthands/sleuth/internal/store"
)

// Classifier tags new evidence content. Implemented by collab.Classifier;
// it must never fail the turn, only degrade.
type Classifier interface {
	Classify(ctx context.Context, content string) model.Classification
}

type Engine struct {
	store      store.CaseStore
	ledger     *evidence.Ledger
	hypotheses *hypothesis.Manager
	tracker    *progress.Tracker
	selector   *strategy.Selector
	memory     *memory.Manager
	classifier Classifier

	seedConfidence float64
	maxRetries     int
}

func NewEngine(cfg *config.Config, st store.CaseStore, cls Classifier, mem *memory.Manager) *Engine {
	ledger := evidence.NewLedger(cfg.Policy)
	hyp := hypothesis.NewManager(cfg.Policy)
	return &Engine{
		store:          st,
		ledger:         ledger,
		hypotheses:     hyp,
		tracker:        progress.NewTracker(cfg.Policy, ledger, hyp),
		selector:       strategy.NewSelector(cfg.Strategy),
		memory:         mem,
		classifier:     cls,
		seedConfidence: cfg.Policy.SeedConfidence,
		maxRetries:     cfg.Policy.MaxCommitRetries,
	}
}

// OpenCase creates a fresh consulting case for an already-authenticated
// owner. Identity validation is the caller's problem.
func (e *Engine) OpenCase(ctx context.Context, owner string) (*model.Case, error) {
	now := time.Now().UTC()
	c := &model.Case{
		ID:        uuid.New().String(),
		Owner:     owner,
		Status:    model.StatusConsulting,
		Temporal:  model.ActiveIncident,
		Urgency:   model.UrgencyMedium,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Put(ctx, c, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return c, nil
}

// GetState returns a read-only snapshot of the aggregate.
func (e *Engine) GetState(ctx context.Context, caseID string) (*model.Case, error) {
	return e.store.Get(ctx, caseID)
}

// SubmitTurn applies one conversational turn. It reads the current version,
// computes the full mutation set on a copy, and commits only if the version
// is unchanged; on conflict the whole turn is recomputed from a fresh read.
// Only this pre-commit loop is interruptible.
func (e *Engine) SubmitTurn(ctx context.Context, caseID string, in model.TurnInput) (*model.TurnResult, error) {
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur, err := e.store.Get(ctx, caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		work := cur.Clone()
		res, terr := e.applyTurn(ctx, work, in)
		if terr != nil {
			// Rejected turn: the caller gets the last committed state
			// plus the reason, never a half-applied mutation set.
			return e.rejectedResult(cur, terr), terr
		}

		expected := work.Version
		work.Version++
		if err := e.store.Put(ctx, work, expected); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		e.memory.RecordTurn(work, turnContent(in))
		return res, nil
	}
	return nil, ErrConcurrentModification
}

// CloseCase finishes a resolved case and triggers memory consolidation on a
// snapshot of the closed state. Consolidation failure never rolls the
// closure back.
func (e *Engine) CloseCase(ctx context.Context, caseID string) error {
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		cur, err := e.store.Get(ctx, caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		work := cur.Clone()
		if err := e.tracker.Close(work); err != nil {
			return err
		}
		work.UpdatedAt = time.Now().UTC()

		expected := work.Version
		work.Version++
		if err := e.store.Put(ctx, work, expected); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		if err := e.memory.Consolidate(ctx, work); err != nil {
			log.Printf("consolidation after closing case %s failed: %v", caseID, err)
		}
		return nil
	}
	return ErrConcurrentModification
}

// Reopen returns a resolved case to investigation, resetting its progress.
// This is the only operation that clears milestones.
func (e *Engine) Reopen(ctx context.Context, caseID string) error {
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		cur, err := e.store.Get(ctx, caseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		work := cur.Clone()
		if err := e.tracker.Reopen(work); err != nil {
			return err
		}
		work.UpdatedAt = time.Now().UTC()

		expected := work.Version
		work.Version++
		if err := e.store.Put(ctx, work, expected); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	}
	return ErrConcurrentModification
}

// Recall surfaces the memory tiers visible to a case, most relevant first.
func (e *Engine) Recall(ctx context.Context, caseID, query string) (iter.Seq[model.MemoryEntry], error) {
	c, err := e.store.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	e.memory.HydrateOwner(ctx, c.Owner)
	return e.memory.Retrieve(c.ID, c.Owner, query), nil
}

// applyTurn computes the full mutation set for one turn on a working copy.
// Any error leaves the stored aggregate untouched.
func (e *Engine) applyTurn(ctx context.Context, c *model.Case, in model.TurnInput) (*model.TurnResult, error) {
	if c.Status == model.StatusClosed {
		return nil, fmt.Errorf("turn on closed case: %w", model.ErrInvalidTransition)
	}
	c.Turn++

	if in.Severity != "" {
		c.Urgency = model.ParseUrgency(in.Severity)
	}
	if in.ProblemResolved != nil {
		if *in.ProblemResolved {
			c.Temporal = model.PostMortem
		} else {
			c.Temporal = model.ActiveIncident
		}
	}

	if in.CommitToInvestigation {
		if err := e.tracker.Commit(c); err != nil {
			return nil, err
		}
	}

	for _, desc := range in.NewFindings {
		e.ledger.Request(c, desc)
	}
	for _, fact := range in.Provided {
		cls := e.classify(ctx, fact.Payload)
		if fact.EvidenceID != "" {
			if err := e.ledger.Fulfil(c, fact.EvidenceID, fact.Payload, cls); err != nil {
				return nil, err
			}
		} else {
			e.ledger.Provide(c, fact.Description, fact.Payload, cls)
		}
	}
	for _, rej := range in.Rejected {
		if err := e.ledger.Reject(c, rej.EvidenceID, rej.Reason); err != nil {
			return nil, err
		}
	}
	for _, id := range in.Validate {
		if err := e.ledger.Validate(c, id); err != nil {
			return nil, err
		}
	}

	for _, p := range in.Proposals {
		seed := p.SeedConfidence
		if seed <= 0 {
			seed = e.seedConfidence
		}
		e.hypotheses.Propose(c, p.Statement, seed)
	}
	for _, link := range in.Links {
		if err := e.hypotheses.Link(c, link.HypothesisID, link.EvidenceID, link.Supports); err != nil {
			return nil, err
		}
	}
	for _, id := range in.Retire {
		if err := e.hypotheses.Retire(c, id); err != nil {
			return nil, err
		}
	}
	e.hypotheses.Rescore(c)

	var newMilestones []model.Milestone
	for _, claim := range orderClaims(in.Claims) {
		set, err := e.tracker.ApplyMilestone(c, claim.Milestone, claim.EvidenceRefs)
		if err != nil {
			return nil, err
		}
		if set {
			newMilestones = append(newMilestones, claim.Milestone)
		}
	}

	if in.Conclusion != "" {
		c.Conclusion = in.Conclusion
	}

	e.tracker.SyncStatus(c)

	path := e.selector.Select(c)
	c.LastPath = &path
	c.UpdatedAt = time.Now().UTC()

	return &model.TurnResult{
		CaseID:        c.ID,
		Turn:          c.Turn,
		Status:        c.Status,
		Stage:         progress.CurrentStage(c),
		Progress:      c.Progress,
		NewMilestones: newMilestones,
		Path:          c.LastPath,
		Stalled:       e.ledger.IsStalled(c),
	}, nil
}

func (e *Engine) classify(ctx context.Context, content string) model.Classification {
	if e.classifier == nil {
		return model.Classification{Relevance: 0.5}
	}
	return e.classifier.Classify(ctx, content)
}

func (e *Engine) rejectedResult(committed *model.Case, cause error) *model.TurnResult {
	return &model.TurnResult{
		CaseID:   committed.ID,
		Turn:     committed.Turn,
		Status:   committed.Status,
		Stage:    progress.CurrentStage(committed),
		Progress: committed.Progress,
		Path:     committed.LastPath,
		Stalled:  e.ledger.IsStalled(committed),
		Reason:   cause.Error(),
	}
}

// claimRank imposes the canonical application order so a single turn can
// carry verification, root cause and solution claims together regardless of
// how the caller ordered them.
var claimRank = map[model.Milestone]int{
	model.MilestoneSymptomVerified:     0,
	model.MilestoneScopeAssessed:       1,
	model.MilestoneTimelineEstablished: 2,
	model.MilestoneChangesIdentified:   3,
	model.MilestoneRootCauseIdentified: 4,
	model.MilestoneSolutionProposed:    5,
	model.MilestoneSolutionApplied:     6,
	model.MilestoneSolutionVerified:    7,
}

func orderClaims(claims []model.MilestoneClaim) []model.MilestoneClaim {
	out := append([]model.MilestoneClaim(nil), claims...)
	sort.SliceStable(out, func(i, j int) bool {
		return claimRank[out[i].Milestone] < claimRank[out[j].Milestone]
	})
	return out
}

func turnContent(in model.TurnInput) string {
	if in.Statement != "" {
		return in.Statement
	}
	return in.Conclusion
}
