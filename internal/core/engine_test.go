package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/memory"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/store"
)

type failingSummarizer struct{ calls int }

func (f *failingSummarizer) Summarize(ctx context.Context, turns []string) (string, error) {
	f.calls++
	return "", fmt.Errorf("summarizer down")
}

// conflictStore injects version conflicts into the first N Put calls.
type conflictStore struct {
	store.CaseStore
	conflicts int
	puts      int
}

func (s *conflictStore) Put(ctx context.Context, c *model.Case, expectedVersion uint64) error {
	s.puts++
	if s.conflicts > 0 {
		s.conflicts--
		return store.ErrVersionMismatch
	}
	return s.CaseStore.Put(ctx, c, expectedVersion)
}

func newTestEngine() (*Engine, *failingSummarizer) {
	cfg := config.Default()
	sum := &failingSummarizer{}
	mem := memory.NewManager(cfg.Memory, sum, nil)
	return NewEngine(cfg, store.NewMemStore(), nil, mem), sum
}

func TestOpenCaseStartsConsulting(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConsulting, c.Status)
	assert.Equal(t, uint64(1), c.Version)
	assert.Equal(t, model.ActiveIncident, c.Temporal)
	assert.Equal(t, model.UrgencyMedium, c.Urgency)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestSubmitTurnUnknownCase(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.SubmitTurn(context.Background(), "nope", model.TurnInput{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// A single turn may commit, supply evidence, seed a hypothesis and claim
// milestones through to a proposed solution. Claims apply in canonical
// order regardless of how the caller ordered them.
func TestOneTurnResolution(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	res, err := e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Statement:             "checkout is down, deploy went out 5 minutes ago, rolling back fixes it",
		CommitToInvestigation: true,
		Severity:              "critical",
		Provided: []model.ProvidedFact{
			{Description: "error rate graph", Payload: "error rate jumped to 40% at 14:02"},
			{Description: "deploy log", Payload: "checkout-svc v2.14 deployed 14:01"},
		},
		Proposals: []model.HypothesisProposal{
			{Statement: "v2.14 broke the payment client", SeedConfidence: 0.6},
		},
		Claims: []model.MilestoneClaim{
			{Milestone: model.MilestoneSolutionProposed},
			{Milestone: model.MilestoneRootCauseIdentified},
			{Milestone: model.MilestoneSymptomVerified},
		},
		Conclusion: "roll back to v2.13",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, model.StatusResolved, res.Status)
	assert.Nil(t, res.Stage, "stage is only defined while investigating")
	assert.Equal(t, []model.Milestone{
		model.MilestoneSymptomVerified,
		model.MilestoneRootCauseIdentified,
		model.MilestoneSolutionProposed,
	}, res.NewMilestones)
	assert.False(t, res.Stalled)
	require.NotNil(t, res.Path)
	assert.Equal(t, "STABILIZE_FIRST", res.Path.Strategy)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, model.UrgencyHigh, got.Urgency)
	assert.Equal(t, "roll back to v2.13", got.Conclusion)
	assert.Len(t, got.Evidence, 2)
	assert.Equal(t, "hypothesis", got.Progress.RootCauseMethod)
	assert.InDelta(t, 0.6, got.Progress.RootCauseConfidence, 1e-9)
}

func TestRejectedTurnLeavesStateUnchanged(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)
	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{CommitToInvestigation: true})
	require.NoError(t, err)

	// Solution claims before symptom verification violate the state machine.
	res, err := e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Claims: []model.MilestoneClaim{{Milestone: model.MilestoneSolutionApplied}},
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Turn, "result reflects the last committed turn")
	assert.NotEmpty(t, res.Reason)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version, "rejected turn must not commit")
	assert.Equal(t, 1, got.Turn)
	assert.False(t, got.Progress.SolutionApplied)
}

func TestMilestonesWhileConsultingRejected(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Claims: []model.MilestoneClaim{{Milestone: model.MilestoneSymptomVerified}},
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestSubmitTurnRetriesOnVersionConflict(t *testing.T) {
	cfg := config.Default()
	cs := &conflictStore{CaseStore: store.NewMemStore(), conflicts: 0}
	mem := memory.NewManager(cfg.Memory, nil, nil)
	e := NewEngine(cfg, cs, nil, mem)
	ctx := context.Background()

	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	cs.conflicts = 2
	res, err := e.SubmitTurn(ctx, c.ID, model.TurnInput{CommitToInvestigation: true})
	require.NoError(t, err, "conflicts within the retry budget are absorbed")
	assert.Equal(t, model.StatusInvestigating, res.Status)
	assert.Equal(t, 4, cs.puts, "open + two conflicts + commit")
}

func TestSubmitTurnExhaustsRetryBudget(t *testing.T) {
	cfg := config.Default()
	cs := &conflictStore{CaseStore: store.NewMemStore()}
	mem := memory.NewManager(cfg.Memory, nil, nil)
	e := NewEngine(cfg, cs, nil, mem)
	ctx := context.Background()

	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	cs.conflicts = cfg.Policy.MaxCommitRetries + 1
	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{CommitToInvestigation: true})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConsulting, got.Status, "no partial commit")
}

func resolveCase(t *testing.T, e *Engine, caseID string) {
	t.Helper()
	_, err := e.SubmitTurn(context.Background(), caseID, model.TurnInput{
		Statement:             "disk filled on the primary, compaction fixed it",
		CommitToInvestigation: true,
		Provided: []model.ProvidedFact{
			{Description: "disk usage", Payload: "/data at 100%"},
		},
		Proposals: []model.HypothesisProposal{
			{Statement: "compaction backlog filled the disk", SeedConfidence: 0.7},
		},
		Claims: []model.MilestoneClaim{
			{Milestone: model.MilestoneSymptomVerified},
			{Milestone: model.MilestoneRootCauseIdentified},
			{Milestone: model.MilestoneSolutionProposed},
		},
	})
	require.NoError(t, err)
}

func TestCloseSurvivesSummarizerFailure(t *testing.T) {
	e, sum := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)
	resolveCase(t, e, c.ID)

	require.NoError(t, e.CloseCase(ctx, c.ID))
	assert.Greater(t, sum.calls, 0, "consolidation attempted summarization")

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, got.Status, "summarizer failure never rolls back closure")

	// The truncation fallback still produced a cross-case insight.
	seq, err := e.Recall(ctx, c.ID, "disk")
	require.NoError(t, err)
	var tiers []model.Tier
	for entry := range seq {
		tiers = append(tiers, entry.Tier)
	}
	assert.Contains(t, tiers, model.TierUser)
	assert.Contains(t, tiers, model.TierEpisodic)
	assert.NotContains(t, tiers, model.TierSession, "session tier is released on consolidation")
}

func TestCloseRequiresResolved(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, e.CloseCase(ctx, c.ID), model.ErrInvalidTransition)
}

func TestTurnOnClosedCaseRejected(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)
	resolveCase(t, e, c.ID)
	require.NoError(t, e.CloseCase(ctx, c.ID))

	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{Statement: "one more thing"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestReopenResetsProgress(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)
	resolveCase(t, e, c.ID)

	require.NoError(t, e.Reopen(ctx, c.ID))

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, got.Status)
	assert.Equal(t, model.InvestigationProgress{}, got.Progress)
	assert.Empty(t, got.Conclusion)
	assert.NotEmpty(t, got.Evidence, "evidence survives a reopen")
	assert.NotEmpty(t, got.Hypotheses, "hypotheses survive a reopen")
}

// Re-requesting the same unanswered facts turn after turn eventually flags
// the investigation as stalled, and the stall clears once evidence lands.
func TestStallSurfacedInTurnResult(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	findings := []string{"application logs", "deploy history", "db metrics"}
	var res *model.TurnResult
	for i := 0; i < 3; i++ {
		in := model.TurnInput{NewFindings: findings}
		if i == 0 {
			in.CommitToInvestigation = true
		}
		res, err = e.SubmitTurn(ctx, c.ID, in)
		require.NoError(t, err)
	}
	assert.True(t, res.Stalled)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Evidence, 3, "re-requests bump mentions instead of duplicating")

	res, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Provided: []model.ProvidedFact{
			{EvidenceID: got.Evidence[0].ID, Payload: "OOMKilled in app logs"},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Stalled, "a fulfilled request drops below the stall threshold")
}

func TestEvidenceValidationAcrossTurns(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{
		CommitToInvestigation: true,
		NewFindings:           []string{"gc logs"},
	})
	require.NoError(t, err)

	got, err := e.GetState(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Evidence, 1)
	id := got.Evidence[0].ID

	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Provided: []model.ProvidedFact{{EvidenceID: id, Payload: "full gc every 10s"}},
	})
	require.NoError(t, err)

	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{Validate: []string{id}})
	require.NoError(t, err)

	got, err = e.GetState(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvidenceValidated, got.Evidence[0].Status)

	// Validating twice is a transition violation, not an idempotent no-op.
	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{Validate: []string{id}})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestStageTracksMilestonesWhileInvestigating(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	res, err := e.SubmitTurn(ctx, c.ID, model.TurnInput{CommitToInvestigation: true})
	require.NoError(t, err)
	require.NotNil(t, res.Stage)
	assert.Equal(t, model.StageUnderstanding, *res.Stage)

	res, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{
		Claims: []model.MilestoneClaim{{Milestone: model.MilestoneSymptomVerified}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Stage)
	assert.Equal(t, model.StageDiagnosing, *res.Stage)
}

func TestProblemResolvedFlipsTemporalState(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	resolved := true
	res, err := e.SubmitTurn(ctx, c.ID, model.TurnInput{
		CommitToInvestigation: true,
		ProblemResolved:       &resolved,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Path)
	assert.Equal(t, model.PostMortem, res.Path.Temporal)

	ongoing := false
	res, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{ProblemResolved: &ongoing})
	require.NoError(t, err)
	assert.Equal(t, model.ActiveIncident, res.Path.Temporal)
}

func TestContextCancellationStopsRetryLoop(t *testing.T) {
	e, _ := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	c, err := e.OpenCase(ctx, "alice")
	require.NoError(t, err)

	cancel()
	_, err = e.SubmitTurn(ctx, c.ID, model.TurnInput{CommitToInvestigation: true})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := e.GetState(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConsulting, got.Status)
}

func TestStorageFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	mem := memory.NewManager(cfg.Memory, nil, nil)
	e := NewEngine(cfg, &brokenStore{}, nil, mem)

	_, err := e.OpenCase(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

type brokenStore struct{}

func (b *brokenStore) Get(ctx context.Context, id string) (*model.Case, error) {
	return nil, errors.New("connection refused")
}

func (b *brokenStore) Put(ctx context.Context, c *model.Case, expectedVersion uint64) error {
	return errors.New("connection refused")
}

func (b *brokenStore) Close() error { return nil }
