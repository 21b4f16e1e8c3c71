package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
)

func newTestLedger() *Ledger {
	return NewLedger(config.Default().Policy)
}

func newCase() *model.Case {
	return &model.Case{ID: "case-1", Status: model.StatusInvestigating, Turn: 1}
}

func TestRequestDedupesAndBumpsMentionCount(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	id1 := l.Request(c, "recent deploy log")
	id2 := l.Request(c, "Recent  deploy LOG") // same fact, different spelling

	assert.Equal(t, id1, id2)
	assert.Len(t, c.Evidence, 1)
	assert.Equal(t, 2, c.Evidence[0].MentionCount)
}

func TestFulfilFreezesMentionCount(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	id := l.Request(c, "error rate graph")
	l.Request(c, "error rate graph")
	require.NoError(t, l.Fulfil(c, id, "graph attached", model.Classification{Relevance: 0.8}))

	before := c.FindEvidence(id).MentionCount

	// Re-requesting a satisfied fact creates a fresh entry; the old one is frozen.
	id2 := l.Request(c, "error rate graph")
	assert.NotEqual(t, id, id2)
	assert.Equal(t, before, c.FindEvidence(id).MentionCount)
	assert.Equal(t, model.EvidenceReceived, c.FindEvidence(id).Status)
}

func TestFulfilRequiresRequestedStatus(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	id := l.Request(c, "pod restart count")
	require.NoError(t, l.Fulfil(c, id, "17 restarts", model.Classification{}))

	err := l.Fulfil(c, id, "again", model.Classification{})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	err = l.Reject(c, id, "too late")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestValidateOnlyFromReceived(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	id := l.Request(c, "config diff")
	assert.ErrorIs(t, l.Validate(c, id), model.ErrInvalidTransition)

	require.NoError(t, l.Fulfil(c, id, "diff", model.Classification{}))
	require.NoError(t, l.Validate(c, id))
	assert.Equal(t, model.EvidenceValidated, c.FindEvidence(id).Status)
}

func TestStallRuleBoundary(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	// Two facts each requested three times: not stalled.
	for _, desc := range []string{"fact a", "fact b"} {
		for i := 0; i < 3; i++ {
			l.Request(c, desc)
		}
	}
	assert.False(t, l.IsStalled(c))

	// A third chronically unanswered fact tips it over.
	for i := 0; i < 3; i++ {
		l.Request(c, "fact c")
	}
	assert.True(t, l.IsStalled(c))
}

func TestStallClearsWhenEvidenceArrives(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	ids := make([]string, 0, 3)
	for _, desc := range []string{"fact a", "fact b", "fact c"} {
		var id string
		for i := 0; i < 3; i++ {
			id = l.Request(c, desc)
		}
		ids = append(ids, id)
	}
	require.True(t, l.IsStalled(c))

	require.NoError(t, l.Fulfil(c, ids[0], "answered", model.Classification{}))
	assert.False(t, l.IsStalled(c), "stall is re-evaluated, not remembered")
}

func TestProvideEntersReceived(t *testing.T) {
	l := newTestLedger()
	c := newCase()

	id := l.Provide(c, "user noticed spike at 10:03", "screenshot", model.Classification{Relevance: 0.9})
	e := c.FindEvidence(id)
	require.NotNil(t, e)
	assert.Equal(t, model.DirectionProvided, e.Direction)
	assert.Equal(t, model.EvidenceReceived, e.Status)
}
