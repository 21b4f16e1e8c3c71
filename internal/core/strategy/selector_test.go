package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
)

func TestMatrixLookup(t *testing.T) {
	s := NewSelector(config.Default().Strategy)

	cases := []struct {
		temporal model.TemporalState
		urgency  model.Urgency
		want     string
	}{
		{model.ActiveIncident, model.UrgencyHigh, "STABILIZE_FIRST"},
		{model.ActiveIncident, model.UrgencyMedium, "MITIGATE_THEN_DIAGNOSE"},
		{model.ActiveIncident, model.UrgencyLow, "DIAGNOSE_WHILE_MONITORING"},
		{model.PostMortem, model.UrgencyHigh, "ROOT_CAUSE_DEEP_DIVE"},
		{model.PostMortem, model.UrgencyMedium, "TIMELINE_RECONSTRUCTION"},
		{model.PostMortem, model.UrgencyLow, "THOROUGH_REVIEW"},
	}
	for _, tc := range cases {
		c := &model.Case{Temporal: tc.temporal, Urgency: tc.urgency}
		got := s.Select(c)
		assert.Equal(t, tc.want, got.Strategy, "%s/%s", tc.temporal, tc.urgency)
		assert.Equal(t, tc.temporal, got.Temporal)
		assert.Equal(t, tc.urgency, got.Urgency)
	}
}

func TestUnknownCombinationFallsBack(t *testing.T) {
	s := NewSelector(config.StrategyConfig{
		Matrix:  map[string]string{"ACTIVE_INCIDENT/HIGH": "STABILIZE_FIRST"},
		Default: "DIAGNOSE_WHILE_MONITORING",
	})

	c := &model.Case{Temporal: model.PostMortem, Urgency: model.UrgencyLow}
	assert.Equal(t, "DIAGNOSE_WHILE_MONITORING", s.Select(c).Strategy)
}

func TestDefaultsForFreshCase(t *testing.T) {
	s := NewSelector(config.Default().Strategy)

	// A fresh case has no temporal classification yet; it is treated as an
	// active incident at medium urgency.
	c := &model.Case{Urgency: model.UrgencyMedium}
	got := s.Select(c)
	assert.Equal(t, model.ActiveIncident, got.Temporal)
	assert.Equal(t, "MITIGATE_THEN_DIAGNOSE", got.Strategy)
}

func TestSelectHasNoSideEffects(t *testing.T) {
	s := NewSelector(config.Default().Strategy)
	c := &model.Case{Temporal: model.PostMortem, Urgency: model.UrgencyHigh}
	before := *c
	_ = s.Select(c)
	assert.Equal(t, before, *c)
}
