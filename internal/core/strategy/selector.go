// Package strategy picks an investigation approach from the accumulated
// state. Select is a pure function re-evaluated every turn; the
// (temporal_state, urgency) → strategy matrix is configuration data, so new
// combinations are config additions rather than new branches.
package strategy

import (
	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
)

type Selector struct {
	matrix   map[string]string
	fallback string
}

func NewSelector(cfg config.StrategyConfig) *Selector {
	return &Selector{matrix: cfg.Matrix, fallback: cfg.Default}
}

// Select derives the strategy directive for the next action. No side effects.
func (s *Selector) Select(c *model.Case) model.PathSelection {
	sel := model.PathSelection{
		Temporal: c.Temporal,
		Urgency:  c.Urgency,
	}
	if sel.Temporal == "" {
		sel.Temporal = model.ActiveIncident
	}

	key := string(sel.Temporal) + "/" + sel.Urgency.String()
	if strat, ok := s.matrix[key]; ok {
		sel.Strategy = strat
	} else {
		sel.Strategy = s.fallback
	}
	return sel
}
