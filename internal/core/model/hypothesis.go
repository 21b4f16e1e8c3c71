package model

// Hypothesis is a candidate explanation for the incident. Confidence is
// recomputed from the evidence ledger every turn, never hand-set after the
// initial seed. A case may resolve with zero hypotheses when the root cause
// is identified by direct evidence.
type Hypothesis struct {
	ID            string   `json:"id"`
	Statement     string   `json:"statement"`
	Confidence    float64  `json:"confidence"`
	Seed          float64  `json:"seed"`
	Supporting    []string `json:"supporting_evidence,omitempty"`
	Contradicting []string `json:"contradicting_evidence,omitempty"`
	CreatedTurn   int      `json:"created_turn"`
	// LastSupportTurn is the turn the most recent supporting evidence
	// arrived; decay is measured from it.
	LastSupportTurn int  `json:"last_support_turn"`
	UpdatedTurn     int  `json:"last_updated_turn"`
	Retired         bool `json:"retired,omitempty"`
}
