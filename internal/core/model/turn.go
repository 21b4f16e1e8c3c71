package model

// ProvidedFact fulfils a previously requested evidence entry, or — when
// EvidenceID is empty — records an unsolicited fact the user volunteered.
type ProvidedFact struct {
	EvidenceID  string `json:"evidence_id,omitempty"`
	Description string `json:"description,omitempty"`
	Payload     string `json:"payload"`
}

// MilestoneClaim asserts that the evidence referenced supports setting a
// milestone. Claims come from parsed model output or the caller.
type MilestoneClaim struct {
	Milestone    Milestone `json:"milestone"`
	EvidenceRefs []string  `json:"evidence_refs,omitempty"`
}

// HypothesisProposal seeds a new candidate explanation.
type HypothesisProposal struct {
	Statement      string  `json:"statement"`
	SeedConfidence float64 `json:"seed_confidence"`
}

// EvidenceLink ties an existing evidence entry to an existing hypothesis as
// support or contradiction.
type EvidenceLink struct {
	HypothesisID string `json:"hypothesis_id"`
	EvidenceID   string `json:"evidence_id"`
	Supports     bool   `json:"supports"`
}

// TurnInput is everything one conversational turn contributes. Fields are
// independent; any subset may be present, including all of them on turn one.
type TurnInput struct {
	Statement string `json:"statement,omitempty"`

	// CommitToInvestigation moves a CONSULTING case to INVESTIGATING.
	CommitToInvestigation bool `json:"commit_to_investigation,omitempty"`

	NewFindings []string       `json:"new_findings,omitempty"`
	Provided    []ProvidedFact `json:"provided,omitempty"`
	Rejected    []struct {
		EvidenceID string `json:"evidence_id"`
		Reason     string `json:"reason"`
	} `json:"rejected,omitempty"`
	// Validate promotes received evidence entries that checked out.
	Validate []string `json:"validate,omitempty"`

	Proposals []HypothesisProposal `json:"proposals,omitempty"`
	Links     []EvidenceLink       `json:"links,omitempty"`
	Retire    []string             `json:"retire,omitempty"`

	Claims []MilestoneClaim `json:"claims,omitempty"`

	// Severity is an externally supplied urgency signal; empty leaves the
	// case's urgency unchanged.
	Severity string `json:"severity,omitempty"`
	// ProblemResolved reports whether the underlying problem is still
	// actively occurring; nil leaves the temporal classification unchanged.
	ProblemResolved *bool `json:"problem_resolved,omitempty"`

	Conclusion string `json:"conclusion,omitempty"`
}

// TurnResult is the committed view returned to the caller. On rejection it
// carries the last-committed state plus a reason code; the caller never
// observes a half-applied mutation set.
type TurnResult struct {
	CaseID        string                `json:"case_id"`
	Turn          int                   `json:"turn"`
	Status        CaseStatus            `json:"status"`
	Stage         *Stage                `json:"stage,omitempty"`
	Progress      InvestigationProgress `json:"progress"`
	NewMilestones []Milestone           `json:"new_milestones,omitempty"`
	Path          *PathSelection        `json:"path,omitempty"`
	Stalled       bool                  `json:"stalled"`
	Reason        string                `json:"reason,omitempty"`
}
