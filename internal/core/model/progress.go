package model

// InvestigationProgress is a flat set of independently-settable milestone
// flags. There is no stored phase number; the stage is always derived.
// Milestones are monotone within a case: once true they stay true until an
// explicit reopen resets the whole struct.
type InvestigationProgress struct {
	SymptomVerified     bool `json:"symptom_verified"`
	ScopeAssessed       bool `json:"scope_assessed"`
	TimelineEstablished bool `json:"timeline_established"`
	ChangesIdentified   bool `json:"changes_identified"`

	RootCauseIdentified bool    `json:"root_cause_identified"`
	RootCauseConfidence float64 `json:"root_cause_confidence"`
	RootCauseMethod     string  `json:"root_cause_method,omitempty"`

	SolutionProposed bool `json:"solution_proposed"`
	SolutionApplied  bool `json:"solution_applied"`
	SolutionVerified bool `json:"solution_verified"`
}

type Stage string

const (
	StageUnderstanding Stage = "UNDERSTANDING"
	StageDiagnosing    Stage = "DIAGNOSING"
	StageResolving     Stage = "RESOLVING"
)

// Milestone names a single progress flag.
type Milestone string

const (
	MilestoneSymptomVerified     Milestone = "symptom_verified"
	MilestoneScopeAssessed       Milestone = "scope_assessed"
	MilestoneTimelineEstablished Milestone = "timeline_established"
	MilestoneChangesIdentified   Milestone = "changes_identified"
	MilestoneRootCauseIdentified Milestone = "root_cause_identified"
	MilestoneSolutionProposed    Milestone = "solution_proposed"
	MilestoneSolutionApplied     Milestone = "solution_applied"
	MilestoneSolutionVerified    Milestone = "solution_verified"
)

// VerificationComplete is the conjunction of the four verification milestones.
func (p InvestigationProgress) VerificationComplete() bool {
	return p.SymptomVerified && p.ScopeAssessed && p.TimelineEstablished && p.ChangesIdentified
}

// Is reports whether the named milestone is set.
func (p InvestigationProgress) Is(m Milestone) bool {
	switch m {
	case MilestoneSymptomVerified:
		return p.SymptomVerified
	case MilestoneScopeAssessed:
		return p.ScopeAssessed
	case MilestoneTimelineEstablished:
		return p.TimelineEstablished
	case MilestoneChangesIdentified:
		return p.ChangesIdentified
	case MilestoneRootCauseIdentified:
		return p.RootCauseIdentified
	case MilestoneSolutionProposed:
		return p.SolutionProposed
	case MilestoneSolutionApplied:
		return p.SolutionApplied
	case MilestoneSolutionVerified:
		return p.SolutionVerified
	}
	return false
}
