package model

import "time"

// Tier is a memory lifetime class, ascending: working lives one turn,
// session lives until the case closes, user and episodic are cross-case.
type Tier string

const (
	TierWorking  Tier = "working"
	TierSession  Tier = "session"
	TierUser     Tier = "user"
	TierEpisodic Tier = "episodic"
)

// MemoryEntry is one record in a tier. Tier membership and eviction are
// owned exclusively by the memory manager.
type MemoryEntry struct {
	ID        string    `json:"id"`
	Tier      Tier      `json:"tier"`
	Owner     string    `json:"owner,omitempty"`
	CaseID    string    `json:"case_id,omitempty"`
	Summary   string    `json:"summary"`
	FromTurn  int       `json:"from_turn"`
	ToTurn    int       `json:"to_turn"`
	Relevance float64   `json:"relevance"`
	CreatedAt time.Time `json:"created_at"`
}
