package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	// Backend is "memory" or "badger".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// PolicyConfig holds the investigation policy knobs. The decay function and
// anchoring tolerance are policy, not fixed formulas; defaults are documented
// in the hypothesis manager tests.
type PolicyConfig struct {
	DecayPerTurn         float64 `toml:"decay_per_turn"`
	SupportWeight        float64 `toml:"support_weight"`
	ContradictionPenalty float64 `toml:"contradiction_penalty"`
	SeedConfidence       float64 `toml:"seed_confidence"`
	AnchoringTolerance   float64 `toml:"anchoring_tolerance"`

	StallMinEntries        int     `toml:"stall_min_entries"`
	StallMinMentions       int     `toml:"stall_min_mentions"`
	StallConfidenceCeiling float64 `toml:"stall_confidence_ceiling"`

	MaxCommitRetries int `toml:"max_commit_retries"`
}

type MemoryConfig struct {
	SessionBudget  int `toml:"session_budget"`
	UserBudget     int `toml:"user_budget"`
	EpisodicBudget int `toml:"episodic_budget"`
	// TruncationKeep is the number of most recent turns kept verbatim when
	// the summarization collaborator is unavailable.
	TruncationKeep        int `toml:"truncation_keep"`
	SummaryTimeoutSeconds int `toml:"summary_timeout_seconds"`
}

// StrategyConfig is the (temporal_state, urgency) → strategy matrix. Keys are
// "TEMPORAL/URGENCY", e.g. "ACTIVE_INCIDENT/HIGH". New combinations are
// config additions, not code changes.
type StrategyConfig struct {
	Matrix  map[string]string `toml:"matrix"`
	Default string            `toml:"default"`
}

type PromptsConfig struct {
	Summary        string `toml:"summary"`
	Classification string `toml:"classification"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Storage  StorageConfig  `toml:"storage"`
	Policy   PolicyConfig   `toml:"policy"`
	Memory   MemoryConfig   `toml:"memory"`
	Strategy StrategyConfig `toml:"strategy"`
	Prompts  PromptsConfig  `toml:"prompts"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// Default returns the documented defaults; Load overlays the file on top.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: "memory"},
		Policy: PolicyConfig{
			DecayPerTurn:           0.05,
			SupportWeight:          0.15,
			ContradictionPenalty:   0.2,
			SeedConfidence:         0.3,
			AnchoringTolerance:     0.1,
			StallMinEntries:        3,
			StallMinMentions:       3,
			StallConfidenceCeiling: 0.5,
			MaxCommitRetries:       3,
		},
		Memory: MemoryConfig{
			SessionBudget:         256,
			UserBudget:            512,
			EpisodicBudget:        1024,
			TruncationKeep:        10,
			SummaryTimeoutSeconds: 30,
		},
		Strategy: StrategyConfig{
			Matrix: map[string]string{
				"ACTIVE_INCIDENT/HIGH":   "STABILIZE_FIRST",
				"ACTIVE_INCIDENT/MEDIUM": "MITIGATE_THEN_DIAGNOSE",
				"ACTIVE_INCIDENT/LOW":    "DIAGNOSE_WHILE_MONITORING",
				"POST_MORTEM/HIGH":       "ROOT_CAUSE_DEEP_DIVE",
				"POST_MORTEM/MEDIUM":     "TIMELINE_RECONSTRUCTION",
				"POST_MORTEM/LOW":        "THOROUGH_REVIEW",
			},
			Default: "DIAGNOSE_WHILE_MONITORING",
		},
	}
}
