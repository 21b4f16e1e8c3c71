// Package memory maintains the tiered conversational context: working
// (current turn), session (current case), user (cross-case per owner) and
// episodic (distilled patterns across many cases). Tier membership and
// eviction belong to this manager alone; other components read through
// Retrieve.
package memory

import (
	"context"
	"fmt"
	"iter"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/driver"
)

// Summarizer is the external text-summarization capability. It must be
// callable with a timeout and safely skippable: consolidation falls back to
// truncation when it fails.
type Summarizer interface {
	Summarize(ctx context.Context, turns []string) (string, error)
}

type Manager struct {
	cfg        config.MemoryConfig
	summarizer Summarizer
	graph      driver.GraphDriver // optional insight persistence

	mu       sync.Mutex
	working  map[string][]model.MemoryEntry // caseID → current-turn entries
	session  map[string][]model.MemoryEntry // caseID → case-lifetime entries
	user     map[string][]model.MemoryEntry // owner → cross-case insights
	episodic []model.MemoryEntry            // distilled patterns, written only by consolidation
	hydrated map[string]bool                // owners whose graph insights were loaded
}

func NewManager(cfg config.MemoryConfig, s Summarizer, g driver.GraphDriver) *Manager {
	return &Manager{
		cfg:        cfg,
		summarizer: s,
		graph:      g,
		working:    make(map[string][]model.MemoryEntry),
		session:    make(map[string][]model.MemoryEntry),
		user:       make(map[string][]model.MemoryEntry),
		hydrated:   make(map[string]bool),
	}
}

// RecordTurn folds a committed turn into the tiers: working is cleared and
// rewritten, session is appended under its budget.
func (m *Manager) RecordTurn(c *model.Case, content string) {
	if content == "" {
		return
	}
	now := time.Now().UTC()
	entry := model.MemoryEntry{
		ID:        uuid.New().String(),
		Owner:     c.Owner,
		CaseID:    c.ID,
		Summary:   content,
		FromTurn:  c.Turn,
		ToTurn:    c.Turn,
		Relevance: 1.0, // current turn is maximally relevant until consolidated
		CreatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	working := entry
	working.Tier = model.TierWorking
	m.working[c.ID] = []model.MemoryEntry{working}

	sess := entry
	sess.Tier = model.TierSession
	m.session[c.ID] = evict(append(m.session[c.ID], sess), m.cfg.SessionBudget)
}

// Consolidate compresses the session tier of a closed (or long-running) case
// into a bounded insight and merges it into the user and episodic tiers.
// It operates on an immutable snapshot and must never fail the closure that
// triggered it: when the summarizer is unavailable it degrades to a
// truncation summary of the most recent turns.
func (m *Manager) Consolidate(ctx context.Context, snapshot *model.Case) error {
	m.mu.Lock()
	session := append([]model.MemoryEntry(nil), m.session[snapshot.ID]...)
	m.mu.Unlock()

	if len(session) == 0 {
		return nil
	}

	turns := make([]string, len(session))
	for i, e := range session {
		turns[i] = e.Summary
	}

	summary, err := m.summarize(ctx, turns)
	if err != nil {
		log.Printf("summarization unavailable for case %s, using truncation fallback: %v", snapshot.ID, err)
		summary = m.truncate(turns)
	}

	now := time.Now().UTC()
	insight := model.MemoryEntry{
		ID:        uuid.New().String(),
		Tier:      model.TierUser,
		Owner:     snapshot.Owner,
		CaseID:    snapshot.ID,
		Summary:   summary,
		FromTurn:  session[0].FromTurn,
		ToTurn:    session[len(session)-1].ToTurn,
		Relevance: consolidatedRelevance(snapshot),
		CreatedAt: now,
	}

	episode := insight
	episode.ID = uuid.New().String()
	episode.Tier = model.TierEpisodic
	if snapshot.Progress.RootCauseIdentified {
		episode.Summary = fmt.Sprintf("[%s] %s", snapshot.Progress.RootCauseMethod, summary)
	}

	m.mu.Lock()
	m.user[snapshot.Owner] = evict(append(m.user[snapshot.Owner], insight), m.cfg.UserBudget)
	m.episodic = evict(append(m.episodic, episode), m.cfg.EpisodicBudget)
	delete(m.session, snapshot.ID)
	delete(m.working, snapshot.ID)
	m.mu.Unlock()

	m.persistInsights(ctx, insight, episode)
	return nil
}

// Retrieve returns a lazy, finite, restartable sequence of entries visible to
// the case, ordered by relevance then recency. The sequence iterates a
// snapshot taken at call time.
func (m *Manager) Retrieve(caseID, owner, query string) iter.Seq[model.MemoryEntry] {
	m.mu.Lock()
	candidates := make([]model.MemoryEntry, 0,
		len(m.working[caseID])+len(m.session[caseID])+len(m.user[owner])+len(m.episodic))
	candidates = append(candidates, m.working[caseID]...)
	candidates = append(candidates, m.session[caseID]...)
	candidates = append(candidates, m.user[owner]...)
	candidates = append(candidates, m.episodic...)
	m.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))
	scored := make([]scoredEntry, 0, len(candidates))
	for _, e := range candidates {
		scored = append(scored, scoredEntry{entry: e, score: e.Relevance + matchBoost(e.Summary, terms)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].entry.CreatedAt.After(scored[j].entry.CreatedAt)
	})

	return func(yield func(model.MemoryEntry) bool) {
		for _, s := range scored {
			if !yield(s.entry) {
				return
			}
		}
	}
}

type scoredEntry struct {
	entry model.MemoryEntry
	score float64
}

func (m *Manager) summarize(ctx context.Context, turns []string) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	timeout := time.Duration(m.cfg.SummaryTimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.summarizer.Summarize(ctx, turns)
}

// truncate keeps the most recent TruncationKeep turns verbatim.
func (m *Manager) truncate(turns []string) string {
	keep := m.cfg.TruncationKeep
	if keep <= 0 {
		keep = 10
	}
	if len(turns) > keep {
		turns = turns[len(turns)-keep:]
	}
	return strings.Join(turns, "\n")
}

// HydrateOwner reloads persisted insights for an owner from the graph into
// the user and episodic tiers, typically after a restart. It is best effort
// and runs once per owner; in-memory entries win on ID collisions.
func (m *Manager) HydrateOwner(ctx context.Context, owner string) {
	if m.graph == nil {
		return
	}
	m.mu.Lock()
	done := m.hydrated[owner]
	m.hydrated[owner] = true
	m.mu.Unlock()
	if done {
		return
	}

	user := m.loadInsights(ctx, driver.LoadOwnerInsightsQuery, map[string]interface{}{
		"owner": owner,
		"limit": loadLimit(m.cfg.UserBudget),
	}, model.TierUser, owner)
	episodic := m.loadInsights(ctx, driver.LoadEpisodicInsightsQuery, map[string]interface{}{
		"limit": loadLimit(m.cfg.EpisodicBudget),
	}, model.TierEpisodic, "")

	m.mu.Lock()
	m.user[owner] = evict(mergeByID(m.user[owner], user), m.cfg.UserBudget)
	m.episodic = evict(mergeByID(m.episodic, episodic), m.cfg.EpisodicBudget)
	m.mu.Unlock()
}

func (m *Manager) loadInsights(ctx context.Context, query string, params map[string]interface{}, tier model.Tier, owner string) []model.MemoryEntry {
	res, err := m.graph.ExecuteQuery(ctx, query, params)
	if err != nil {
		log.Printf("failed to load %s insights: %v", tier, err)
		return nil
	}

	out := make([]model.MemoryEntry, 0, len(res.Records))
	for _, rec := range res.Records {
		entry := model.MemoryEntry{Tier: tier, Owner: owner}
		if v, ok := rec.Get("uuid"); ok {
			entry.ID, _ = v.(string)
		}
		if v, ok := rec.Get("case_id"); ok {
			entry.CaseID, _ = v.(string)
		}
		if v, ok := rec.Get("summary"); ok {
			entry.Summary, _ = v.(string)
		}
		if v, ok := rec.Get("relevance"); ok {
			entry.Relevance, _ = v.(float64)
		}
		if v, ok := rec.Get("created_at"); ok {
			if ts, tok := v.(time.Time); tok {
				entry.CreatedAt = ts
			}
		}
		if entry.ID == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func loadLimit(budget int) int {
	if budget <= 0 {
		return 1024
	}
	return budget
}

func mergeByID(existing, loaded []model.MemoryEntry) []model.MemoryEntry {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.ID] = true
	}
	for _, e := range loaded {
		if !seen[e.ID] {
			existing = append(existing, e)
		}
	}
	return existing
}

func (m *Manager) persistInsights(ctx context.Context, entries ...model.MemoryEntry) {
	if m.graph == nil {
		return
	}
	for _, e := range entries {
		params := map[string]interface{}{
			"uuid":       e.ID,
			"owner":      e.Owner,
			"case_id":    e.CaseID,
			"tier":       string(e.Tier),
			"summary":    e.Summary,
			"relevance":  e.Relevance,
			"created_at": e.CreatedAt,
		}
		if _, err := m.graph.ExecuteQuery(ctx, driver.SaveInsightNodeQuery, params); err != nil {
			log.Printf("failed to persist %s insight %s: %v", e.Tier, e.ID, err)
		}
	}
}

// evict trims a tier to its budget: lowest relevance first, ties oldest
// first. Budgets ≤ 0 mean unbounded.
func evict(entries []model.MemoryEntry, budget int) []model.MemoryEntry {
	if budget <= 0 || len(entries) <= budget {
		return entries
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Relevance != entries[j].Relevance {
			return entries[i].Relevance < entries[j].Relevance
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	survivors := entries[len(entries)-budget:]
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].CreatedAt.Before(survivors[j].CreatedAt)
	})
	return survivors
}

func matchBoost(summary string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(summary)
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// consolidatedRelevance scores a closed case's insight: corroborated root
// causes carry more weight than inconclusive sessions.
func consolidatedRelevance(c *model.Case) float64 {
	if c.Progress.RootCauseIdentified {
		return 0.5 + 0.5*c.Progress.RootCauseConfidence
	}
	return 0.4
}
