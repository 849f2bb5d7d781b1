package store

import (
	"context"
	"sync"
	"time"

	"github.com/vorion/trustgate/internal/model"
)

// Memory is an in-memory Store for tests and ephemeral embedding.
type Memory struct {
	mu        sync.RWMutex
	agents    map[string]*model.TrustRecord
	history   map[string][]*model.TrustHistoryEntry
	decisions map[string][]*model.DecisionEntry
	overrides map[string][]*model.OverrideEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:    make(map[string]*model.TrustRecord),
		history:   make(map[string][]*model.TrustHistoryEntry),
		decisions: make(map[string][]*model.DecisionEntry),
		overrides: make(map[string][]*model.OverrideEvent),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateAgent(_ context.Context, rec *model.TrustRecord, hist *model.TrustHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[rec.AgentID]; ok {
		return ErrDuplicateAgent
	}
	cp := *rec
	m.agents[rec.AgentID] = &cp
	if hist != nil {
		hc := *hist
		m.history[rec.AgentID] = append(m.history[rec.AgentID], &hc)
	}
	return nil
}

func (m *Memory) GetAgent(_ context.Context, agentID string) (*model.TrustRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) ListAgents(_ context.Context) ([]*model.TrustRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.TrustRecord, 0, len(m.agents))
	for _, rec := range m.agents {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) ApplyChange(_ context.Context, rec *model.TrustRecord, prevScore model.TrustScore, hist *model.TrustHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.agents[rec.AgentID]
	if !ok {
		return ErrAgentNotFound
	}
	if cur.Score != prevScore {
		return ErrScoreConflict
	}
	cp := *rec
	m.agents[rec.AgentID] = &cp
	hc := *hist
	m.history[rec.AgentID] = append(m.history[rec.AgentID], &hc)
	return nil
}

func (m *Memory) UpdateProbation(_ context.Context, agentID string, on bool, startedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	rec.OnProbation = on
	rec.ProbationStartedAt = startedAt
	return nil
}

func (m *Memory) TouchActivity(_ context.Context, agentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	rec.LastActivityAt = at
	return nil
}

func (m *Memory) TrustHistory(_ context.Context, agentID string, since time.Time) ([]*model.TrustHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.TrustHistoryEntry
	for _, h := range m.history[agentID] {
		if !since.IsZero() && h.Timestamp.Before(since) {
			continue
		}
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) AppendDecision(_ context.Context, entry *model.DecisionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.decisions[entry.AgentID]
	tail := ""
	if len(chain) > 0 {
		tail = chain[len(chain)-1].ContentHash
	}
	if tail != "" && entry.PrevHash != tail {
		return ErrChainConflict
	}
	cp := *entry
	m.decisions[entry.AgentID] = append(chain, &cp)
	return nil
}

func (m *Memory) LastDecision(_ context.Context, agentID string) (*model.DecisionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.decisions[agentID]
	if len(chain) == 0 {
		return nil, nil
	}
	cp := *chain[len(chain)-1]
	return &cp, nil
}

func (m *Memory) Decisions(_ context.Context, agentID string, from, to int) ([]*model.DecisionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.decisions[agentID]
	if from < 0 {
		from = 0
	}
	if to <= 0 || to > len(chain) {
		to = len(chain)
	}
	if from >= to {
		return nil, nil
	}
	out := make([]*model.DecisionEntry, 0, to-from)
	for _, e := range chain[from:to] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// Tamper overwrites a stored decision in place. Test helper for chain
// verification; a real store has no such operation.
func (m *Memory) Tamper(agentID string, index int, mutate func(*model.DecisionEntry)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.decisions[agentID]
	if index < 0 || index >= len(chain) {
		return false
	}
	mutate(chain[index])
	return true
}

func (m *Memory) AppendOverride(_ context.Context, ev *model.OverrideEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ev
	m.overrides[ev.AgentID] = append(m.overrides[ev.AgentID], &cp)
	return nil
}

func (m *Memory) Overrides(_ context.Context, agentID string) ([]*model.OverrideEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.OverrideEvent
	for _, ev := range m.overrides[agentID] {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}
