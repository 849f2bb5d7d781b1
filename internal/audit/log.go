package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/store"
)

var (
	// ErrDecisionNotFound is returned when an outcome update references
	// an unknown decision id.
	ErrDecisionNotFound = errors.New("audit: decision not found")

	// ErrOutcomeAlreadyRecorded is returned when a decision already has
	// an outcome-update entry. Outcomes transition exactly once.
	ErrOutcomeAlreadyRecorded = errors.New("audit: outcome already recorded")

	// ErrNotTerminal is returned for an outcome update that is not a
	// terminal outcome.
	ErrNotTerminal = errors.New("audit: outcome update must be terminal")
)

// Service owns the decision chains. It is constructed with a store and
// passed by reference to the guard; there is no ambient global instance.
type Service struct {
	store store.DecisionStore
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates an audit service over the given decision store.
func NewService(st store.DecisionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store: st,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[string]*sync.Mutex),
	}
}

// agentLock returns the mutex serializing appends for one agent's chain.
// Chains for different agents append concurrently without coordination.
func (s *Service) agentLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[agentID] = l
	}
	return l
}

// Record appends a decision entry to its agent's chain. It assigns the
// id and timestamp if unset, links prev_hash to the chain tail (genesis
// for an empty chain), computes the content hash, and persists. The
// stored entry is returned.
func (s *Service) Record(ctx context.Context, entry *model.DecisionEntry) (*model.DecisionEntry, error) {
	if entry.AgentID == "" {
		return nil, fmt.Errorf("audit: entry has no agent id")
	}

	lock := s.agentLock(entry.AgentID)
	lock.Lock()
	defer lock.Unlock()

	return s.recordLocked(ctx, entry)
}

// recordLocked appends an entry. The caller holds the agent's lock.
func (s *Service) recordLocked(ctx context.Context, entry *model.DecisionEntry) (*model.DecisionEntry, error) {
	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = s.now()
	}
	if cp.Outcome == "" {
		cp.Outcome = model.OutcomePending
	}

	tail, err := s.store.LastDecision(ctx, cp.AgentID)
	if err != nil {
		return nil, fmt.Errorf("audit: read chain tail: %w", err)
	}
	if tail == nil {
		cp.PrevHash = GenesisHash
	} else {
		cp.PrevHash = tail.ContentHash
	}

	hash, err := ContentHash(&cp)
	if err != nil {
		return nil, err
	}
	cp.ContentHash = hash

	if err := s.store.AppendDecision(ctx, &cp); err != nil {
		return nil, fmt.Errorf("audit: append: %w", err)
	}

	s.log.Debug("decision recorded",
		zap.String("agent_id", cp.AgentID),
		zap.String("decision_id", cp.ID),
		zap.String("type", string(cp.DecisionType)),
		zap.String("outcome", string(cp.Outcome)))

	return &cp, nil
}

// RecordOutcome appends a new hash-linked entry that transitions a
// pending decision to a terminal outcome. History is never rewritten;
// the update is itself a chain link referencing the original via
// RefersTo, and each decision's outcome transitions exactly once.
func (s *Service) RecordOutcome(ctx context.Context, agentID, decisionID string, outcome model.Outcome, rationale string) (*model.DecisionEntry, error) {
	if !outcome.Terminal() {
		return nil, ErrNotTerminal
	}

	// The duplicate scan and the append must sit under the same lock:
	// two racing updates for one decision would otherwise both pass the
	// scan and both land on the chain.
	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	chain, err := s.store.Decisions(ctx, agentID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: read chain: %w", err)
	}

	var original *model.DecisionEntry
	for _, e := range chain {
		if e.ID == decisionID {
			original = e
		}
		if e.RefersTo == decisionID {
			return nil, ErrOutcomeAlreadyRecorded
		}
	}
	if original == nil {
		return nil, ErrDecisionNotFound
	}

	update := &model.DecisionEntry{
		AgentID:        agentID,
		HierarchyLevel: original.HierarchyLevel,
		SessionID:      original.SessionID,
		DecisionType:   original.DecisionType,
		Rationale:      rationale,
		Confidence:     original.Confidence,
		Outcome:        outcome,
		RefersTo:       decisionID,
		PolicyHash:     original.PolicyHash,
	}
	return s.recordLocked(ctx, update)
}
