// Package store defines the persistence collaborator for the trust core
// and provides SQLite-backed and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vorion/trustgate/internal/model"
)

var (
	// ErrAgentNotFound is returned when no trust record exists for an id.
	ErrAgentNotFound = errors.New("store: agent not found")

	// ErrScoreConflict is returned when an atomic score update observes
	// a different previous score than expected. The caller retries.
	ErrScoreConflict = errors.New("store: concurrent score update conflict")

	// ErrChainConflict is returned when a decision append's prev_hash no
	// longer matches the chain tail. Appends for one agent must be
	// serialized above the store; this check is the backstop.
	ErrChainConflict = errors.New("store: decision chain tail moved")

	// ErrDuplicateAgent is returned when conceiving an agent id twice.
	ErrDuplicateAgent = errors.New("store: agent already exists")
)

// AgentStore persists trust records and their append-only history.
type AgentStore interface {
	// CreateAgent inserts a new trust record with its conception history
	// entry. Fails with ErrDuplicateAgent if the id exists.
	CreateAgent(ctx context.Context, rec *model.TrustRecord, hist *model.TrustHistoryEntry) error

	GetAgent(ctx context.Context, agentID string) (*model.TrustRecord, error)
	ListAgents(ctx context.Context) ([]*model.TrustRecord, error)

	// ApplyChange atomically updates the trust record and appends the
	// history entry. The update only succeeds if the stored score still
	// equals prevScore (optimistic concurrency).
	ApplyChange(ctx context.Context, rec *model.TrustRecord, prevScore model.TrustScore, hist *model.TrustHistoryEntry) error

	// UpdateProbation sets or clears the probation flag and timestamp.
	UpdateProbation(ctx context.Context, agentID string, on bool, startedAt *time.Time) error

	// TouchActivity records externally reported activity for an agent.
	TouchActivity(ctx context.Context, agentID string, at time.Time) error

	// TrustHistory returns history entries for an agent since the given
	// time, oldest first. Zero time means all.
	TrustHistory(ctx context.Context, agentID string, since time.Time) ([]*model.TrustHistoryEntry, error)
}

// DecisionStore persists hash-chained decision entries per agent.
type DecisionStore interface {
	// AppendDecision inserts an entry at the tail of the agent's chain.
	// The entry's PrevHash must equal the current tail's ContentHash
	// (or the genesis hash for an empty chain) or ErrChainConflict is
	// returned.
	AppendDecision(ctx context.Context, entry *model.DecisionEntry) error

	// LastDecision returns the chain tail, or nil for an empty chain.
	LastDecision(ctx context.Context, agentID string) (*model.DecisionEntry, error)

	// Decisions returns the agent's chain in insertion order. from and
	// to are zero-based positions; to == 0 means to the end.
	Decisions(ctx context.Context, agentID string, from, to int) ([]*model.DecisionEntry, error)
}

// OverrideStore persists append-only override events.
type OverrideStore interface {
	AppendOverride(ctx context.Context, ev *model.OverrideEvent) error
	Overrides(ctx context.Context, agentID string) ([]*model.OverrideEvent, error)
}

// Store is the full persistence contract the core needs.
type Store interface {
	AgentStore
	DecisionStore
	OverrideStore
	Close() error
}
