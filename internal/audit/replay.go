package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/vorion/trustgate/internal/model"
)

// ReplayFilter holds filtering criteria for decision replay.
type ReplayFilter struct {
	SessionID    string
	DecisionType model.DecisionType
	From         time.Time // zero value = no lower bound
	To           time.Time // zero value = no upper bound
}

// ReplaySummary totals decisions by type and outcome for a replayed range.
type ReplaySummary struct {
	Total          int            `json:"total"`
	ByType         map[string]int `json:"by_type"`
	ByOutcome      map[string]int `json:"by_outcome"`
	FirstTimestamp string         `json:"first_timestamp,omitempty"`
	LastTimestamp  string         `json:"last_timestamp,omitempty"`
}

// ReplayResult holds the filtered entries and their summary.
type ReplayResult struct {
	AgentID string                 `json:"agent_id"`
	Entries []*model.DecisionEntry `json:"entries"`
	Summary ReplaySummary          `json:"summary"`
}

// Replay returns an agent's decisions matching the filter, in chain order.
func (s *Service) Replay(ctx context.Context, agentID string, filter ReplayFilter) (*ReplayResult, error) {
	chain, err := s.store.Decisions(ctx, agentID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: read chain: %w", err)
	}

	result := &ReplayResult{
		AgentID: agentID,
		Summary: ReplaySummary{
			ByType:    make(map[string]int),
			ByOutcome: make(map[string]int),
		},
	}

	for _, e := range chain {
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if filter.DecisionType != "" && e.DecisionType != filter.DecisionType {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}

		result.Entries = append(result.Entries, e)
		result.Summary.Total++
		result.Summary.ByType[string(e.DecisionType)]++
		result.Summary.ByOutcome[string(e.Outcome)]++
		if result.Summary.FirstTimestamp == "" {
			result.Summary.FirstTimestamp = e.Timestamp.Format(time.RFC3339)
		}
		result.Summary.LastTimestamp = e.Timestamp.Format(time.RFC3339)
	}

	return result, nil
}

// Stats describes one agent's chain for operators.
type Stats struct {
	AgentID      string `json:"agent_id"`
	Length       int    `json:"length"`
	LastRecordAt string `json:"last_record_at,omitempty"`
	Intact       bool   `json:"intact"`
}

// ChainStats reports chain length, last record time, and integrity.
func (s *Service) ChainStats(ctx context.Context, agentID string) (*Stats, error) {
	verify, err := s.VerifyChain(ctx, agentID, 0, 0)
	if err != nil {
		return nil, err
	}

	st := &Stats{AgentID: agentID, Length: verify.Length, Intact: verify.Valid}
	if verify.Length > 0 {
		tail, err := s.store.LastDecision(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("audit: read chain tail: %w", err)
		}
		if tail != nil {
			st.LastRecordAt = tail.Timestamp.Format(time.RFC3339)
		}
	}
	return st, nil
}
