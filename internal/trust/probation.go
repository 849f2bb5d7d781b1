package trust

import (
	"context"
	"fmt"
	"time"

	"github.com/vorion/trustgate/internal/model"
)

// probationWindow is the fixed duration of a probation period.
const probationWindow = 30 * 24 * time.Hour

// GetAgent loads an agent's trust record, lazily clearing an expired
// probation. There is no background timer; the deadline is evaluated on
// every query and the cleared flag is persisted.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*model.TrustRecord, error) {
	rec, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("trust: load agent: %w", err)
	}

	if rec.OnProbation && rec.ProbationStartedAt != nil &&
		s.now().Sub(*rec.ProbationStartedAt) >= probationWindow {
		if err := s.store.UpdateProbation(ctx, agentID, false, nil); err != nil {
			return nil, fmt.Errorf("trust: clear expired probation: %w", err)
		}
		rec.OnProbation = false
		rec.ProbationStartedAt = nil
	}

	return rec, nil
}

// StartProbation places an agent on probation immediately.
func (s *Service) StartProbation(ctx context.Context, agentID string) error {
	started := s.now()
	if err := s.store.UpdateProbation(ctx, agentID, true, &started); err != nil {
		return fmt.Errorf("trust: start probation: %w", err)
	}
	return nil
}

// EndProbation lifts probation before its window expires.
func (s *Service) EndProbation(ctx context.Context, agentID string) error {
	if err := s.store.UpdateProbation(ctx, agentID, false, nil); err != nil {
		return fmt.Errorf("trust: end probation: %w", err)
	}
	return nil
}
