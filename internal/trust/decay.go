package trust

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vorion/trustgate/internal/model"
)

const (
	// decayGraceDays is how long an agent may be inactive before decay.
	decayGraceDays = 7

	// maxDecayPerRun caps the score lost in one decay run.
	maxDecayPerRun = 5

	// decayMinimumScore is the score below which decay never reaches.
	decayMinimumScore = 10

	// probationDropThreshold is the single-event drop that triggers
	// probation. Checked per decay event, not cumulatively.
	probationDropThreshold = 100

	// decayWorkers bounds concurrent per-agent decay processing.
	decayWorkers = 4
)

// DecayReport summarizes one decay batch run.
type DecayReport struct {
	Scanned            int               `json:"scanned"`
	Eligible           int               `json:"eligible"`
	Decayed            int               `json:"decayed"`
	ProbationTriggered []string          `json:"probation_triggered,omitempty"`
	Errors             map[string]string `json:"errors,omitempty"`
}

// decayAmount computes the score to shed for one agent in one run:
// min((daysInactive-7)*1, 5, score-10). Zero means no decay.
func decayAmount(daysInactive int, score model.TrustScore) int {
	if daysInactive <= decayGraceDays {
		return 0
	}
	amount := daysInactive - decayGraceDays
	if amount > maxDecayPerRun {
		amount = maxDecayPerRun
	}
	if room := int(score) - decayMinimumScore; amount > room {
		amount = room
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// RunDecay erodes the score of every eligible agent: active records not
// on probation, above the decay floor, inactive for more than the grace
// period. Per-agent failures are isolated and counted; one bad agent
// never aborts the batch.
func (s *Service) RunDecay(ctx context.Context) (*DecayReport, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("trust: list agents for decay: %w", err)
	}

	report := &DecayReport{Scanned: len(agents), Errors: make(map[string]string)}
	now := s.now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decayWorkers)

	for _, rec := range agents {
		if rec.OnProbation || rec.Score <= decayMinimumScore {
			continue
		}
		daysInactive := int(now.Sub(rec.LastActivityAt).Hours() / 24)
		amount := decayAmount(daysInactive, rec.Score)
		if amount == 0 {
			continue
		}

		mu.Lock()
		report.Eligible++
		mu.Unlock()

		rec := rec
		g.Go(func() error {
			triggered, err := s.decayOne(gctx, rec, daysInactive, amount)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[rec.AgentID] = err.Error()
				return nil // isolate, continue the batch
			}
			report.Decayed++
			if triggered {
				report.ProbationTriggered = append(report.ProbationTriggered, rec.AgentID)
			}
			return nil
		})
	}

	_ = g.Wait()

	s.log.Info("decay batch complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("eligible", report.Eligible),
		zap.Int("decayed", report.Decayed),
		zap.Int("errors", len(report.Errors)))

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return report, nil
}

// decayOne applies one decay event to one agent through the normal
// score-mutation path, then evaluates the probation threshold against
// this single event's drop.
func (s *Service) decayOne(ctx context.Context, rec *model.TrustRecord, daysInactive, amount int) (bool, error) {
	delta := -amount
	result, err := s.applyDecay(ctx, rec.AgentID, delta, daysInactive)
	if err != nil {
		return false, err
	}

	drop := int(result.PreviousScore) - int(result.NewScore)
	if drop >= probationDropThreshold {
		started := s.now()
		if err := s.store.UpdateProbation(ctx, rec.AgentID, true, &started); err != nil {
			return false, fmt.Errorf("start probation: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// applyDecay routes decay through ApplyTrustChange with the activity
// clock left untouched: decay counting as activity would reset its own
// trigger.
func (s *Service) applyDecay(ctx context.Context, agentID string, delta, daysInactive int) (*ChangeResult, error) {
	return s.ApplyTrustChange(ctx, agentID, model.ChangeDecay, &ApplyOptions{
		CustomDelta:  &delta,
		CustomReason: fmt.Sprintf("inactivity decay after %d days idle", daysInactive),
		keepActivity: true,
	})
}
