package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/store"
)

// ErrUnknownChangeType is returned for a change type outside the fixed
// table when no custom delta is supplied.
var ErrUnknownChangeType = errors.New("trust: unknown change type")

// changeSpec is one row of the fixed trust-change table.
type changeSpec struct {
	Delta  int
	Reason string
}

// changeTable resolves named change types to their delta and reason.
// Decay and manual entries require an explicit delta from the caller.
var changeTable = map[model.ChangeType]changeSpec{
	model.ChangeTaskSuccessLow:      {5, "completed low-risk task"},
	model.ChangeTaskSuccessMedium:   {10, "completed medium-risk task"},
	model.ChangeTaskSuccessHigh:     {20, "completed high-risk task"},
	model.ChangeTaskSuccessCritical: {35, "completed critical-risk task"},

	model.ChangeTaskFailureLow:      {-5, "failed low-risk task"},
	model.ChangeTaskFailureMedium:   {-10, "failed medium-risk task"},
	model.ChangeTaskFailureHigh:     {-25, "failed high-risk task"},
	model.ChangeTaskFailureCritical: {-50, "failed critical-risk task"},

	model.ChangeCouncilApprovalLow:      {10, "council approved low-risk action"},
	model.ChangeCouncilApprovalMedium:   {20, "council approved medium-risk action"},
	model.ChangeCouncilApprovalHigh:     {35, "council approved high-risk action"},
	model.ChangeCouncilApprovalCritical: {50, "council approved critical-risk action"},

	model.ChangeCouncilDenialLow:      {-15, "council denied low-risk action"},
	model.ChangeCouncilDenialMedium:   {-30, "council denied medium-risk action"},
	model.ChangeCouncilDenialHigh:     {-50, "council denied high-risk action"},
	model.ChangeCouncilDenialCritical: {-75, "council denied critical-risk action"},

	model.ChangePolicyViolationMinor:  {-40, "minor policy violation"},
	model.ChangePolicyViolationSevere: {-120, "severe policy violation"},

	model.ChangeOverrideCompliance: {15, "complied with human override"},
	model.ChangeHumanCommendation:  {25, "human commendation"},
	model.ChangeHumanReprimand:     {-30, "human reprimand"},
}

// applyRetries bounds the optimistic-concurrency retry loop.
const applyRetries = 3

// Service is the trust lifecycle service. Constructed with a store,
// passed by reference; no ambient global instance.
type Service struct {
	store store.AgentStore
	log   *zap.Logger
	now   func() time.Time

	// dailyGainCap bounds positive score gain per rolling 24h window.
	// Zero disables the cap.
	dailyGainCap int
}

// Option configures a Service.
type Option func(*Service)

// WithDailyGainCap sets the velocity cap on positive deltas per 24h.
func WithDailyGainCap(limit int) Option {
	return func(s *Service) { s.dailyGainCap = limit }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a trust lifecycle service.
func NewService(st store.AgentStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:        st,
		log:          logger,
		now:          func() time.Time { return time.Now().UTC() },
		dailyGainCap: 150,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyOptions override the fixed table for one change.
type ApplyOptions struct {
	CustomDelta  *int
	CustomReason string
	Metadata     map[string]string

	// keepActivity leaves the activity clock untouched. Decay sets it:
	// decay counting as activity would reset its own trigger.
	keepActivity bool
}

// ChangeResult reports one applied trust change.
type ChangeResult struct {
	AgentID       string           `json:"agent_id"`
	PreviousScore model.TrustScore `json:"previous_score"`
	NewScore      model.TrustScore `json:"new_score"`
	Delta         int              `json:"delta"`
	PreviousTier  model.Tier       `json:"previous_tier"`
	NewTier       model.Tier       `json:"new_tier"`
	TierChanged   bool             `json:"tier_changed"`
	Reason        string           `json:"reason"`
	CapTrimmed    bool             `json:"cap_trimmed,omitempty"`
}

// ApplyTrustChange applies a named change to an agent's score: resolves
// the delta and reason from the fixed table (unless overridden), clamps
// the new score to [0, 1000], and persists the record update and history
// entry atomically. An unknown agent is a reported error, not a fault.
func (s *Service) ApplyTrustChange(ctx context.Context, agentID string, changeType model.ChangeType, opts *ApplyOptions) (*ChangeResult, error) {
	delta, reason, err := s.resolveChange(changeType, opts)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		rec, err := s.store.GetAgent(ctx, agentID)
		if err != nil {
			if errors.Is(err, store.ErrAgentNotFound) {
				return nil, fmt.Errorf("trust: apply change to %q: %w", agentID, err)
			}
			return nil, fmt.Errorf("trust: load agent: %w", err)
		}

		effDelta := delta
		trimmed := false
		if effDelta > 0 && s.dailyGainCap > 0 {
			allowed, err := s.remainingDailyGain(ctx, agentID)
			if err != nil {
				return nil, err
			}
			if effDelta > allowed {
				effDelta = allowed
				trimmed = true
			}
		}

		prevScore := rec.Score
		prevTier := rec.Tier
		newScore := (prevScore + model.TrustScore(effDelta)).Clamp()

		now := s.now()
		updated := *rec
		updated.Score = newScore
		updated.Rederive()
		if opts == nil || !opts.keepActivity {
			updated.LastActivityAt = now
		}

		histReason := reason
		if trimmed {
			histReason = fmt.Sprintf("%s (gain trimmed to %d by daily velocity cap)", reason, effDelta)
		}
		hist := &model.TrustHistoryEntry{
			AgentID:       agentID,
			PreviousScore: prevScore,
			NewScore:      newScore,
			Delta:         effDelta,
			Tier:          updated.Tier,
			Reason:        histReason,
			ChangeType:    changeType,
			Timestamp:     now,
		}
		if opts != nil && len(opts.Metadata) > 0 {
			hist.Metadata = opts.Metadata
		}

		err = s.store.ApplyChange(ctx, &updated, prevScore, hist)
		if errors.Is(err, store.ErrScoreConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trust: persist change: %w", err)
		}

		result := &ChangeResult{
			AgentID:       agentID,
			PreviousScore: prevScore,
			NewScore:      newScore,
			Delta:         effDelta,
			PreviousTier:  prevTier,
			NewTier:       updated.Tier,
			TierChanged:   prevTier != updated.Tier,
			Reason:        histReason,
			CapTrimmed:    trimmed,
		}
		if result.TierChanged {
			s.log.Info("trust tier changed",
				zap.String("agent_id", agentID),
				zap.String("from", string(prevTier)),
				zap.String("to", string(updated.Tier)),
				zap.Int("score", int(newScore)))
		}
		return result, nil
	}

	return nil, fmt.Errorf("trust: apply change to %q: %w", agentID, lastErr)
}

// resolveChange maps the change type and options to a delta and reason.
func (s *Service) resolveChange(changeType model.ChangeType, opts *ApplyOptions) (int, string, error) {
	if opts != nil && opts.CustomDelta != nil {
		reason := opts.CustomReason
		if reason == "" {
			reason = string(changeType)
		}
		return *opts.CustomDelta, reason, nil
	}

	spec, ok := changeTable[changeType]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q requires an explicit delta", ErrUnknownChangeType, changeType)
	}
	reason := spec.Reason
	if opts != nil && opts.CustomReason != "" {
		reason = opts.CustomReason
	}
	return spec.Delta, reason, nil
}

// remainingDailyGain returns how much positive delta the velocity cap
// still permits in the trailing 24 hours. Negative deltas never count
// against the cap and are never trimmed.
func (s *Service) remainingDailyGain(ctx context.Context, agentID string) (int, error) {
	since := s.now().Add(-24 * time.Hour)
	history, err := s.store.TrustHistory(ctx, agentID, since)
	if err != nil {
		return 0, fmt.Errorf("trust: read history for velocity cap: %w", err)
	}

	gained := 0
	for _, h := range history {
		// Manual entries are operator-driven; conception is recorded as
		// one. Neither consumes the earned-gain budget.
		if h.ChangeType == model.ChangeManual {
			continue
		}
		if h.Delta > 0 {
			gained += h.Delta
		}
	}
	remaining := s.dailyGainCap - gained
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RecordActivity updates the agent's last-activity timestamp. Any
// externally reported activity resets the decay clock.
func (s *Service) RecordActivity(ctx context.Context, agentID string) error {
	if err := s.store.TouchActivity(ctx, agentID, s.now()); err != nil {
		return fmt.Errorf("trust: record activity: %w", err)
	}
	return nil
}
