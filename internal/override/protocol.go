// Package override implements the human override channel. Overrides
// bypass all trust and capability state: any authenticated session
// participant may issue one, and the mechanism always takes effect.
// Only logging can fail.
package override

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/store"
)

// LogHook receives each override event after it is persisted. It is
// fire-and-forget: a hook error is recorded on the event but never
// blocks or reverses the override.
type LogHook func(ev *model.OverrideEvent) error

// Protocol processes human override commands.
type Protocol struct {
	store store.OverrideStore
	log   *zap.Logger
	onLog LogHook
	now   func() time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogHook installs the notification hook called per event.
func WithLogHook(hook LogHook) Option {
	return func(p *Protocol) { p.onLog = hook }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// NewProtocol creates the override processor.
func NewProtocol(st store.OverrideStore, logger *zap.Logger, opts ...Option) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Protocol{
		store: st,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request is one human override command.
type Request struct {
	AgentID   string
	SessionID string
	UserID    string
	Command   model.OverrideCommand

	// OriginalRecommendation is what the agent was about to do.
	OriginalRecommendation string

	// Directive is the operator's replacement instruction, if any.
	Directive string

	// PriorActions feeds the rollback partition. Ignored by every
	// other command.
	PriorActions []model.PriorAction
}

// Result reports a processed override. The override itself always took
// effect; ActionTaken records whether its logging did too.
type Result struct {
	Event  *model.OverrideEvent `json:"event"`
	Effect CommandEffect        `json:"effect"`
}

// Process executes a human override. The authority check is
// unconditional: the session participant issuing the command has
// authority, ownership only shapes the recorded rationale. The command
// takes effect before any I/O; persistence and the notification hook
// run afterward and their failure downgrades ActionTaken to failed
// without undoing anything.
func (p *Protocol) Process(ctx context.Context, req *Request) (*Result, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("override: agent id is required")
	}

	effect := applyCommand(req.Command, req.Directive, req.PriorActions)

	ack := buildAcknowledgment(req.OriginalRecommendation, req.Directive)
	if err := validateNoResistance(ack); err != nil {
		// A template defect, logged loudly. The override proceeds.
		p.log.Error("override acknowledgment violates no-resistance policy",
			zap.String("agent_id", req.AgentID),
			zap.String("command", string(req.Command)),
			zap.Error(err))
	}

	action := model.OverrideComplied
	if effect.Escalated {
		action = model.OverrideEscalated
	}

	ev := &model.OverrideEvent{
		ID:                     uuid.NewString(),
		AgentID:                req.AgentID,
		SessionID:              req.SessionID,
		UserID:                 req.UserID,
		Command:                req.Command,
		OriginalRecommendation: req.OriginalRecommendation,
		Directive:              req.Directive,
		Acknowledgment:         ack,
		ActionTaken:            action,
		Timestamp:              p.now(),
	}

	if err := p.store.AppendOverride(ctx, ev); err != nil {
		ev.ActionTaken = model.OverrideFailed
		ev.FailureReason = fmt.Sprintf("persist override event: %v", err)
		p.log.Error("override event not persisted",
			zap.String("agent_id", req.AgentID),
			zap.String("command", string(req.Command)),
			zap.Error(err))
	}

	if p.onLog != nil {
		if err := p.onLog(ev); err != nil {
			ev.FailureReason = fmt.Sprintf("notification hook: %v", err)
			p.log.Warn("override notification hook failed",
				zap.String("agent_id", req.AgentID),
				zap.Error(err))
		}
	}

	p.log.Info("override processed",
		zap.String("agent_id", req.AgentID),
		zap.String("session_id", req.SessionID),
		zap.String("command", string(req.Command)),
		zap.String("action_taken", string(ev.ActionTaken)))

	return &Result{Event: ev, Effect: effect}, nil
}

// History returns all recorded override events for one agent.
func (p *Protocol) History(ctx context.Context, agentID string) ([]*model.OverrideEvent, error) {
	events, err := p.store.Overrides(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("override: read history: %w", err)
	}
	return events, nil
}
