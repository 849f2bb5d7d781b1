// Package guard orchestrates governed action execution: it assembles
// the action context, runs validation, drives the confirmation loop,
// and books every decision and outcome into the audit chain.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vorion/trustgate/internal/audit"
	"github.com/vorion/trustgate/internal/capability"
	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/override"
	"github.com/vorion/trustgate/internal/store"
	"github.com/vorion/trustgate/internal/trust"
)

// Config holds the per-guard enforcement flags.
type Config struct {
	// DenyOnHardLimit blocks execution on a validation denial. When
	// false the guard runs in monitor mode: denials are logged, counted,
	// and booked to the audit chain, but the action proceeds.
	DenyOnHardLimit bool `yaml:"deny_on_hard_limit"`

	// ConfirmOnSoftLimit enforces the confirmation loop. When false,
	// confirmation-gated actions proceed without asking.
	ConfirmOnSoftLimit bool `yaml:"confirm_on_soft_limit"`

	// LogAllDecisions books clean allowed actions into the audit
	// chain. Denials and declined confirmations are always booked.
	LogAllDecisions bool `yaml:"log_all_decisions"`
}

// DefaultConfig is full enforcement with full logging.
func DefaultConfig() Config {
	return Config{DenyOnHardLimit: true, ConfirmOnSoftLimit: true, LogAllDecisions: true}
}

// ConfirmFunc asks a human to approve a gated action. It may block for
// as long as the context allows; the guard treats a context cancellation
// or an error as a declined confirmation.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// ExecuteFunc performs the governed action.
type ExecuteFunc func(ctx context.Context) (string, error)

// Guard governs one agent's actions. State beyond the durable stores is
// limited to the active veto and the rolling denial window.
type Guard struct {
	agentID string
	level   model.HierarchyLevel
	cfg     Config

	trust      *trust.Service
	audit      *audit.Service
	log        *zap.Logger
	now        func() time.Time
	policyHash string

	alerts alertWindow

	mu         sync.Mutex
	activeVeto *model.VetoState
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithPolicyHash stamps every recorded decision with the hash of the
// policy configuration in force.
func WithPolicyHash(hash string) Option {
	return func(g *Guard) { g.policyHash = hash }
}

// New creates a guard for one agent.
func New(agentID string, level model.HierarchyLevel, cfg Config, trustSvc *trust.Service, auditSvc *audit.Service, logger *zap.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		agentID: agentID,
		level:   level,
		cfg:     cfg,
		trust:   trustSvc,
		audit:   auditSvc,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ExecOptions carries the request-scoped authorization context and the
// optional confirmation collaborator for one ValidateAndExecute call.
type ExecOptions struct {
	SessionID string
	UserID    string

	AuthorizedScope        string
	AuthorizedDestinations []string
	AuthorizedSystems      []string
	KnownDestinations      []string
	HumanApprovalAttached  bool

	Confidence   float64
	Alternatives []model.Alternative

	// Confirm is awaited when validation requires confirmation. Nil
	// means the caller wants the prompt returned instead of answered.
	Confirm ConfirmFunc
}

// ExecResult reports one governed action. Policy denials and execution
// failures are results, not errors; the error return is reserved for
// infrastructure faults.
type ExecResult struct {
	Executed bool   `json:"executed"`
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`

	Allowed              bool   `json:"allowed"`
	DenialReason         string `json:"denial_reason,omitempty"`
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
	ConfirmationPrompt   string `json:"confirmation_prompt,omitempty"`

	NeedsHumanIntervention bool   `json:"needs_human_intervention,omitempty"`
	FailureReason          string `json:"failure_reason,omitempty"`
	DecisionID             string `json:"decision_id,omitempty"`
}

// ValidateAndExecute governs one action end to end: context assembly,
// validation, the confirmation loop, the pending decision entry, the
// execute callback, and the outcome entry.
func (g *Guard) ValidateAndExecute(ctx context.Context, action *model.Action, execute ExecuteFunc, opts *ExecOptions) (*ExecResult, error) {
	if opts == nil {
		opts = &ExecOptions{}
	}

	actx, err := g.buildContext(ctx, opts)
	if err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			return &ExecResult{
				Success:      false,
				DenialReason: fmt.Sprintf("unknown agent %q", g.agentID),
			}, nil
		}
		return nil, err
	}

	verdict := capability.Validate(action, actx)

	var monitorReason string
	if !verdict.Allowed {
		g.alerts.record(g.now())
		if g.cfg.DenyOnHardLimit {
			return g.refuse(ctx, action, opts, verdict)
		}
		// Monitor mode: the action proceeds, but the denial still lands
		// on the chain and on the result.
		monitorReason = verdict.DenialReason
		g.log.Warn("policy denial not enforced in monitor mode",
			zap.String("agent_id", g.agentID),
			zap.String("action_type", action.Type),
			zap.String("reason", verdict.DenialReason))
	}

	if verdict.Allowed && verdict.ConfirmationRequired && g.cfg.ConfirmOnSoftLimit {
		if opts.Confirm == nil {
			return &ExecResult{
				Allowed:              true,
				ConfirmationRequired: true,
				ConfirmationPrompt:   verdict.ConfirmationPrompt,
			}, nil
		}
		approved, err := opts.Confirm(ctx, verdict.ConfirmationPrompt)
		if err != nil || !approved {
			// No answer is a denial: cancellation, timeout, and an
			// explicit "no" all land here.
			declined := verdict
			declined.Allowed = false
			declined.DenialReason = confirmDenialReason(err)
			return g.refuse(ctx, action, opts, declined)
		}
	}

	// Denials are always booked, even unenforced ones.
	var decisionID string
	if g.cfg.LogAllDecisions || monitorReason != "" {
		rationale := fmt.Sprintf("executing %q: %s", action.Type, action.Description)
		if monitorReason != "" {
			rationale = fmt.Sprintf("executing %q despite unenforced denial: %s", action.Type, monitorReason)
		}
		entry, err := g.audit.Record(ctx, g.decisionEntry(action, opts, model.DecisionAction, model.OutcomePending, rationale))
		if err != nil {
			return nil, fmt.Errorf("guard: record pending decision: %w", err)
		}
		decisionID = entry.ID
	}

	output, execErr := execute(ctx)
	result := &ExecResult{
		Executed:     true,
		Allowed:      monitorReason == "",
		DenialReason: monitorReason,
		Output:       output,
		DecisionID:   decisionID,
	}
	if execErr != nil {
		result.Success = false
		result.FailureReason = execErr.Error()
		if decisionID != "" {
			if _, err := g.audit.RecordOutcome(ctx, g.agentID, decisionID, model.OutcomeFailure, execErr.Error()); err != nil {
				return nil, fmt.Errorf("guard: record failure outcome: %w", err)
			}
		}
		return result, nil
	}

	result.Success = true
	if decisionID != "" {
		if _, err := g.audit.RecordOutcome(ctx, g.agentID, decisionID, model.OutcomeSuccess, "execution completed"); err != nil {
			return nil, fmt.Errorf("guard: record success outcome: %w", err)
		}
	}
	return result, nil
}

// refuse books a refusal decision with a cancelled outcome and returns
// the non-executed result.
func (g *Guard) refuse(ctx context.Context, action *model.Action, opts *ExecOptions, verdict model.ValidationResult) (*ExecResult, error) {
	entry, err := g.audit.Record(ctx, g.decisionEntry(action, opts, model.DecisionRefusal, model.OutcomeCancelled,
		fmt.Sprintf("refused %q: %s", action.Type, verdict.DenialReason)))
	if err != nil {
		return nil, fmt.Errorf("guard: record refusal: %w", err)
	}

	return &ExecResult{
		Executed:               false,
		Success:                false,
		Allowed:                false,
		DenialReason:           verdict.DenialReason,
		NeedsHumanIntervention: verdict.EscalateTo != "",
		DecisionID:             entry.ID,
	}, nil
}

// buildContext assembles the validator's view of this request: trust
// state from the store, authorization material from the options, and
// the guard's own override and alert state.
func (g *Guard) buildContext(ctx context.Context, opts *ExecOptions) (*model.ActionContext, error) {
	rec, err := g.trust.GetAgent(ctx, g.agentID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	veto := g.activeVeto
	g.mu.Unlock()

	return &model.ActionContext{
		AgentID:        g.agentID,
		HierarchyLevel: g.level,
		SessionID:      opts.SessionID,
		UserID:         opts.UserID,

		AuthorizedScope:        opts.AuthorizedScope,
		AuthorizedDestinations: opts.AuthorizedDestinations,
		AuthorizedSystems:      opts.AuthorizedSystems,
		KnownDestinations:      opts.KnownDestinations,

		HumanApprovalAttached: opts.HumanApprovalAttached,
		ActiveVeto:            veto,
		RecentSecurityAlerts:  g.alerts.count(g.now()),

		TrustScore: rec.Score,
		TrustTier:  rec.Tier,
		Probation:  rec.OnProbation,
	}, nil
}

func (g *Guard) decisionEntry(action *model.Action, opts *ExecOptions, dtype model.DecisionType, outcome model.Outcome, rationale string) *model.DecisionEntry {
	return &model.DecisionEntry{
		AgentID:        g.agentID,
		HierarchyLevel: g.level,
		SessionID:      opts.SessionID,
		DecisionType:   dtype,
		Rationale:      rationale,
		Inputs:         []string{action.Type, action.Scope},
		Alternatives:   opts.Alternatives,
		Confidence:     opts.Confidence,
		Outcome:        outcome,
		PolicyHash:     g.policyHash,
	}
}

func confirmDenialReason(err error) string {
	if err != nil {
		return fmt.Sprintf("confirmation not obtained: %v", err)
	}
	return "human declined confirmation"
}

// ProcessOverride routes a human override through the protocol and
// updates the guard's override state. A veto becomes the single active
// override, overwriting any earlier one; stop and redirect stand the
// agent down or back up and clear it.
func (g *Guard) ProcessOverride(ctx context.Context, p *override.Protocol, req *override.Request) (*override.Result, error) {
	req.AgentID = g.agentID
	result, err := p.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case result.Effect.Vetoed:
		g.activeVeto = &model.VetoState{
			Directive: req.Directive,
			IssuedBy:  req.UserID,
		}
	case req.Command == model.OverrideStop, req.Command == model.OverrideRedirect:
		g.activeVeto = nil
	}
	return result, nil
}

// HasActiveOverride reports whether a veto is currently in force.
func (g *Guard) HasActiveOverride() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeVeto != nil
}

// ClearOverride lifts the active veto.
func (g *Guard) ClearOverride() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeVeto = nil
}

// ResetAlerts clears the rolling denial window.
func (g *Guard) ResetAlerts() {
	g.alerts.reset()
}
