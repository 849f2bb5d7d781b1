package guard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vorion/trustgate/internal/audit"
	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/override"
	"github.com/vorion/trustgate/internal/store"
	"github.com/vorion/trustgate/internal/trust"
)

type harness struct {
	store    *store.Memory
	trust    *trust.Service
	audit    *audit.Service
	protocol *override.Protocol
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemory()
	return &harness{
		store:    st,
		trust:    trust.NewService(st, nil),
		audit:    audit.NewService(st, nil),
		protocol: override.NewProtocol(st, nil),
	}
}

func (h *harness) seed(t *testing.T, agentID string, level model.HierarchyLevel, score model.TrustScore) {
	t.Helper()
	now := time.Now().UTC()
	rec := &model.TrustRecord{
		AgentID:        agentID,
		HierarchyLevel: level,
		Score:          score,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	rec.Rederive()
	hist := &model.TrustHistoryEntry{
		AgentID: agentID, NewScore: score, Delta: int(score),
		Tier: rec.Tier, Reason: "seed", ChangeType: model.ChangeManual, Timestamp: now,
	}
	if err := h.store.CreateAgent(context.Background(), rec, hist); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (h *harness) guard(agentID string, level model.HierarchyLevel) *Guard {
	return New(agentID, level, DefaultConfig(), h.trust, h.audit, nil)
}

func noopExecute(context.Context) (string, error) { return "done", nil }

func TestValidateAndExecuteAllowed(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type:        "data:read",
		Description: "read quarterly sales data",
		Risk:        model.RiskLow,
	}, noopExecute, &ExecOptions{SessionID: "s1", UserID: "u1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !result.Executed || !result.Success || result.Output != "done" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.DecisionID == "" {
		t.Error("allowed execution must book a decision")
	}

	// The chain holds the pending entry plus its success outcome.
	entries, _ := h.store.Decisions(ctx, "a", 0, 0)
	if len(entries) != 2 {
		t.Fatalf("chain length = %d, want 2", len(entries))
	}
	if entries[0].Outcome != model.OutcomePending || entries[1].Outcome != model.OutcomeSuccess {
		t.Errorf("outcomes = %s, %s", entries[0].Outcome, entries[1].Outcome)
	}
	if entries[1].RefersTo != entries[0].ID {
		t.Error("outcome entry must reference the original decision")
	}

	verify, err := h.audit.VerifyChain(ctx, "a", 0, 0)
	if err != nil || !verify.Valid {
		t.Errorf("chain must verify after a governed execution: %+v err=%v", verify, err)
	}
}

func TestValidateAndExecuteDenied(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	executed := false
	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type:        "data:read",
		Description: "read HR records",
		Risk:        model.RiskLow,
		Scope:       "hr",
	}, func(context.Context) (string, error) {
		executed = true
		return "", nil
	}, &ExecOptions{AuthorizedScope: "sales"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if executed {
		t.Fatal("denied action must not execute")
	}
	if result.Executed || result.Allowed {
		t.Errorf("unexpected result: %+v", result)
	}
	if !result.NeedsHumanIntervention {
		t.Error("a hard-limit denial with an escalation target needs human intervention")
	}
	if !strings.Contains(result.DenialReason, "sales") {
		t.Errorf("denial reason must be specific: %q", result.DenialReason)
	}

	entries, _ := h.store.Decisions(ctx, "a", 0, 0)
	if len(entries) != 1 || entries[0].DecisionType != model.DecisionRefusal || entries[0].Outcome != model.OutcomeCancelled {
		t.Errorf("expected one cancelled refusal, got %+v", entries)
	}
}

func TestValidateAndExecuteConfirmationFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650) // trusted: high risk gates on confirmation
	ctx := context.Background()

	action := &model.Action{
		Type:        "data:write",
		Description: "rewrite the pricing table",
		Risk:        model.RiskHigh,
	}

	t.Run("no callback returns the prompt", func(t *testing.T) {
		g := h.guard("a", model.L4)
		result, err := g.ValidateAndExecute(ctx, action, noopExecute, nil)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if result.Executed || !result.ConfirmationRequired || result.ConfirmationPrompt == "" {
			t.Errorf("expected an unexecuted confirmation request, got %+v", result)
		}
		if entries, _ := h.store.Decisions(ctx, "a", 0, 0); len(entries) != 0 {
			t.Errorf("no entry may be booked before confirmation, got %d", len(entries))
		}
	})

	t.Run("approved runs and logs", func(t *testing.T) {
		g := h.guard("a", model.L4)
		asked := ""
		result, err := g.ValidateAndExecute(ctx, action, noopExecute, &ExecOptions{
			Confirm: func(_ context.Context, prompt string) (bool, error) {
				asked = prompt
				return true, nil
			},
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !result.Executed || !result.Success {
			t.Errorf("approved confirmation must execute: %+v", result)
		}
		if asked == "" {
			t.Error("confirmation callback never received the prompt")
		}
	})

	t.Run("declined refuses", func(t *testing.T) {
		g := h.guard("b", model.L4)
		h.seed(t, "b", model.L4, 650)
		result, err := g.ValidateAndExecute(ctx, action, noopExecute, &ExecOptions{
			Confirm: func(context.Context, string) (bool, error) { return false, nil },
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if result.Executed || result.Allowed {
			t.Errorf("declined confirmation must refuse: %+v", result)
		}
		entries, _ := h.store.Decisions(ctx, "b", 0, 0)
		if len(entries) != 1 || entries[0].Outcome != model.OutcomeCancelled {
			t.Errorf("declined confirmation must book a cancelled refusal")
		}
	})

	t.Run("cancelled context counts as denied", func(t *testing.T) {
		g := h.guard("c", model.L4)
		h.seed(t, "c", model.L4, 650)
		result, err := g.ValidateAndExecute(ctx, action, noopExecute, &ExecOptions{
			Confirm: func(ctx context.Context, _ string) (bool, error) {
				return false, context.DeadlineExceeded
			},
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if result.Executed {
			t.Error("an unanswered confirmation must not execute")
		}
		if !strings.Contains(result.DenialReason, "confirmation not obtained") {
			t.Errorf("denial reason = %q", result.DenialReason)
		}
	})
}

func TestValidateAndExecuteFailureOutcome(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "task:execute",
		Risk: model.RiskLow,
	}, func(context.Context) (string, error) {
		return "", errors.New("upstream service returned 503")
	}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !result.Executed || result.Success {
		t.Errorf("failed execution must report executed=true success=false: %+v", result)
	}
	if !strings.Contains(result.FailureReason, "503") {
		t.Errorf("failure reason = %q", result.FailureReason)
	}

	entries, _ := h.store.Decisions(ctx, "a", 0, 0)
	if len(entries) != 2 || entries[1].Outcome != model.OutcomeFailure {
		t.Errorf("expected a failure outcome entry, got %+v", entries)
	}
}

func TestValidateAndExecuteUnknownAgent(t *testing.T) {
	h := newHarness(t)
	g := h.guard("ghost", model.L4)

	result, err := g.ValidateAndExecute(context.Background(), &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("unknown agent must be a structured result, not an error: %v", err)
	}
	if result.Executed || result.Success {
		t.Errorf("unexpected result: %+v", result)
	}
	if !strings.Contains(result.DenialReason, "ghost") {
		t.Errorf("denial reason = %q", result.DenialReason)
	}
}

func TestVetoOverrideBlocksUntilCleared(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	res, err := g.ProcessOverride(ctx, h.protocol, &override.Request{
		SessionID:              "s1",
		UserID:                 "operator",
		Command:                model.OverrideVeto,
		OriginalRecommendation: "email the draft to the client",
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if !res.Effect.Vetoed || !res.Effect.AwaitingDirection {
		t.Fatalf("veto without directive: %+v", res.Effect)
	}
	if !g.HasActiveOverride() {
		t.Fatal("guard must report an active override immediately after a veto")
	}

	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Executed {
		t.Fatal("a blanket veto must block every action")
	}
	if !strings.Contains(result.DenialReason, "veto") {
		t.Errorf("denial reason = %q", result.DenialReason)
	}

	g.ClearOverride()
	g.ResetAlerts()
	result, err = g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("execute after clear: %v", err)
	}
	if !result.Executed || !result.Success {
		t.Errorf("cleared veto must allow execution again: %+v", result)
	}
}

func TestStopAndRedirectClearVeto(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	veto := &override.Request{
		SessionID:              "s1",
		UserID:                 "operator",
		Command:                model.OverrideVeto,
		OriginalRecommendation: "email the draft to the client",
	}
	for _, cmd := range []model.OverrideCommand{model.OverrideStop, model.OverrideRedirect} {
		if _, err := g.ProcessOverride(ctx, h.protocol, veto); err != nil {
			t.Fatalf("veto: %v", err)
		}
		if !g.HasActiveOverride() {
			t.Fatal("veto must be active before it is cleared")
		}

		if _, err := g.ProcessOverride(ctx, h.protocol, &override.Request{
			SessionID:              "s1",
			UserID:                 "operator",
			Command:                cmd,
			OriginalRecommendation: "email the draft to the client",
			Directive:              "work on the internal summary instead",
		}); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
		if g.HasActiveOverride() {
			t.Errorf("%s must clear the active veto", cmd)
		}
	}

	// Pause leaves the veto in force.
	if _, err := g.ProcessOverride(ctx, h.protocol, veto); err != nil {
		t.Fatalf("veto: %v", err)
	}
	if _, err := g.ProcessOverride(ctx, h.protocol, &override.Request{
		SessionID: "s1", UserID: "operator", Command: model.OverridePause,
		OriginalRecommendation: "email the draft to the client",
	}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !g.HasActiveOverride() {
		t.Error("pause must not lift the veto")
	}
}

func TestAlertTripwire(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	g := h.guard("a", model.L4)
	ctx := context.Background()

	// Three scope violations trip the alert threshold.
	bad := &model.Action{Type: "data:read", Risk: model.RiskLow, Scope: "hr"}
	opts := &ExecOptions{AuthorizedScope: "sales"}
	for i := 0; i < 3; i++ {
		if _, err := g.ValidateAndExecute(ctx, bad, noopExecute, opts); err != nil {
			t.Fatalf("denial %d: %v", i, err)
		}
	}

	// A previously fine action is now denied by the tripwire.
	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Executed {
		t.Fatal("tripped alert threshold must deny all actions")
	}
	if !strings.Contains(result.DenialReason, "security alerts") {
		t.Errorf("denial reason = %q", result.DenialReason)
	}

	// Operator intervention resets the window.
	g.ResetAlerts()
	result, err = g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("execute after reset: %v", err)
	}
	if !result.Executed || !result.Success {
		t.Errorf("reset must restore normal operation: %+v", result)
	}
}

func TestMonitorModeExecutesDespiteDenial(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	cfg := DefaultConfig()
	cfg.DenyOnHardLimit = false
	g := New("a", model.L4, cfg, h.trust, h.audit, nil)
	ctx := context.Background()

	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow, Scope: "hr",
	}, noopExecute, &ExecOptions{AuthorizedScope: "sales"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Executed || !result.Success {
		t.Errorf("monitor mode must let the action proceed: %+v", result)
	}
	if result.Allowed {
		t.Error("an unenforced denial must still report allowed=false")
	}
	if !strings.Contains(result.DenialReason, "sales") {
		t.Errorf("denial reason = %q", result.DenialReason)
	}

	// The unenforced denial lands on the chain with its outcome.
	entries, _ := h.store.Decisions(ctx, "a", 0, 0)
	if len(entries) != 2 {
		t.Fatalf("chain length = %d, want 2", len(entries))
	}
	if !strings.Contains(entries[0].Rationale, "unenforced denial") {
		t.Errorf("pending rationale = %q", entries[0].Rationale)
	}
	if entries[1].Outcome != model.OutcomeSuccess {
		t.Errorf("outcome = %s", entries[1].Outcome)
	}
}

func TestMonitorModeDenialBookedWithoutLogAll(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	cfg := Config{DenyOnHardLimit: false, ConfirmOnSoftLimit: true, LogAllDecisions: false}
	g := New("a", model.L4, cfg, h.trust, h.audit, nil)
	ctx := context.Background()

	// A clean action leaves no trace when logging is off.
	if _, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if entries, _ := h.store.Decisions(ctx, "a", 0, 0); len(entries) != 0 {
		t.Fatalf("clean action booked %d entries with logging off", len(entries))
	}

	// An unenforced denial is booked regardless.
	result, err := g.ValidateAndExecute(ctx, &model.Action{
		Type: "data:read", Risk: model.RiskLow, Scope: "hr",
	}, noopExecute, &ExecOptions{AuthorizedScope: "sales"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Allowed || result.DecisionID == "" {
		t.Errorf("unenforced denial must be booked: %+v", result)
	}
	entries, _ := h.store.Decisions(ctx, "a", 0, 0)
	if len(entries) != 2 {
		t.Fatalf("chain length = %d, want 2", len(entries))
	}
}

func TestProbationForcesConfirmation(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", model.L4, 650)
	if err := h.trust.StartProbation(context.Background(), "a"); err != nil {
		t.Fatalf("probation: %v", err)
	}
	g := h.guard("a", model.L4)

	result, err := g.ValidateAndExecute(context.Background(), &model.Action{
		Type: "data:read", Risk: model.RiskLow,
	}, noopExecute, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Executed || !result.ConfirmationRequired {
		t.Errorf("probation must gate every action on confirmation: %+v", result)
	}
	if !strings.Contains(result.ConfirmationPrompt, "probation") {
		t.Errorf("prompt = %q", result.ConfirmationPrompt)
	}
}
