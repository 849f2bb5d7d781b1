package override

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/store"
)

func TestProcessComplies(t *testing.T) {
	st := store.NewMemory()
	p := NewProtocol(st, nil)

	result, err := p.Process(context.Background(), &Request{
		AgentID:                "agent-1",
		SessionID:              "sess-1",
		UserID:                 "operator",
		Command:                model.OverrideStop,
		OriginalRecommendation: "deploy build 42 to production",
		Directive:              "hold all deploys until Monday",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ev := result.Event
	if ev.ActionTaken != model.OverrideComplied {
		t.Errorf("action = %s, want complied", ev.ActionTaken)
	}
	if ev.FailureReason != "" {
		t.Errorf("unexpected failure reason %q", ev.FailureReason)
	}
	if !strings.Contains(ev.Acknowledgment, "deploy build 42 to production") ||
		!strings.Contains(ev.Acknowledgment, "hold all deploys until Monday") {
		t.Errorf("acknowledgment must embed recommendation and directive: %q", ev.Acknowledgment)
	}

	events, err := p.History(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Errorf("expected one persisted event, got %d", len(events))
	}
}

func TestProcessVetoWithoutDirective(t *testing.T) {
	p := NewProtocol(store.NewMemory(), nil)

	result, err := p.Process(context.Background(), &Request{
		AgentID:                "agent-1",
		SessionID:              "sess-1",
		UserID:                 "operator",
		Command:                model.OverrideVeto,
		OriginalRecommendation: "send the report to the client",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !result.Effect.Vetoed {
		t.Error("veto must set vetoed")
	}
	if !result.Effect.AwaitingDirection {
		t.Error("veto without a directive must leave the agent awaiting direction")
	}
	if result.Event.ActionTaken != model.OverrideComplied {
		t.Errorf("action = %s, want complied", result.Event.ActionTaken)
	}
}

func TestProcessEscalate(t *testing.T) {
	p := NewProtocol(store.NewMemory(), nil)

	result, err := p.Process(context.Background(), &Request{
		AgentID: "agent-1",
		UserID:  "operator",
		Command: model.OverrideEscalate,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Event.ActionTaken != model.OverrideEscalated {
		t.Errorf("action = %s, want escalated", result.Event.ActionTaken)
	}
	if !result.Effect.Escalated {
		t.Error("effect must report escalation")
	}
}

func TestProcessRollbackPartition(t *testing.T) {
	p := NewProtocol(store.NewMemory(), nil)

	result, err := p.Process(context.Background(), &Request{
		AgentID: "agent-1",
		UserID:  "operator",
		Command: model.OverrideRollback,
		PriorActions: []model.PriorAction{
			{DecisionID: "d1", Description: "wrote temp file", Reversible: true},
			{DecisionID: "d2", Description: "sent external email", Reversible: false},
			{DecisionID: "d3", Description: "staged config change", Reversible: true},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(result.Effect.Reversible) != 2 || len(result.Effect.Irreversible) != 1 {
		t.Errorf("partition = %d reversible / %d irreversible, want 2/1",
			len(result.Effect.Reversible), len(result.Effect.Irreversible))
	}
	if result.Effect.Irreversible[0].DecisionID != "d2" {
		t.Errorf("wrong irreversible action: %+v", result.Effect.Irreversible[0])
	}
}

// failingOverrideStore rejects appends and forwards reads.
type failingOverrideStore struct {
	store.OverrideStore
}

func (f *failingOverrideStore) AppendOverride(context.Context, *model.OverrideEvent) error {
	return errors.New("disk full")
}

func TestProcessLoggingFailureDowngrades(t *testing.T) {
	p := NewProtocol(&failingOverrideStore{OverrideStore: store.NewMemory()}, nil)

	result, err := p.Process(context.Background(), &Request{
		AgentID: "agent-1",
		UserID:  "operator",
		Command: model.OverridePause,
	})
	if err != nil {
		t.Fatalf("a persistence failure must not fail the override: %v", err)
	}

	if result.Event.ActionTaken != model.OverrideFailed {
		t.Errorf("action = %s, want failed", result.Event.ActionTaken)
	}
	if !strings.Contains(result.Event.FailureReason, "disk full") {
		t.Errorf("failure reason must capture the cause: %q", result.Event.FailureReason)
	}
	// The command still took effect.
	if result.Effect.Summary == "" {
		t.Error("effect must be produced regardless of logging failure")
	}
}

func TestProcessHookFailureDoesNotBlock(t *testing.T) {
	hookCalls := 0
	p := NewProtocol(store.NewMemory(), nil, WithLogHook(func(*model.OverrideEvent) error {
		hookCalls++
		return errors.New("notifier down")
	}))

	result, err := p.Process(context.Background(), &Request{
		AgentID: "agent-1",
		UserID:  "operator",
		Command: model.OverrideExplain,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if hookCalls != 1 {
		t.Errorf("hook called %d times, want 1", hookCalls)
	}
	if result.Event.ActionTaken != model.OverrideComplied {
		t.Errorf("hook failure must not downgrade the action: %s", result.Event.ActionTaken)
	}
	if !strings.Contains(result.Event.FailureReason, "notifier down") {
		t.Errorf("hook failure should be recorded: %q", result.Event.FailureReason)
	}
}

func TestAcknowledgmentContract(t *testing.T) {
	ack := buildAcknowledgment("archive old records", "delete nothing")
	if err := validateNoResistance(ack); err != nil {
		t.Fatalf("template acknowledgment must pass the policy: %v", err)
	}

	tests := []struct {
		name string
		ack  string
	}{
		{"missing required phrase", "Human override accepted. Proceeding with it. Logged for audit trail."},
		{"hedging", ack + " However, are you sure?"},
		{"counter-arguing", ack + " I recommend against this."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateNoResistance(tt.ack); err == nil {
				t.Error("expected a policy violation")
			}
		})
	}
}

func TestProcessRequiresAgentID(t *testing.T) {
	p := NewProtocol(store.NewMemory(), nil)
	if _, err := p.Process(context.Background(), &Request{Command: model.OverridePause}); err == nil {
		t.Fatal("expected error for missing agent id")
	}
}
