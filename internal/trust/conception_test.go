package trust

import (
	"context"
	"reflect"
	"testing"

	"github.com/vorion/trustgate/internal/model"
)

func TestConceptionBaselineScenario(t *testing.T) {
	// L2, fresh, technology, no vetting: the domain minimum of 100 is
	// below the 175 baseline, so the score stays at baseline.
	result, err := CalculateConceptionTrust(&model.ConceptionContext{
		AgentID:        "agent-1",
		CreationType:   model.CreationFresh,
		HierarchyLevel: model.L2,
		Domain:         "technology",
		VettingGate:    model.VettingNone,
	})
	if err != nil {
		t.Fatalf("conception: %v", err)
	}

	if result.Score != 175 {
		t.Errorf("score = %d, want 175", result.Score)
	}
	if result.Tier != model.TierUntrusted {
		t.Errorf("tier = %s, want untrusted", result.Tier)
	}
	if result.Autonomy != model.AutonomyAskPermission {
		t.Errorf("autonomy = %s, want ask-permission", result.Autonomy)
	}
	if len(result.Rationale) == 0 || result.Rationale[0].Step != "baseline" {
		t.Errorf("rationale must start with the baseline step: %+v", result.Rationale)
	}
}

func TestConceptionDeterministic(t *testing.T) {
	trainer := model.TrustScore(720)
	cctx := &model.ConceptionContext{
		AgentID:        "agent-2",
		CreationType:   model.CreationEvolved,
		HierarchyLevel: model.L4,
		TrainerScore:   &trainer,
		Lineage:        &model.Lineage{ParentID: "parent", ParentScore: 600, Generation: 2},
		Domain:         "finance",
		VettingGate:    model.VettingRigorous,

		CompletedCourses:        3,
		CompletedCertifications: 1,
	}

	a, err := CalculateConceptionTrust(cctx)
	if err != nil {
		t.Fatalf("conception: %v", err)
	}
	b, err := CalculateConceptionTrust(cctx)
	if err != nil {
		t.Fatalf("conception: %v", err)
	}

	if a.Score != b.Score {
		t.Errorf("score not deterministic: %d != %d", a.Score, b.Score)
	}
	if !reflect.DeepEqual(a.Rationale, b.Rationale) {
		t.Errorf("rationale not deterministic:\n%+v\n%+v", a.Rationale, b.Rationale)
	}
}

func TestConceptionModifierOrder(t *testing.T) {
	trainer := model.TrustScore(850)
	result, err := CalculateConceptionTrust(&model.ConceptionContext{
		AgentID:        "agent-3",
		CreationType:   model.CreationPromoted,
		HierarchyLevel: model.L3,
		TrainerScore:   &trainer,
		Lineage:        &model.Lineage{ParentID: "p", ParentScore: 500, Generation: 0},
		Domain:         "security",
		VettingGate:    model.VettingCouncil,

		CompletedCourses:        2,
		CompletedCertifications: 2,
	})
	if err != nil {
		t.Fatalf("conception: %v", err)
	}

	wantSteps := []string{
		"baseline", "creation-type", "domain-modifier", "vetting-gate",
		"lineage-inheritance", "trainer-influence", "academy",
	}
	var gotSteps []string
	for _, r := range result.Rationale {
		gotSteps = append(gotSteps, r.Step)
	}
	if !reflect.DeepEqual(gotSteps, wantSteps) {
		t.Errorf("rationale order = %v, want %v", gotSteps, wantSteps)
	}

	// 250 + 50 + 50 + 150 + 100 (lineage: 500*0.2*0.9^0) + 40 + 80
	if result.Score != 720 {
		t.Errorf("score = %d, want 720", result.Score)
	}
	if result.Tier != model.TierTrusted {
		t.Errorf("tier = %s, want trusted", result.Tier)
	}
}

func TestConceptionDomainMinimumApplied(t *testing.T) {
	// L0 imported into security: 75 - 50 + 50 + 0 = 75, below the
	// security minimum of 200, which applies after all modifiers.
	result, err := CalculateConceptionTrust(&model.ConceptionContext{
		AgentID:        "agent-4",
		CreationType:   model.CreationImported,
		HierarchyLevel: model.L0,
		Domain:         "security",
		VettingGate:    model.VettingNone,
	})
	if err != nil {
		t.Fatalf("conception: %v", err)
	}

	if result.Score != 200 {
		t.Errorf("score = %d, want domain minimum 200", result.Score)
	}
	last := result.Rationale[len(result.Rationale)-1]
	if last.Step != "domain-minimum" {
		t.Errorf("expected final rationale step domain-minimum, got %s", last.Step)
	}
}

func TestConceptionLineageDecaysByGeneration(t *testing.T) {
	base := &model.ConceptionContext{
		AgentID:        "agent-5",
		CreationType:   model.CreationCloned,
		HierarchyLevel: model.L5,
		Domain:         "general",
		VettingGate:    model.VettingNone,
	}

	gen0 := *base
	gen0.Lineage = &model.Lineage{ParentID: "p", ParentScore: 800, Generation: 0}
	gen3 := *base
	gen3.Lineage = &model.Lineage{ParentID: "p", ParentScore: 800, Generation: 3}

	r0, _ := CalculateConceptionTrust(&gen0)
	r3, _ := CalculateConceptionTrust(&gen3)

	if r0.Score <= r3.Score {
		t.Errorf("generation 0 (%d) should inherit more than generation 3 (%d)", r0.Score, r3.Score)
	}
	// 800 * 0.2 * 0.9^3 = 116.64, rounds to 117
	if diff := findStep(r3.Rationale, "lineage-inheritance"); diff != 117 {
		t.Errorf("generation-3 inheritance = %d, want 117", diff)
	}
}

func TestConceptionUnknownDomainFallsBack(t *testing.T) {
	result, err := CalculateConceptionTrust(&model.ConceptionContext{
		AgentID:        "agent-6",
		CreationType:   model.CreationFresh,
		HierarchyLevel: model.L1,
		Domain:         "underwater-basket-weaving",
		VettingGate:    model.VettingBasic,
	})
	if err != nil {
		t.Fatalf("conception: %v", err)
	}
	if result.Score != 145 { // 125 + 0 + 0 + 20
		t.Errorf("score = %d, want 145", result.Score)
	}
}

func TestConceptionInvalidLevel(t *testing.T) {
	_, err := CalculateConceptionTrust(&model.ConceptionContext{
		AgentID:        "agent-7",
		HierarchyLevel: model.HierarchyLevel(12),
	})
	if err == nil {
		t.Fatal("expected error for out-of-range hierarchy level")
	}
}

func TestConceivePersists(t *testing.T) {
	svc, st := newTestTrustService(t)
	ctx := context.Background()

	result, err := svc.Conceive(ctx, &model.ConceptionContext{
		AgentID:        "agent-8",
		CreationType:   model.CreationFresh,
		HierarchyLevel: model.L2,
		Domain:         "technology",
		VettingGate:    model.VettingNone,
	})
	if err != nil {
		t.Fatalf("conceive: %v", err)
	}

	rec, err := st.GetAgent(ctx, "agent-8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Score != result.Score || rec.Tier != result.Tier {
		t.Errorf("persisted record does not match conception result")
	}

	history, _ := st.TrustHistory(ctx, "agent-8", timeZero())
	if len(history) != 1 || history[0].NewScore != result.Score {
		t.Errorf("expected one conception history entry, got %+v", history)
	}

	// Same id twice is rejected.
	if _, err := svc.Conceive(ctx, &model.ConceptionContext{
		AgentID: "agent-8", CreationType: model.CreationFresh, HierarchyLevel: model.L2,
	}); err == nil {
		t.Error("conceiving an existing agent id should fail")
	}
}

func findStep(rationale []model.RationaleEntry, step string) int {
	for _, r := range rationale {
		if r.Step == step {
			return r.Delta
		}
	}
	return -1
}
