// Package trust owns the trust score lifecycle: conception, scored
// mutation, inactivity decay, and probation.
package trust

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vorion/trustgate/internal/model"
)

// baselineScore is the conception starting score per hierarchy level.
var baselineScore = map[model.HierarchyLevel]model.TrustScore{
	model.L0: 75,
	model.L1: 125,
	model.L2: 175,
	model.L3: 250,
	model.L4: 350,
	model.L5: 450,
	model.L6: 550,
	model.L7: 675,
	model.L8: 800,
}

// scoreCeiling and scoreFloor bound what an agent at each level can
// reach over its lifetime. Reported at conception for the caller's use.
var scoreCeiling = map[model.HierarchyLevel]model.TrustScore{
	model.L0: 300, model.L1: 400, model.L2: 500, model.L3: 600, model.L4: 700,
	model.L5: 800, model.L6: 900, model.L7: 950, model.L8: 1000,
}

var scoreFloor = map[model.HierarchyLevel]model.TrustScore{
	model.L0: 10, model.L1: 10, model.L2: 25, model.L3: 25, model.L4: 50,
	model.L5: 50, model.L6: 75, model.L7: 75, model.L8: 100,
}

// creationModifier adjusts the baseline by how the agent was created.
var creationModifier = map[model.CreationType]int{
	model.CreationFresh:    0,
	model.CreationCloned:   -25,
	model.CreationEvolved:  30,
	model.CreationPromoted: 50,
	model.CreationImported: -50,
}

// domainProfile carries the additive modifier and the enforced minimum
// for a domain. The minimum applies after all additive modifiers.
type domainProfile struct {
	Modifier int
	Minimum  model.TrustScore
}

var domainProfiles = map[string]domainProfile{
	"general":    {Modifier: 0, Minimum: 50},
	"technology": {Modifier: 0, Minimum: 100},
	"education":  {Modifier: 0, Minimum: 75},
	"finance":    {Modifier: 25, Minimum: 150},
	"healthcare": {Modifier: 25, Minimum: 150},
	"security":   {Modifier: 50, Minimum: 200},
}

// vettingBonus rewards the review gate the agent passed before creation.
var vettingBonus = map[model.VettingGate]int{
	model.VettingNone:     0,
	model.VettingBasic:    20,
	model.VettingStandard: 50,
	model.VettingRigorous: 90,
	model.VettingCouncil:  150,
}

const (
	courseBonus        = 15
	certificationBonus = 25
)

// trainerInfluence maps a trainer's own score band to a bonus or penalty.
func trainerInfluence(score model.TrustScore) int {
	switch {
	case score >= 800:
		return 40
	case score >= 600:
		return 25
	case score >= 400:
		return 10
	case score < 200:
		return -15
	default:
		return 0
	}
}

// creatorInfluence is the trainer band table at half magnitude.
func creatorInfluence(score model.TrustScore) int {
	switch {
	case score >= 800:
		return 20
	case score >= 600:
		return 10
	case score < 200:
		return -10
	default:
		return 0
	}
}

// lineageInheritance computes the inherited fraction of the parent's
// score: parentScore * 0.2 * 0.9^generation, rounded.
func lineageInheritance(l *model.Lineage) int {
	gen := l.Generation
	if gen < 0 {
		gen = 0
	}
	return int(math.Round(float64(l.ParentScore) * 0.2 * math.Pow(0.9, float64(gen))))
}

// CalculateConceptionTrust computes an agent's initial trust state. It is
// pure: identical input always yields the identical score and rationale.
// The ordered rationale list records every applied modifier and its
// magnitude; that list is the accountability contract of conception.
func CalculateConceptionTrust(cctx *model.ConceptionContext) (*model.ConceptionResult, error) {
	if !cctx.HierarchyLevel.Valid() {
		return nil, fmt.Errorf("trust: invalid hierarchy level %d", int(cctx.HierarchyLevel))
	}

	var rationale []model.RationaleEntry
	add := func(step string, delta int, detail string) {
		rationale = append(rationale, model.RationaleEntry{Step: step, Delta: delta, Detail: detail})
	}

	score := int(baselineScore[cctx.HierarchyLevel])
	add("baseline", score, fmt.Sprintf("hierarchy level %s baseline", cctx.HierarchyLevel))

	if mod, ok := creationModifier[cctx.CreationType]; ok {
		score += mod
		add("creation-type", mod, fmt.Sprintf("creation type %q", cctx.CreationType))
	} else {
		add("creation-type", 0, fmt.Sprintf("unknown creation type %q treated as fresh", cctx.CreationType))
	}

	domain := strings.ToLower(cctx.Domain)
	profile, ok := domainProfiles[domain]
	if !ok {
		profile = domainProfiles["general"]
		domain = "general"
	}
	score += profile.Modifier
	add("domain-modifier", profile.Modifier, fmt.Sprintf("domain %q", domain))

	bonus := vettingBonus[cctx.VettingGate]
	score += bonus
	add("vetting-gate", bonus, fmt.Sprintf("vetting gate %q", cctx.VettingGate))

	if cctx.Lineage != nil {
		inherited := lineageInheritance(cctx.Lineage)
		score += inherited
		add("lineage-inheritance", inherited,
			fmt.Sprintf("parent %s score %d, generation %d",
				cctx.Lineage.ParentID, cctx.Lineage.ParentScore, cctx.Lineage.Generation))
	}

	if cctx.TrainerScore != nil {
		infl := trainerInfluence(*cctx.TrainerScore)
		score += infl
		add("trainer-influence", infl, fmt.Sprintf("trainer score %d", *cctx.TrainerScore))
	}
	if cctx.CreatorScore != nil {
		infl := creatorInfluence(*cctx.CreatorScore)
		score += infl
		add("creator-influence", infl, fmt.Sprintf("creator score %d", *cctx.CreatorScore))
	}

	academy := courseBonus*cctx.CompletedCourses + certificationBonus*cctx.CompletedCertifications
	if academy != 0 {
		score += academy
		add("academy", academy, fmt.Sprintf("%d courses, %d certifications",
			cctx.CompletedCourses, cctx.CompletedCertifications))
	}

	// Domain minimum applies after all additive modifiers.
	if min := int(profile.Minimum); score < min {
		add("domain-minimum", min-score, fmt.Sprintf("domain %q enforces minimum %d", domain, min))
		score = min
	}

	final := model.TrustScore(score).Clamp()
	if int(final) != score {
		add("clamp", int(final)-score, "score clamped to [0, 1000]")
	}

	return &model.ConceptionResult{
		AgentID:     cctx.AgentID,
		Score:       final,
		Tier:        model.TierForScore(final),
		Autonomy:    model.AutonomyForScore(final),
		Supervision: model.SupervisionForScore(final),
		Ceiling:     scoreCeiling[cctx.HierarchyLevel],
		Floor:       scoreFloor[cctx.HierarchyLevel],
		Rationale:   rationale,
	}, nil
}

// Conceive computes conception trust and persists the new trust record
// with its conception history entry.
func (s *Service) Conceive(ctx context.Context, cctx *model.ConceptionContext) (*model.ConceptionResult, error) {
	if cctx.AgentID == "" {
		return nil, fmt.Errorf("trust: conception requires an agent id")
	}

	result, err := CalculateConceptionTrust(cctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &model.TrustRecord{
		AgentID:        cctx.AgentID,
		HierarchyLevel: cctx.HierarchyLevel,
		Score:          result.Score,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	rec.Rederive()

	hist := &model.TrustHistoryEntry{
		AgentID:       cctx.AgentID,
		PreviousScore: 0,
		NewScore:      result.Score,
		Delta:         int(result.Score),
		Tier:          result.Tier,
		Reason:        conceptionReason(result),
		ChangeType:    model.ChangeManual,
		Timestamp:     now,
		Metadata: map[string]string{
			"creation_type": string(cctx.CreationType),
			"vetting_gate":  string(cctx.VettingGate),
			"domain":        cctx.Domain,
		},
	}

	if err := s.store.CreateAgent(ctx, rec, hist); err != nil {
		return nil, fmt.Errorf("trust: persist conception: %w", err)
	}
	return result, nil
}

func conceptionReason(result *model.ConceptionResult) string {
	parts := make([]string, 0, len(result.Rationale))
	for _, r := range result.Rationale {
		parts = append(parts, fmt.Sprintf("%s %+d", r.Step, r.Delta))
	}
	return "conception: " + strings.Join(parts, ", ")
}
