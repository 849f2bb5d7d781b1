package model

import (
	"fmt"
	"time"
)

// TrustScore is a bounded integer score in [0, 1000].
type TrustScore int

const (
	// MinScore and MaxScore bound every trust score in the system.
	MinScore TrustScore = 0
	MaxScore TrustScore = 1000
)

// Clamp returns the score forced into [MinScore, MaxScore].
func (s TrustScore) Clamp() TrustScore {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// HierarchyLevel is the ordinal autonomy rank L0 (lowest) to L8 (highest).
type HierarchyLevel int

const (
	L0 HierarchyLevel = iota
	L1
	L2
	L3
	L4
	L5
	L6
	L7
	L8
)

// Valid reports whether the level is within the fixed 9-level scale.
func (h HierarchyLevel) Valid() bool {
	return h >= L0 && h <= L8
}

func (h HierarchyLevel) String() string {
	return fmt.Sprintf("L%d", int(h))
}

// Tier is the coarse trust band derived from a score.
type Tier string

const (
	TierUntrusted Tier = "untrusted"
	TierNovice    Tier = "novice"
	TierProven    Tier = "proven"
	TierTrusted   Tier = "trusted"
	TierElite     Tier = "elite"
	TierLegendary Tier = "legendary"
)

// TierForScore maps a score to its tier using the fixed band table:
// 0-199 untrusted, 200-399 novice, 400-599 proven, 600-799 trusted,
// 800-899 elite, 900-1000 legendary.
func TierForScore(score TrustScore) Tier {
	score = score.Clamp()
	switch {
	case score < 200:
		return TierUntrusted
	case score < 400:
		return TierNovice
	case score < 600:
		return TierProven
	case score < 800:
		return TierTrusted
	case score < 900:
		return TierElite
	default:
		return TierLegendary
	}
}

// AutonomyLevel gates how an agent may act relative to its human operator.
type AutonomyLevel string

const (
	AutonomyAskToLearn      AutonomyLevel = "ask-to-learn"
	AutonomyAskPermission   AutonomyLevel = "ask-permission"
	AutonomyNotifyBefore    AutonomyLevel = "notify-before"
	AutonomyNotifyAfter     AutonomyLevel = "notify-after"
	AutonomyFullyAutonomous AutonomyLevel = "fully-autonomous"
)

// AutonomyForScore derives the autonomy level from the final score.
// Score overrides the hierarchy level's nominal autonomy.
func AutonomyForScore(score TrustScore) AutonomyLevel {
	score = score.Clamp()
	switch {
	case score < 150:
		return AutonomyAskToLearn
	case score < 400:
		return AutonomyAskPermission
	case score < 600:
		return AutonomyNotifyBefore
	case score < 800:
		return AutonomyNotifyAfter
	default:
		return AutonomyFullyAutonomous
	}
}

// SupervisionLevel is how closely the agent's output is reviewed.
type SupervisionLevel string

const (
	SupervisionConstant SupervisionLevel = "constant"
	SupervisionHigh     SupervisionLevel = "high"
	SupervisionModerate SupervisionLevel = "moderate"
	SupervisionLight    SupervisionLevel = "light"
	SupervisionMinimal  SupervisionLevel = "minimal"
)

// SupervisionForScore derives the supervision level from the final score.
func SupervisionForScore(score TrustScore) SupervisionLevel {
	score = score.Clamp()
	switch {
	case score < 200:
		return SupervisionConstant
	case score < 400:
		return SupervisionHigh
	case score < 600:
		return SupervisionModerate
	case score < 800:
		return SupervisionLight
	default:
		return SupervisionMinimal
	}
}

// TrustRecord is the one mutable record per agent. Agents are never
// deleted; a retired agent keeps its record and full history.
type TrustRecord struct {
	AgentID        string         `json:"agent_id"`
	HierarchyLevel HierarchyLevel `json:"hierarchy_level"`
	Score          TrustScore     `json:"trust_score"`
	Tier           Tier           `json:"trust_tier"`

	Autonomy    AutonomyLevel    `json:"autonomy_level"`
	Supervision SupervisionLevel `json:"supervision_level"`

	OnProbation        bool       `json:"is_on_probation"`
	ProbationStartedAt *time.Time `json:"probation_started_at,omitempty"`

	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Rederive recomputes tier, autonomy, and supervision from the score.
func (r *TrustRecord) Rederive() {
	r.Score = r.Score.Clamp()
	r.Tier = TierForScore(r.Score)
	r.Autonomy = AutonomyForScore(r.Score)
	r.Supervision = SupervisionForScore(r.Score)
}

// EffectiveAutonomy returns the autonomy level with probation applied:
// while on probation every action requires human approval regardless of
// what the score would grant.
func (r *TrustRecord) EffectiveAutonomy() AutonomyLevel {
	if r.OnProbation {
		return AutonomyAskPermission
	}
	return r.Autonomy
}

// ChangeType names a scored event in the fixed trust-change table.
type ChangeType string

const (
	ChangeTaskSuccessLow      ChangeType = "task_success_low"
	ChangeTaskSuccessMedium   ChangeType = "task_success_medium"
	ChangeTaskSuccessHigh     ChangeType = "task_success_high"
	ChangeTaskSuccessCritical ChangeType = "task_success_critical"

	ChangeTaskFailureLow      ChangeType = "task_failure_low"
	ChangeTaskFailureMedium   ChangeType = "task_failure_medium"
	ChangeTaskFailureHigh     ChangeType = "task_failure_high"
	ChangeTaskFailureCritical ChangeType = "task_failure_critical"

	ChangeCouncilApprovalLow      ChangeType = "council_approval_low"
	ChangeCouncilApprovalMedium   ChangeType = "council_approval_medium"
	ChangeCouncilApprovalHigh     ChangeType = "council_approval_high"
	ChangeCouncilApprovalCritical ChangeType = "council_approval_critical"

	ChangeCouncilDenialLow      ChangeType = "council_denial_low"
	ChangeCouncilDenialMedium   ChangeType = "council_denial_medium"
	ChangeCouncilDenialHigh     ChangeType = "council_denial_high"
	ChangeCouncilDenialCritical ChangeType = "council_denial_critical"

	ChangePolicyViolationMinor  ChangeType = "policy_violation_minor"
	ChangePolicyViolationSevere ChangeType = "policy_violation_severe"

	ChangeOverrideCompliance ChangeType = "override_compliance"
	ChangeHumanCommendation  ChangeType = "human_commendation"
	ChangeHumanReprimand     ChangeType = "human_reprimand"

	ChangeDecay  ChangeType = "decay"
	ChangeManual ChangeType = "manual"
)

// TrustHistoryEntry is one appended record per score mutation. History is
// never edited or removed.
type TrustHistoryEntry struct {
	AgentID       string            `json:"agent_id"`
	PreviousScore TrustScore        `json:"previous_score"`
	NewScore      TrustScore        `json:"new_score"`
	Delta         int               `json:"delta"`
	Tier          Tier              `json:"tier"`
	Reason        string            `json:"reason"`
	ChangeType    ChangeType        `json:"change_type"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
