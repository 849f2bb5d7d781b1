package model

// CreationType describes how a new agent comes into existence.
type CreationType string

const (
	CreationFresh    CreationType = "fresh"
	CreationCloned   CreationType = "cloned"
	CreationEvolved  CreationType = "evolved"
	CreationPromoted CreationType = "promoted"
	CreationImported CreationType = "imported"
)

// VettingGate is the review process a new agent passed before conception.
type VettingGate string

const (
	VettingNone     VettingGate = "none"
	VettingBasic    VettingGate = "basic"
	VettingStandard VettingGate = "standard"
	VettingRigorous VettingGate = "rigorous"
	VettingCouncil  VettingGate = "council"
)

// Lineage records the parent an agent was cloned or evolved from.
type Lineage struct {
	ParentID    string     `json:"parent_id"`
	ParentScore TrustScore `json:"parent_score"`
	Generation  int        `json:"generation"`
}

// ConceptionContext is the input to the one-time initial trust computation.
type ConceptionContext struct {
	AgentID        string         `json:"agent_id"`
	CreationType   CreationType   `json:"creation_type"`
	HierarchyLevel HierarchyLevel `json:"hierarchy_level"`

	CreatorScore *TrustScore `json:"creator_score,omitempty"`
	TrainerScore *TrustScore `json:"trainer_score,omitempty"`
	Lineage      *Lineage    `json:"lineage,omitempty"`

	Domain      string      `json:"domain"`
	VettingGate VettingGate `json:"vetting_gate"`

	CompletedCourses        int `json:"completed_courses"`
	CompletedCertifications int `json:"completed_certifications"`
}

// RationaleEntry is one applied conception modifier, in application order.
// The ordered rationale list is the accountability contract of conception.
type RationaleEntry struct {
	Step   string `json:"step"`
	Delta  int    `json:"delta"`
	Detail string `json:"detail"`
}

// ConceptionResult is the computed initial trust state for a new agent.
type ConceptionResult struct {
	AgentID     string           `json:"agent_id"`
	Score       TrustScore       `json:"score"`
	Tier        Tier             `json:"tier"`
	Autonomy    AutonomyLevel    `json:"autonomy_level"`
	Supervision SupervisionLevel `json:"supervision_level"`
	Ceiling     TrustScore       `json:"ceiling"`
	Floor       TrustScore       `json:"floor"`
	Rationale   []RationaleEntry `json:"rationale"`
}
