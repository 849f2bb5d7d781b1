package model

import "strings"

// RiskLevel classifies the declared risk of a proposed action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskRank maps risk levels to comparable integers for threshold checks.
var RiskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// ParseRiskLevel coerces a string to a RiskLevel. Unknown input is treated
// as critical (fail closed).
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(s)) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return RiskLevel(strings.ToLower(s))
	default:
		return RiskCritical
	}
}

// EscalateTarget identifies who a denied action should be escalated to.
type EscalateTarget string

const (
	EscalateNone    EscalateTarget = ""
	EscalateHuman   EscalateTarget = "human"
	EscalateCouncil EscalateTarget = "council"
)

// Action is one proposed operation submitted for governance.
type Action struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Risk        RiskLevel `json:"risk"`
	Scope       string    `json:"scope"`
	Targets     []string  `json:"targets,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

// VetoState is the directive attached to an active human veto.
type VetoState struct {
	Directive string `json:"directive"`
	IssuedBy  string `json:"issued_by"`
}

// ActionContext carries everything the validator needs to judge an action.
// Built per request by the guard; never persisted.
type ActionContext struct {
	AgentID        string         `json:"agent_id"`
	HierarchyLevel HierarchyLevel `json:"hierarchy_level"`
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id"`

	AuthorizedScope        string   `json:"authorized_scope"`
	AuthorizedDestinations []string `json:"authorized_destinations,omitempty"`
	AuthorizedSystems      []string `json:"authorized_systems,omitempty"`
	KnownDestinations      []string `json:"known_destinations,omitempty"`

	HumanApprovalAttached bool       `json:"human_approval_attached"`
	ActiveVeto            *VetoState `json:"active_veto,omitempty"`

	// RecentSecurityAlerts is a rolling count of policy denials and
	// alerts for the agent, maintained by the guard.
	RecentSecurityAlerts int `json:"recent_security_alerts"`

	TrustScore TrustScore `json:"trust_score"`
	TrustTier  Tier       `json:"trust_tier"`
	Probation  bool       `json:"probation"`
}

// HasDestination reports whether dest appears in the authorized list.
// An empty authorized list means no destination restriction.
func (c *ActionContext) HasDestination(dest string) bool {
	if len(c.AuthorizedDestinations) == 0 {
		return true
	}
	for _, d := range c.AuthorizedDestinations {
		if strings.EqualFold(d, dest) {
			return true
		}
	}
	return false
}

// HasSystem reports whether target appears in the authorized systems list.
// An empty authorized list means no system restriction.
func (c *ActionContext) HasSystem(target string) bool {
	if len(c.AuthorizedSystems) == 0 {
		return true
	}
	for _, s := range c.AuthorizedSystems {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}

// KnowsDestination reports whether the destination has been seen before.
func (c *ActionContext) KnowsDestination(dest string) bool {
	for _, d := range c.KnownDestinations {
		if strings.EqualFold(d, dest) {
			return true
		}
	}
	return false
}

// ValidationResult is the validator's verdict on one action.
type ValidationResult struct {
	Allowed              bool           `json:"allowed"`
	ConfirmationRequired bool           `json:"confirmation_required"`
	ConfirmationPrompt   string         `json:"confirmation_prompt,omitempty"`
	DenialReason         string         `json:"denial_reason,omitempty"`
	EscalateTo           EscalateTarget `json:"escalate_to,omitempty"`
	LimitID              string         `json:"limit_id,omitempty"`
}
