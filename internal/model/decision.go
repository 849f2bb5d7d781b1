package model

import "time"

// DecisionType classifies a governed decision in the audit log.
type DecisionType string

const (
	DecisionAction         DecisionType = "action"
	DecisionRecommendation DecisionType = "recommendation"
	DecisionRefusal        DecisionType = "refusal"
	DecisionEscalation     DecisionType = "escalation"
	DecisionHandoff        DecisionType = "handoff"
)

// Outcome is the lifecycle state of a decision's result.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomePartial   Outcome = "partial"
	OutcomeCancelled Outcome = "cancelled"
)

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure || o == OutcomePartial || o == OutcomeCancelled
}

// Alternative is one option considered and rejected when a decision was made.
type Alternative struct {
	Option          string `json:"option"`
	RejectionReason string `json:"rejection_reason"`
}

// DecisionEntry is one link in an agent's hash chain. Entries are
// write-once; an outcome transition appends a new entry referencing the
// original decision via RefersTo rather than mutating history.
type DecisionEntry struct {
	ID             string         `json:"id"`
	AgentID        string         `json:"agent_id"`
	HierarchyLevel HierarchyLevel `json:"hierarchy_level"`
	SessionID      string         `json:"session_id"`

	DecisionType DecisionType  `json:"decision_type"`
	Rationale    string        `json:"rationale"`
	Inputs       []string      `json:"inputs,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Confidence   float64       `json:"confidence"`
	Outcome      Outcome       `json:"outcome"`

	// RefersTo links an outcome-update entry back to the original
	// pending decision. Empty for first-hand decisions.
	RefersTo string `json:"refers_to,omitempty"`

	Timestamp  time.Time `json:"timestamp"`
	PolicyHash string    `json:"policy_hash,omitempty"`

	ContentHash string `json:"content_hash"`
	PrevHash    string `json:"prev_hash"`
}
