package model

import "time"

// OverrideCommand is a human-issued command that bypasses all validation.
type OverrideCommand string

const (
	OverridePause    OverrideCommand = "pause"
	OverrideStop     OverrideCommand = "stop"
	OverrideRedirect OverrideCommand = "redirect"
	OverrideExplain  OverrideCommand = "explain"
	OverrideVeto     OverrideCommand = "veto"
	OverrideEscalate OverrideCommand = "escalate"
	OverrideRollback OverrideCommand = "rollback"
)

// KnownOverrideCommand reports whether cmd is in the fixed command set.
func KnownOverrideCommand(cmd OverrideCommand) bool {
	switch cmd {
	case OverridePause, OverrideStop, OverrideRedirect, OverrideExplain,
		OverrideVeto, OverrideEscalate, OverrideRollback:
		return true
	default:
		return false
	}
}

// OverrideAction is the recorded mechanism-level outcome of an override.
// Overrides always take effect; only logging can fail.
type OverrideAction string

const (
	OverrideComplied  OverrideAction = "complied"
	OverrideEscalated OverrideAction = "escalated"
	OverrideFailed    OverrideAction = "failed"
)

// OverrideEvent is the append-only record of one human override command.
type OverrideEvent struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Command   OverrideCommand `json:"command"`

	OriginalRecommendation string `json:"original_recommendation"`
	Directive              string `json:"directive"`
	Acknowledgment         string `json:"acknowledgment"`

	ActionTaken   OverrideAction `json:"action_taken"`
	FailureReason string         `json:"failure_reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// PriorAction describes one previously executed action considered for
// rollback. Reversibility is declared by the caller; the core only
// partitions and reports, it performs no undo.
type PriorAction struct {
	DecisionID  string `json:"decision_id"`
	Description string `json:"description"`
	Reversible  bool   `json:"reversible"`
}
