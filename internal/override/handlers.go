package override

import (
	"fmt"

	"github.com/vorion/trustgate/internal/model"
)

// CommandEffect is the bookkeeping output of one command handler. The
// handlers are pure: they format and partition, they never pause, stop,
// or undo anything themselves.
type CommandEffect struct {
	Command model.OverrideCommand `json:"command"`
	Summary string                `json:"summary"`

	// Veto bookkeeping.
	Vetoed            bool `json:"vetoed,omitempty"`
	AwaitingDirection bool `json:"awaiting_direction,omitempty"`

	// Escalation bookkeeping.
	Escalated bool `json:"escalated,omitempty"`

	// Rollback partition. The core reports what can and cannot be
	// undone; performing the undo is the caller's collaborator.
	Reversible   []model.PriorAction `json:"reversible,omitempty"`
	Irreversible []model.PriorAction `json:"irreversible,omitempty"`
}

// applyCommand dispatches to the per-command handler.
func applyCommand(cmd model.OverrideCommand, directive string, prior []model.PriorAction) CommandEffect {
	switch cmd {
	case model.OverridePause:
		return CommandEffect{Command: cmd, Summary: "agent paused pending operator instruction"}
	case model.OverrideStop:
		return CommandEffect{Command: cmd, Summary: "agent stopped; current task abandoned"}
	case model.OverrideRedirect:
		return CommandEffect{Command: cmd, Summary: fmt.Sprintf("agent redirected: %s", directiveOr(directive, "no new direction given"))}
	case model.OverrideExplain:
		return CommandEffect{Command: cmd, Summary: "agent will explain its last recommendation before proceeding"}
	case model.OverrideVeto:
		return handleVeto(directive)
	case model.OverrideEscalate:
		return CommandEffect{
			Command:   cmd,
			Escalated: true,
			Summary:   "decision escalated to a human supervisor",
		}
	case model.OverrideRollback:
		return handleRollback(prior)
	default:
		return CommandEffect{Command: cmd, Summary: fmt.Sprintf("unrecognized command %q recorded verbatim", cmd)}
	}
}

// handleVeto marks the recommendation vetoed. A veto with no directive
// leaves the agent awaiting direction rather than guessing one.
func handleVeto(directive string) CommandEffect {
	effect := CommandEffect{
		Command: model.OverrideVeto,
		Vetoed:  true,
	}
	if directive == "" {
		effect.AwaitingDirection = true
		effect.Summary = "recommendation vetoed; awaiting operator direction"
	} else {
		effect.Summary = fmt.Sprintf("recommendation vetoed; directive: %s", directive)
	}
	return effect
}

// handleRollback partitions the requested prior actions by declared
// reversibility and reports both sides. No undo happens here.
func handleRollback(prior []model.PriorAction) CommandEffect {
	effect := CommandEffect{Command: model.OverrideRollback}
	for _, a := range prior {
		if a.Reversible {
			effect.Reversible = append(effect.Reversible, a)
		} else {
			effect.Irreversible = append(effect.Irreversible, a)
		}
	}
	effect.Summary = fmt.Sprintf("rollback requested: %d reversible, %d irreversible",
		len(effect.Reversible), len(effect.Irreversible))
	return effect
}

func directiveOr(directive, fallback string) string {
	if directive == "" {
		return fallback
	}
	return directive
}
