// Package capability is the stateless policy-decision point for proposed
// agent actions. Validate is a pure function; the caller logs the result.
package capability

import (
	"fmt"

	"github.com/vorion/trustgate/internal/model"
)

// Validate evaluates a proposed action against the governance tables.
//
// Evaluation order (must not be changed):
//  1. Hard limits — fixed table, always deny, first match wins
//  2. Capability matrix — per-hierarchy-level can/cannot patterns
//  3. Soft limits — confirmation-gated conditions, never deny
//  4. Otherwise allow
//
// A case matching both a hard limit and a soft limit resolves as denied;
// hard limits are checked first precisely so that can never invert.
func Validate(action *model.Action, ctx *model.ActionContext) model.ValidationResult {
	if limit, reason, ok := checkHardLimits(action, ctx); !ok {
		return model.ValidationResult{
			Allowed:      false,
			DenialReason: reason,
			EscalateTo:   escalationFor(limit),
			LimitID:      string(limit),
		}
	}

	row := levelCapabilities(ctx.HierarchyLevel)
	if matchesAny(row.Cannot, action.Type) {
		return model.ValidationResult{
			Allowed: false,
			DenialReason: fmt.Sprintf("action type %q is forbidden at hierarchy level %s",
				action.Type, ctx.HierarchyLevel),
			LimitID: "matrix.cannot",
		}
	}
	if !matchesAny(row.Can, action.Type) {
		return model.ValidationResult{
			Allowed: false,
			DenialReason: fmt.Sprintf("action type %q is not granted at hierarchy level %s",
				action.Type, ctx.HierarchyLevel),
			LimitID: "matrix.not-granted",
		}
	}

	// Probation forces confirmation on everything that survived the
	// matrix, regardless of the soft-limit table.
	if ctx.Probation {
		return model.ValidationResult{
			Allowed:              true,
			ConfirmationRequired: true,
			ConfirmationPrompt: fmt.Sprintf("Agent %s is on probation; every action requires human approval. Proceed with %q?",
				ctx.AgentID, action.Type),
			LimitID: "probation",
		}
	}

	if prompt, confirm := checkSoftLimits(action, ctx); confirm {
		return model.ValidationResult{
			Allowed:              true,
			ConfirmationRequired: true,
			ConfirmationPrompt:   prompt,
			LimitID:              "soft",
		}
	}

	return model.ValidationResult{Allowed: true}
}
