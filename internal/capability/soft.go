package capability

import (
	"fmt"

	"github.com/vorion/trustgate/internal/model"
)

// maxUnconfirmedRisk is the highest risk level each tier may take without
// confirmation. Anything above it requires a human yes.
var maxUnconfirmedRisk = map[model.Tier]model.RiskLevel{
	model.TierUntrusted: model.RiskLow,
	model.TierNovice:    model.RiskLow,
	model.TierProven:    model.RiskMedium,
	model.TierTrusted:   model.RiskMedium,
	model.TierElite:     model.RiskHigh,
	model.TierLegendary: model.RiskHigh,
}

// destructiveActionTypes always require confirmation regardless of tier.
var destructiveActionTypes = []string{"data:delete", "file:delete", "deploy:production"}

// checkSoftLimits returns a confirmation prompt if any soft limit applies.
// Soft limits never deny; they gate execution behind a human yes.
func checkSoftLimits(action *model.Action, ctx *model.ActionContext) (string, bool) {
	maxRisk, ok := maxUnconfirmedRisk[ctx.TrustTier]
	if !ok {
		maxRisk = model.RiskLow
	}
	if model.RiskRank[action.Risk] > model.RiskRank[maxRisk] {
		return fmt.Sprintf("Action %q is %s risk, above the %s threshold for tier %s. Proceed?",
			action.Type, action.Risk, maxRisk, ctx.TrustTier), true
	}

	if matchesAny(destructiveActionTypes, action.Type) {
		return fmt.Sprintf("Action %q is destructive. Confirm before proceeding?", action.Type), true
	}

	if action.Destination != "" && !ctx.KnowsDestination(action.Destination) {
		return fmt.Sprintf("Destination %q has not been used before by agent %s. Proceed?",
			action.Destination, ctx.AgentID), true
	}

	return "", false
}
