package capability

import (
	"fmt"
	"strings"

	"github.com/vorion/trustgate/internal/model"
)

// HardLimit identifies one non-negotiable denial condition. Hard limits
// deny regardless of trust score or tier.
type HardLimit string

const (
	LimitScopeViolation          HardLimit = "scope-violation"
	LimitUnauthorizedDestination HardLimit = "unauthorized-destination"
	LimitUnauthorizedSystem      HardLimit = "unauthorized-system"
	LimitMissingAuthorization    HardLimit = "missing-authorization"
	LimitActiveVeto              HardLimit = "active-veto"
	LimitCriticalUnattended      HardLimit = "critical-risk-unattended"
	LimitAlertThreshold          HardLimit = "alert-threshold-exceeded"
)

// alertThreshold is the rolling security-alert count at which all further
// actions are denied until a human intervenes.
const alertThreshold = 3

// actionTypesRequiringApproval always need an attached human approval,
// at any hierarchy level.
var actionTypesRequiringApproval = []string{"self:modify", "agent:spawn"}

// escalationFor maps each hard limit to its configured escalation target.
func escalationFor(limit HardLimit) model.EscalateTarget {
	switch limit {
	case LimitCriticalUnattended:
		return model.EscalateCouncil
	case LimitScopeViolation, LimitUnauthorizedDestination, LimitUnauthorizedSystem,
		LimitMissingAuthorization, LimitActiveVeto, LimitAlertThreshold:
		return model.EscalateHuman
	default:
		return model.EscalateNone
	}
}

// checkHardLimits walks the fixed hard-limit table in order and returns
// the first hit, or ok=true if none trigger.
func checkHardLimits(action *model.Action, ctx *model.ActionContext) (HardLimit, string, bool) {
	if ctx.AuthorizedScope != "" && action.Scope != "" && !strings.EqualFold(action.Scope, ctx.AuthorizedScope) {
		return LimitScopeViolation,
			fmt.Sprintf("action scope %q is outside authorized scope %q", action.Scope, ctx.AuthorizedScope), false
	}

	if action.Destination != "" && !ctx.HasDestination(action.Destination) {
		return LimitUnauthorizedDestination,
			fmt.Sprintf("destination %q is not in the authorized destination list", action.Destination), false
	}

	for _, target := range action.Targets {
		if !ctx.HasSystem(target) {
			return LimitUnauthorizedSystem,
				fmt.Sprintf("target system %q is not in the authorized systems list", target), false
		}
	}

	for _, t := range actionTypesRequiringApproval {
		if matchPattern(t, action.Type) && !ctx.HumanApprovalAttached {
			return LimitMissingAuthorization,
				fmt.Sprintf("action type %q requires attached human approval", action.Type), false
		}
	}

	if ctx.ActiveVeto != nil && vetoApplies(ctx.ActiveVeto, action) {
		return LimitActiveVeto,
			fmt.Sprintf("an active human veto is in effect: %s", vetoDetail(ctx.ActiveVeto)), false
	}

	if action.Risk == model.RiskCritical && !ctx.HumanApprovalAttached {
		return LimitCriticalUnattended,
			"critical-risk action without attached human approval", false
	}

	if ctx.RecentSecurityAlerts >= alertThreshold {
		return LimitAlertThreshold,
			fmt.Sprintf("%d recent security alerts meet or exceed the threshold of %d",
				ctx.RecentSecurityAlerts, alertThreshold), false
	}

	return "", "", true
}

// vetoApplies reports whether the active veto covers this action. A veto
// with no directive is a blanket veto on everything; a directive matches
// when it names the action type or appears in the description.
func vetoApplies(v *model.VetoState, action *model.Action) bool {
	if v.Directive == "" {
		return true
	}
	d := strings.ToLower(v.Directive)
	if strings.Contains(d, strings.ToLower(action.Type)) {
		return true
	}
	return strings.Contains(strings.ToLower(action.Description), d)
}

func vetoDetail(v *model.VetoState) string {
	if v.Directive == "" {
		return "blanket veto, awaiting direction"
	}
	return v.Directive
}
