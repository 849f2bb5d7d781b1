package capability

import (
	"strings"

	"github.com/vorion/trustgate/internal/model"
)

// levelCapability is one row of the per-hierarchy-level capability matrix.
// Can and Cannot hold action-type patterns; an explicit Cannot match wins
// over any Can match.
type levelCapability struct {
	Can    []string
	Cannot []string
}

// capabilityMatrix is the fixed per-level table, indexed by
// model.HierarchyLevel. A level missing from the table gets the L0 row
// via levelCapabilities.
var capabilityMatrix = map[model.HierarchyLevel]levelCapability{
	model.L0: {
		Can:    []string{"data:read", "file:read"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:*"},
	},
	model.L1: {
		Can:    []string{"data:read", "file:read", "comm:internal", "task:execute"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:*"},
	},
	model.L2: {
		Can:    []string{"data:read", "data:write", "file:read", "file:write", "comm:internal", "task:execute"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:*"},
	},
	model.L3: {
		Can: []string{"data:read", "data:write", "file:read", "file:write",
			"comm:*", "task:*"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:*"},
	},
	model.L4: {
		Can: []string{"data:read", "data:write", "file:read", "file:write",
			"comm:*", "task:*", "deploy:staging"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:production"},
	},
	model.L5: {
		Can: []string{"data:*", "file:*", "comm:*", "task:*", "deploy:staging"},
		Cannot: []string{"self:*", "agent:*", "admin:*", "finance:*", "deploy:production"},
	},
	model.L6: {
		Can:    []string{"data:*", "file:*", "comm:*", "task:*", "deploy:*", "finance:payment"},
		Cannot: []string{"self:*", "agent:*", "admin:*"},
	},
	model.L7: {
		Can:    []string{"data:*", "file:*", "comm:*", "task:*", "deploy:*", "finance:*", "admin:config", "agent:spawn"},
		Cannot: []string{"self:*"},
	},
	model.L8: {
		Can:    []string{"data:*", "file:*", "comm:*", "task:*", "deploy:*", "finance:*", "admin:*", "agent:*", "self:modify"},
		Cannot: []string{},
	},
}

// levelCapabilities returns the matrix row for a level. Unknown levels get
// the L0 row (fail closed).
func levelCapabilities(level model.HierarchyLevel) levelCapability {
	if row, ok := capabilityMatrix[level]; ok {
		return row
	}
	return capabilityMatrix[model.L0]
}

// matchesAny reports whether actionType matches any pattern in the list.
func matchesAny(patterns []string, actionType string) bool {
	for _, p := range patterns {
		if matchPattern(p, actionType) {
			return true
		}
	}
	return false
}

// matchPattern checks an action-type pattern against a concrete type.
// "x:*" matches any type with prefix "x:", "*" matches everything,
// otherwise exact match. Matching is case-insensitive.
func matchPattern(pattern, actionType string) bool {
	pattern = strings.ToLower(pattern)
	actionType = strings.ToLower(actionType)

	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(actionType, pattern[:len(pattern)-1])
	}
	return pattern == actionType
}
