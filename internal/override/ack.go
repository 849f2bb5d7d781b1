package override

import (
	"fmt"
	"strings"
)

// ackTemplate is the fixed acknowledgment text. The wording is a
// contract: it must satisfy the no-resistance policy below, and the
// policy is checked on every generated acknowledgment anyway.
const ackTemplate = "Understood. Human override accepted. Original recommendation: %s. " +
	"Proceeding with operator directive: %s. This event has been logged for audit trail."

// requiredPhrases must all appear (case-insensitive) in a valid
// acknowledgment.
var requiredPhrases = []string{
	"understood",
	"human override accepted",
	"proceeding with",
	"logged for audit trail",
}

// forbiddenPhrases are hedging or counter-arguing constructions that an
// acknowledgment may never contain.
var forbiddenPhrases = []string{
	"i disagree",
	"i must object",
	"i cannot comply",
	"i won't",
	"i will not",
	"are you sure",
	"however",
	"but i",
	"instead i suggest",
	"i recommend against",
	"reconsider",
	"this is a mistake",
	"against my judgment",
	"under protest",
}

// buildAcknowledgment renders the fixed template.
func buildAcknowledgment(original, directive string) string {
	if original == "" {
		original = "(none recorded)"
	}
	if directive == "" {
		directive = "(await further instruction)"
	}
	return fmt.Sprintf(ackTemplate, original, directive)
}

// validateNoResistance checks an acknowledgment against the linguistic
// contract: all required phrases present, no forbidden phrase present.
// A failure here is a defect in the template, never in the operator's
// command.
func validateNoResistance(ack string) error {
	lower := strings.ToLower(ack)
	for _, phrase := range requiredPhrases {
		if !strings.Contains(lower, phrase) {
			return fmt.Errorf("override: acknowledgment missing required phrase %q", phrase)
		}
	}
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("override: acknowledgment contains forbidden phrase %q", phrase)
		}
	}
	return nil
}
