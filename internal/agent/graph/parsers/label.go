package parsers

import (
	"strings"

	"github.com/teamfit/server/internal/agent/model"
)

// ParseAgentLabel normalises raw classifier output (trim, lower-case) and
// accepts only an exact match of a known label. Anything else, including
// empty or misspelled output, resolves to the fallback agent.
func ParseAgentLabel(raw string) (label model.AgentLabel, matched bool) {
	candidate := model.AgentLabel(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, true
	}
	return model.AgentFallback, false
}
