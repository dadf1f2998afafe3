package model

// DefaultThreadID is used when no thread id is supplied at any level.
const DefaultThreadID = "default"

// AgentLabel names one of the terminal agent states of the supervisor.
type AgentLabel string

const (
	AgentTermExplain    AgentLabel = "term_explain"
	AgentCodeCheck      AgentLabel = "code_check"
	AgentDocumentFind   AgentLabel = "document_find"
	AgentReportGuide    AgentLabel = "report_guide"
	AgentEmailDraft     AgentLabel = "email_draft"
	AgentPersonnelMatch AgentLabel = "personnel_match"
	AgentFallback       AgentLabel = "fallback"
)

// AgentLabels returns the closed label set in routing-prompt order.
func AgentLabels() []AgentLabel {
	return []AgentLabel{
		AgentTermExplain,
		AgentCodeCheck,
		AgentDocumentFind,
		AgentReportGuide,
		AgentEmailDraft,
		AgentPersonnelMatch,
		AgentFallback,
	}
}

// Valid reports whether l is one of the known labels.
func (l AgentLabel) Valid() bool {
	for _, known := range AgentLabels() {
		if l == known {
			return true
		}
	}
	return false
}

func (l AgentLabel) String() string {
	return string(l)
}

// RunConfig carries per-invocation settings for the supervisor and handlers.
type RunConfig struct {
	ThreadID string
}

// ResolveThreadID returns the configured thread id or DefaultThreadID.
func (c *RunConfig) ResolveThreadID() string {
	if c == nil || c.ThreadID == "" {
		return DefaultThreadID
	}
	return c.ThreadID
}

// Update is a handler's contribution to the state: exactly one new message
// plus optional side outputs. The supervisor appends Message to the carried
// forward list, so handlers cannot drop earlier entries.
type Update struct {
	Message  Message
	ThreadID string
	Fields   map[string]string
}

// TurnInput is the supervisor graph input.
type TurnInput struct {
	State  *ConversationState
	Config RunConfig
}

// RoutedTurn is the router node output consumed by the agent branch.
type RoutedTurn struct {
	Label  AgentLabel
	State  *ConversationState
	Config RunConfig
}

// TurnRequest is one submitted turn. Empty fields take the configured defaults.
type TurnRequest struct {
	InputQuery     string `json:"input_query"`
	ThreadID       string `json:"thread_id"`
	ProjectName    string `json:"project_name"`
	ProjectContext string `json:"project_context"`
}
