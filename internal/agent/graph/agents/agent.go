package agents

import (
	"context"
	"fmt"

	"github.com/teamfit/server/internal/agent/model"
)

// Handler is one terminal agent of the supervisor. Invoke receives a private
// copy of the state and returns exactly one new message plus side outputs.
type Handler interface {
	Label() model.AgentLabel
	Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error)
}

// Deps are the capability adapters and tunables injected into the handlers.
type Deps struct {
	Generator model.Generator
	CodeRules model.Searcher
	Reports   model.Searcher
	Employees model.Searcher
	Web       model.WebSearcher

	Retrieval     model.RetrievalConfig
	WebMaxResults int
}

// Set binds every agent label to its handler.
type Set struct {
	TermExplain    Handler
	CodeCheck      Handler
	DocumentFind   Handler
	ReportGuide    Handler
	EmailDraft     Handler
	PersonnelMatch Handler
	Fallback       Handler
}

// NewSet builds the default handler set over deps.
func NewSet(deps Deps) (Set, error) {
	if deps.Generator == nil {
		return Set{}, fmt.Errorf("agents: generator is required")
	}
	deps = deps.withDefaults()
	return Set{
		TermExplain:    NewTermExplain(deps.Generator, deps.Web, deps.WebMaxResults),
		CodeCheck:      NewCodeCheck(deps.Generator, deps.CodeRules, deps.Retrieval.CodeRulesK),
		DocumentFind:   NewDocumentFind(deps.Generator, deps.Reports, deps.Retrieval.DocumentK, deps.Retrieval.DocumentSources),
		ReportGuide:    NewReportGuide(deps.Generator, deps.Reports, deps.Retrieval.GuideK, deps.Retrieval.GuideSources),
		EmailDraft:     NewEmailDraft(deps.Generator),
		PersonnelMatch: NewPersonnelMatch(deps.Generator, deps.Employees, deps.Retrieval.EmployeesK),
		Fallback:       NewFallback(),
	}, nil
}

// For resolves the handler bound to label. Every label must be bound.
func (s Set) For(label model.AgentLabel) (Handler, error) {
	var h Handler
	switch label {
	case model.AgentTermExplain:
		h = s.TermExplain
	case model.AgentCodeCheck:
		h = s.CodeCheck
	case model.AgentDocumentFind:
		h = s.DocumentFind
	case model.AgentReportGuide:
		h = s.ReportGuide
	case model.AgentEmailDraft:
		h = s.EmailDraft
	case model.AgentPersonnelMatch:
		h = s.PersonnelMatch
	case model.AgentFallback:
		h = s.Fallback
	default:
		return nil, fmt.Errorf("agents: unknown label %q", label)
	}
	if h == nil {
		return nil, fmt.Errorf("agents: no handler bound to %q", label)
	}
	return h, nil
}

// Validate checks that every label resolves to a handler.
func (s Set) Validate() error {
	for _, l := range model.AgentLabels() {
		if _, err := s.For(l); err != nil {
			return err
		}
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.WebMaxResults <= 0 {
		d.WebMaxResults = 3
	}
	if d.Retrieval.CodeRulesK <= 0 {
		d.Retrieval.CodeRulesK = 3
	}
	if d.Retrieval.DocumentK <= 0 {
		d.Retrieval.DocumentK = 3
	}
	if d.Retrieval.DocumentSources <= 0 {
		d.Retrieval.DocumentSources = 5
	}
	if d.Retrieval.GuideK <= 0 {
		d.Retrieval.GuideK = 5
	}
	if d.Retrieval.GuideSources <= 0 {
		d.Retrieval.GuideSources = 3
	}
	if d.Retrieval.EmployeesK <= 0 {
		d.Retrieval.EmployeesK = 3
	}
	return d
}

// generationFailed is the user-visible text for a failed generation call.
func generationFailed(err error) string {
	return "답변 생성 과정에서 오류가 발생했습니다: " + err.Error()
}

func update(label model.AgentLabel, cfg model.RunConfig, msg model.Message, fields map[string]string) model.Update {
	if fields == nil {
		fields = make(map[string]string, 1)
	}
	fields[model.FieldAgent] = label.String()
	return model.Update{
		Message:  msg,
		ThreadID: cfg.ResolveThreadID(),
		Fields:   fields,
	}
}
