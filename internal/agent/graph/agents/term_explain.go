package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const (
	termExplainPrefix = "📘 용어 설명 결과:\n"
	noWebResults      = "(웹 검색 결과 없음)"
)

// TermExplain explains a project term using web search snippets as context.
type TermExplain struct {
	gen        model.Generator
	web        model.WebSearcher
	maxResults int
}

func NewTermExplain(gen model.Generator, web model.WebSearcher, maxResults int) *TermExplain {
	return &TermExplain{gen: gen, web: web, maxResults: maxResults}
}

func (t *TermExplain) Label() model.AgentLabel { return model.AgentTermExplain }

// Invoke fails closed when the term or the project context is missing.
func (t *TermExplain) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	term := strings.TrimSpace(state.InputQuery)
	switch {
	case term == "":
		return model.Update{}, fmt.Errorf("term_explain: input query: %w", errx.ErrEmptyInput)
	case strings.TrimSpace(state.ProjectName) == "":
		return model.Update{}, fmt.Errorf("term_explain: project name: %w", errx.ErrEmptyInput)
	case strings.TrimSpace(state.ProjectContext) == "":
		return model.Update{}, fmt.Errorf("term_explain: project context: %w", errx.ErrEmptyInput)
	}

	webContext := t.webContext(ctx, term, cfg)

	msgs, err := prompts.RenderTermExplain(ctx, term, webContext, state.ProjectName, state.ProjectContext)
	if err != nil {
		return model.Update{}, err
	}
	explanation, err := t.gen.Generate(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).
			Str("thread_id", cfg.ResolveThreadID()).
			Str("agent", t.Label().String()).
			Msg("Term explanation generation failed")
		explanation = generationFailed(err)
	}
	explanation = strings.TrimSpace(explanation)

	return update(t.Label(), cfg, model.TextMessage(termExplainPrefix+explanation), map[string]string{
		model.FieldExplanation: explanation,
	}), nil
}

// webContext joins the snippets; a failed search degrades to no context.
func (t *TermExplain) webContext(ctx context.Context, term string, cfg model.RunConfig) string {
	if t.web == nil {
		return noWebResults
	}
	snippets, err := t.web.Search(ctx, term, t.maxResults)
	if err != nil {
		logx.Warn().Err(err).
			Str("thread_id", cfg.ResolveThreadID()).
			Msg("Web search failed - explaining without web context")
		return noWebResults
	}
	if len(snippets) == 0 {
		return noWebResults
	}
	return strings.Join(snippets, "\n")
}
