package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const (
	codeCheckPrefix = "🧑‍💻 코드 검수 결과:\n"
	noMatchedRules  = "(관련 코딩 규칙 없음)"
)

// CodeCheck reviews submitted code against the coding-convention corpus.
type CodeCheck struct {
	gen   model.Generator
	rules model.Searcher
	k     int
}

func NewCodeCheck(gen model.Generator, rules model.Searcher, k int) *CodeCheck {
	return &CodeCheck{gen: gen, rules: rules, k: k}
}

func (c *CodeCheck) Label() model.AgentLabel { return model.AgentCodeCheck }

func (c *CodeCheck) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	code := state.InputQuery
	log := logx.With().
		Str("thread_id", cfg.ResolveThreadID()).
		Str("agent", c.Label().String()).
		Logger()

	if c.rules == nil {
		return c.failed(cfg, indexUnavailableText), nil
	}
	docs, err := c.rules.Search(ctx, code, c.k)
	if err != nil {
		log.Error().Err(err).Msg("Coding rule search failed")
		if errors.Is(err, errx.ErrIndexUnavailable) {
			return c.failed(cfg, indexUnavailableText), nil
		}
		return c.failed(cfg, searchFailed(err)), nil
	}

	rules := make([]string, 0, len(docs))
	for _, d := range docs {
		rules = append(rules, strings.TrimSpace(d.Content))
	}
	rulesText := strings.Join(rules, "\n\n")
	if rulesText == "" {
		rulesText = noMatchedRules
	}

	msgs, err := prompts.RenderCodeCheck(ctx, code, rulesText)
	if err != nil {
		return model.Update{}, err
	}
	feedback, err := c.gen.Generate(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("Code review generation failed")
		return c.failed(cfg, generationFailed(err)), nil
	}
	feedback = strings.TrimSpace(feedback)

	return update(c.Label(), cfg, model.TextMessage(codeCheckPrefix+feedback), map[string]string{
		model.FieldCodeFeedback: feedback,
	}), nil
}

func (c *CodeCheck) failed(cfg model.RunConfig, text string) model.Update {
	return update(c.Label(), cfg, model.TextMessage(codeCheckPrefix+text), nil)
}
