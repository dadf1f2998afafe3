package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const indexUnavailableText = "벡터 DB가 초기화되지 않았습니다."

func searchFailed(err error) string {
	return "문서 검색 과정에서 오류가 발생했습니다: " + err.Error()
}

type promptFunc func(ctx context.Context, query, docContext, projectName string) ([]*schema.Message, error)

// retrievalAgent is the retrieve-then-generate shape shared by the document
// finder and the report guide. Sources keep the search order and rank.
type retrievalAgent struct {
	label        model.AgentLabel
	gen          model.Generator
	index        model.Searcher
	k            int
	sourcesLimit int
	render       promptFunc
}

func (r *retrievalAgent) Label() model.AgentLabel { return r.label }

func (r *retrievalAgent) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	log := logx.With().
		Str("thread_id", cfg.ResolveThreadID()).
		Str("agent", r.label.String()).
		Logger()

	if r.index == nil {
		return r.answer(cfg, indexUnavailableText, nil, ""), nil
	}
	docs, err := r.index.Search(ctx, state.InputQuery, r.k)
	if err != nil {
		log.Error().Err(err).Msg("Document search failed")
		if errors.Is(err, errx.ErrIndexUnavailable) {
			return r.answer(cfg, indexUnavailableText, nil, ""), nil
		}
		return r.answer(cfg, searchFailed(err), nil, ""), nil
	}

	sources := SourcesFrom(docs)
	docContext := BuildContext(sources)

	msgs, err := r.render(ctx, state.InputQuery, docContext, state.ProjectName)
	if err != nil {
		return model.Update{}, err
	}
	answer, err := r.gen.Generate(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("Grounded answer generation failed")
		answer = generationFailed(err)
	}

	if len(sources) > r.sourcesLimit {
		sources = sources[:r.sourcesLimit]
	}
	return r.answer(cfg, strings.TrimSpace(answer), sources, docContext), nil
}

func (r *retrievalAgent) answer(cfg model.RunConfig, text string, sources []model.Source, docContext string) model.Update {
	var fields map[string]string
	if docContext != "" {
		fields = map[string]string{model.FieldSearchContext: docContext}
	}
	return update(r.label, cfg, model.AnswerMessage(text, sources), fields)
}

// SourcesFrom converts ranked search hits into message sources. The slice
// order is the search order and rank is always the 1-based position.
func SourcesFrom(docs []model.RetrievedDocument) []model.Source {
	out := make([]model.Source, 0, len(docs))
	for i, d := range docs {
		out = append(out, model.Source{
			Content:    d.Content,
			Section:    d.Section,
			SourcePath: d.SourcePath,
			Filename:   d.Filename,
			Rank:       i + 1,
		})
	}
	return out
}

// BuildContext renders the sources as the grounding block of the prompt.
func BuildContext(sources []model.Source) string {
	entries := make([]string, 0, len(sources))
	for _, s := range sources {
		entries = append(entries, fmt.Sprintf("[문서 %d] 출처: %s, 섹션: %s\n%s", s.Rank, s.Filename, s.Section, s.Content))
	}
	return strings.Join(entries, "\n\n")
}
