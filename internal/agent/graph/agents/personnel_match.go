package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/teamfit/server/internal/agent/graph/parsers"
	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const (
	personnelMatchPrefix = "👨‍💼 담당자 매칭 결과:\n"
	defaultMatchReason   = "질문과 가장 관련도가 높은 담당자로 검색되었습니다."
	noCandidatesText     = "검색된 담당자 후보가 없습니다."
)

// candidate is one retrieved directory entry. raw is kept for content that
// does not parse as a record.
type candidate struct {
	rec parsers.EmployeeRecord
	raw string
}

func newCandidate(content string) (candidate, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return candidate{}, false
	}
	if rec, _ := parsers.ParseEmployeeRecord(content); rec.Name != "" {
		return candidate{rec: rec}, true
	}
	if rec, ok := parsers.ParseEmployeeLine(firstLine(content)); ok {
		return candidate{rec: rec}, true
	}
	return candidate{raw: content}, true
}

func (c candidate) parsed() bool { return c.rec.Name != "" }

func (c candidate) format() string {
	if c.parsed() {
		return c.rec.Format()
	}
	return c.raw
}

// PersonnelMatch always selects exactly one employee from the candidates
// retrieved for the query.
type PersonnelMatch struct {
	gen       model.Generator
	employees model.Searcher
	k         int
}

func NewPersonnelMatch(gen model.Generator, employees model.Searcher, k int) *PersonnelMatch {
	return &PersonnelMatch{gen: gen, employees: employees, k: k}
}

func (p *PersonnelMatch) Label() model.AgentLabel { return model.AgentPersonnelMatch }

func (p *PersonnelMatch) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	log := logx.With().
		Str("thread_id", cfg.ResolveThreadID()).
		Str("agent", p.Label().String()).
		Logger()

	if p.employees == nil {
		return p.reply(cfg, indexUnavailableText, false), nil
	}
	docs, err := p.employees.Search(ctx, state.InputQuery, p.k)
	if err != nil {
		log.Error().Err(err).Msg("Employee search failed")
		if errors.Is(err, errx.ErrIndexUnavailable) {
			return p.reply(cfg, indexUnavailableText, false), nil
		}
		return p.reply(cfg, searchFailed(err), false), nil
	}

	candidates := make([]candidate, 0, len(docs))
	for _, d := range docs {
		if c, ok := newCandidate(d.Content); ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return p.reply(cfg, noCandidatesText, false), nil
	}

	result := p.match(ctx, state, candidates, log)
	return p.reply(cfg, result, true), nil
}

// match asks the model for the best candidate. Output that does not name one
// of the candidates resolves to the top-ranked candidate.
func (p *PersonnelMatch) match(ctx context.Context, state *model.ConversationState, candidates []candidate, log zerolog.Logger) string {
	fallback := candidates[0].format() + "\n\n" + defaultMatchReason

	msgs, err := prompts.RenderPersonnelMatch(ctx, state.InputQuery, formatCandidates(candidates), state.ProjectName)
	if err != nil {
		log.Error().Err(err).Msg("Personnel match prompt render failed")
		return fallback
	}
	raw, err := p.gen.Generate(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("Personnel match generation failed - using top candidate")
		return fallback
	}

	rec, reason := parsers.ParseEmployeeRecord(raw)
	selected, ok := lookupCandidate(candidates, rec)
	if !ok {
		log.Warn().Str("selected", rec.Name).Msg("Model selected no known candidate - using top candidate")
		return fallback
	}
	if reason == "" {
		reason = defaultMatchReason
	}
	return selected.Format() + "\n\n" + reason
}

func (p *PersonnelMatch) reply(cfg model.RunConfig, text string, matched bool) model.Update {
	var fields map[string]string
	if matched {
		fields = map[string]string{model.FieldMatchingResult: text}
	}
	return update(p.Label(), cfg, model.TextMessage(personnelMatchPrefix+text), fields)
}

// lookupCandidate resolves the model's pick. A parsed candidate contributes
// its directory record; for unparsed content the model's own record is used
// when it is complete and names someone in that content.
func lookupCandidate(candidates []candidate, picked parsers.EmployeeRecord) (parsers.EmployeeRecord, bool) {
	name := strings.TrimSpace(picked.Name)
	if name == "" {
		return parsers.EmployeeRecord{}, false
	}
	for _, c := range candidates {
		if c.parsed() && c.rec.Name == name {
			return c.rec, true
		}
	}
	if !picked.Complete() {
		return parsers.EmployeeRecord{}, false
	}
	for _, c := range candidates {
		if !c.parsed() && strings.Contains(c.raw, name) {
			return picked, true
		}
	}
	return parsers.EmployeeRecord{}, false
}

func formatCandidates(candidates []candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "직원 %d:\n%s\n\n", i+1, c.format())
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
