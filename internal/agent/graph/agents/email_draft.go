package agents

import (
	"context"
	"fmt"

	"github.com/teamfit/server/internal/agent/graph/parsers"
	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	logx "github.com/teamfit/server/pkg/logger"
)

const emailDraftPrefix = "✉️ 이메일 작성 결과:\n"

// EmailDraft writes a corporate-register email from a free-form request.
type EmailDraft struct {
	gen model.Generator
}

func NewEmailDraft(gen model.Generator) *EmailDraft {
	return &EmailDraft{gen: gen}
}

func (e *EmailDraft) Label() model.AgentLabel { return model.AgentEmailDraft }

func (e *EmailDraft) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	log := logx.With().
		Str("thread_id", cfg.ResolveThreadID()).
		Str("agent", e.Label().String()).
		Logger()

	msgs, err := prompts.RenderEmailDraft(ctx, state.InputQuery, state.ProjectName)
	if err != nil {
		return model.Update{}, err
	}
	raw, err := e.gen.Generate(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("Email draft generation failed")
		return update(e.Label(), cfg, model.TextMessage(emailDraftPrefix+generationFailed(err)), nil), nil
	}

	draft, err := parsers.ParseEmailDraft(raw)
	if err != nil {
		log.Error().Err(err).Msg("Email draft parsing failed")
		draft = &parsers.EmailDraft{
			Purpose:   parsers.DefaultEmailPurpose,
			Recipient: parsers.DefaultEmailRecipient,
			Tone:      parsers.DefaultEmailTone,
			Body:      raw,
		}
	}
	if len(draft.ParsingErrors) > 0 {
		log.Warn().Strs("parsing_errors", draft.ParsingErrors).Msg("Email draft records skipped")
	}

	text := fmt.Sprintf("%s[목적: %s | 받는 사람: %s | 말투: %s]\n\n%s",
		emailDraftPrefix, draft.Purpose, draft.Recipient, draft.Tone, draft.Body)
	return update(e.Label(), cfg, model.TextMessage(text), map[string]string{
		model.FieldGeneratedEmail: draft.Body,
		model.FieldEmailPurpose:   draft.Purpose,
		model.FieldEmailRecipient: draft.Recipient,
		model.FieldEmailTone:      draft.Tone,
	}), nil
}
