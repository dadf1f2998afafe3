package meeting

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

// Summarizer condenses a Korean meeting transcript into a paragraph summary
// of its objectives, speakers, decisions and action items.
type Summarizer struct {
	gen model.Generator
}

func NewSummarizer(gen model.Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Summarize returns the summary of text. Blank text is rejected before any
// model call. Generation errors are returned unchanged.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errx.New(errx.ErrEmptyInput, http.StatusBadRequest, "meeting text is required")
	}

	msgs, err := prompts.RenderMeetingSummary(ctx, text)
	if err != nil {
		return "", err
	}

	start := time.Now()
	summary, err := s.gen.Generate(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Int("transcript_len", len(text)).Msg("Meeting summary generation failed")
		return "", err
	}
	logx.Info().
		Int("transcript_len", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Meeting summarized")
	return strings.TrimSpace(summary), nil
}
