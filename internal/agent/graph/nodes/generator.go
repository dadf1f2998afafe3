package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

// ErrEmptyCompletion marks a completion with no content. It is wrapped as a
// provider error.
var ErrEmptyCompletion = errors.New("model returned empty content")

// ChatGenerator adapts an Eino chat model to the model.Generator capability.
// Every failure surfaces as errx.ErrProvider.
type ChatGenerator struct {
	chat      einomodel.BaseChatModel
	modelName string
}

func NewChatGenerator(chat einomodel.BaseChatModel, modelName string) *ChatGenerator {
	return &ChatGenerator{chat: chat, modelName: modelName}
}

func (g *ChatGenerator) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      g.modelName,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})
	out, err := g.chat.Generate(ctx, messages)
	if err != nil {
		return "", errx.WrapProvider(err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", errx.WrapProvider(ErrEmptyCompletion)
	}
	g.logUsage(out)
	return out.Content, nil
}

func (g *ChatGenerator) logUsage(out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(g.modelName))
	logx.Debug().
		Str("model", g.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ model.Generator = (*ChatGenerator)(nil)
