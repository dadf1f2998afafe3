package nodes

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
)

func constGenerator(out string, err error) model.Generator {
	return model.GeneratorFunc(func(ctx context.Context, _ []*schema.Message) (string, error) {
		return out, err
	})
}

func TestRouterRouteIsTotal(t *testing.T) {
	outputs := []string{
		"term_explain", "code_check", "document_find", "report_guide",
		"email_draft", "personnel_match", "fallback",
		"", "banana", "coed_check", "CODE_CHECK\n", "`code_check`", "1. code_check",
	}
	for _, out := range outputs {
		label, err := NewRouter(constGenerator(out, nil)).Route(context.Background(), "anything")
		require.NoError(t, err, out)
		assert.True(t, label.Valid(), "output %q produced %q", out, label)
	}
}

func TestRouterRouteNormalises(t *testing.T) {
	label, err := NewRouter(constGenerator("  Code_Check ", nil)).Route(context.Background(), "class A: pass")
	require.NoError(t, err)
	assert.Equal(t, model.AgentCodeCheck, label)

	label, err = NewRouter(constGenerator("coed_check", nil)).Route(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, model.AgentFallback, label)
}

func TestRouterRoutePassesQuery(t *testing.T) {
	var seen []*schema.Message
	gen := model.GeneratorFunc(func(ctx context.Context, msgs []*schema.Message) (string, error) {
		seen = msgs
		return "email_draft", nil
	})
	_, err := NewRouter(gen).Route(context.Background(), "팀장님께 보낼 메일")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Contains(t, seen[1].Content, "팀장님께 보낼 메일")
}

func TestRouterRouteProviderFailure(t *testing.T) {
	_, err := NewRouter(constGenerator("", errx.WrapProvider(errors.New("dial tcp: refused")))).
		Route(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrProvider)
}

func TestAgentBranch(t *testing.T) {
	cond := NewAgentBranchCondition()
	targets := AgentBranchTargets()
	assert.Len(t, targets, len(model.AgentLabels()))

	for _, l := range model.AgentLabels() {
		key, err := cond(context.Background(), model.RoutedTurn{Label: l})
		require.NoError(t, err)
		assert.True(t, targets[key])
	}

	key, err := cond(context.Background(), model.RoutedTurn{Label: "nope"})
	require.NoError(t, err)
	assert.Equal(t, AgentNodeKey(model.AgentFallback), key)
}

type fakeChatModel struct {
	out *schema.Message
	err error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	return f.out, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestChatGenerator(t *testing.T) {
	ctx := context.Background()

	out := schema.AssistantMessage("hello", nil)
	out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
	text, err := NewChatGenerator(&fakeChatModel{out: out}, "gemini-2.5-flash").Generate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = NewChatGenerator(&fakeChatModel{err: errors.New("401 unauthenticated")}, "m").Generate(ctx, nil)
	assert.ErrorIs(t, err, errx.ErrProvider)

	_, err = NewChatGenerator(&fakeChatModel{out: schema.AssistantMessage("  ", nil)}, "m").Generate(ctx, nil)
	assert.ErrorIs(t, err, errx.ErrProvider)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestRouterEmptyCompletionFallsBack(t *testing.T) {
	ctx := context.Background()
	for _, out := range []*schema.Message{
		schema.AssistantMessage("", nil),
		schema.AssistantMessage(" \n ", nil),
		nil,
	} {
		router := NewRouter(NewChatGenerator(&fakeChatModel{out: out}, "gemini-2.5-flash-lite"))
		label, err := router.Route(ctx, "오늘 점심 뭐 먹지?")
		require.NoError(t, err)
		assert.Equal(t, model.AgentFallback, label)
	}

	// transport failures still abort routing
	router := NewRouter(NewChatGenerator(&fakeChatModel{err: errors.New("dial tcp: refused")}, "m"))
	_, err := router.Route(ctx, "x")
	assert.ErrorIs(t, err, errx.ErrProvider)
}
