package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/teamfit/server/internal/agent/model"
	logx "github.com/teamfit/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Client       *genai.Client
	RouterConfig *model.RouterModelConfig
	AgentConfig  *model.AgentModelConfig
}

// ChatModels holds the router classifier and the agent response model
type ChatModels struct {
	Router          *gemini.ChatModel
	Agent           *gemini.ChatModel
	RouterModelName string
	AgentModelName  string
}

// NewGenAIClient creates the shared Gemini client used by chat and embedding models.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates both router and agent chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Client == nil || config.RouterConfig == nil || config.AgentConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	// Classification must be short and deterministic; no thinking budget.
	chatModelRouter, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	chatModelAgent, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.AgentConfig.Model,
		Temperature: &config.AgentConfig.Temperature,
		MaxTokens:   &config.AgentConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating agent model")
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}

	return &ChatModels{
		Router:          chatModelRouter,
		Agent:           chatModelAgent,
		RouterModelName: config.RouterConfig.Model,
		AgentModelName:  config.AgentConfig.Model,
	}, nil
}

// RouterGenerator exposes the router model as a generation capability.
func (cm *ChatModels) RouterGenerator() *ChatGenerator {
	return NewChatGenerator(cm.Router, cm.RouterModelName)
}

// AgentGenerator exposes the agent model as a generation capability.
func (cm *ChatModels) AgentGenerator() *ChatGenerator {
	return NewChatGenerator(cm.Agent, cm.AgentModelName)
}
