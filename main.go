package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teamfit/server/internal/agent/graph"
	"github.com/teamfit/server/internal/agent/graph/agents"
	"github.com/teamfit/server/internal/agent/graph/conversations"
	"github.com/teamfit/server/internal/agent/graph/nodes"
	"github.com/teamfit/server/internal/agent/meeting"
	"github.com/teamfit/server/internal/agent/model"
	"github.com/teamfit/server/internal/agent/repo"
	"github.com/teamfit/server/internal/agent/retrieval"
	"github.com/teamfit/server/internal/agent/websearch"
	"github.com/teamfit/server/internal/api"
	"github.com/teamfit/server/internal/core"
	"github.com/teamfit/server/internal/metrics"
	logx "github.com/teamfit/server/pkg/logger"
	pkgredis "github.com/teamfit/server/pkg/redis"
)

const janitorInterval = 10 * time.Minute

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Server model.ServerConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router    model.RouterModelConfig
	Agent     model.AgentModelConfig
	Embedding model.EmbeddingConfig
	WebSearch model.WebSearchConfig
	Corpus    model.CorpusConfig
	Retrieval model.RetrievalConfig
	History   model.HistoryConfig
	Defaults  model.ConversationDefaults
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(ctx context.Context, cfg AppConfig) error {
	client, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}
	chatModels, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Client:       client,
		RouterConfig: &cfg.Router,
		AgentConfig:  &cfg.Agent,
	})
	if err != nil {
		return err
	}

	docEmbedder, err := retrieval.NewGeminiEmbedder(client, cfg.Embedding.Model, retrieval.TaskRetrievalDocument)
	if err != nil {
		return err
	}
	queryEmbedder := docEmbedder.WithTask(retrieval.TaskRetrievalQuery)

	codeRules := retrieval.BuildIndex(ctx, "code_rules", func() ([]*schema.Document, error) {
		return retrieval.LoadCodeRules(cfg.Corpus.CodeRulesPath)
	}, docEmbedder, queryEmbedder)
	reports := retrieval.BuildIndex(ctx, "reports", func() ([]*schema.Document, error) {
		return retrieval.LoadReports(cfg.Corpus.ReportsDir, cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)
	}, docEmbedder, queryEmbedder)
	employees := retrieval.BuildIndex(ctx, "employees", func() ([]*schema.Document, error) {
		return retrieval.LoadEmployees(cfg.Corpus.EmployeesPath)
	}, docEmbedder, queryEmbedder)

	historyRepo, closeRepo, err := newHistoryRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	history := conversations.NewHistoryManager(historyRepo)

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	set, err := agents.NewSet(agents.Deps{
		Generator:     chatModels.AgentGenerator(),
		CodeRules:     retrieval.NewSearcher(codeRules),
		Reports:       retrieval.NewSearcher(reports),
		Employees:     retrieval.NewSearcher(employees),
		Web:           websearch.NewTavily(cfg.WebSearch),
		Retrieval:     cfg.Retrieval,
		WebMaxResults: cfg.WebSearch.MaxResults,
	})
	if err != nil {
		return err
	}

	supervisor, err := graph.BuildSupervisor(ctx, &graph.Config{
		Router:   nodes.NewRouter(chatModels.RouterGenerator()),
		Agents:   set,
		History:  history,
		Defaults: cfg.Defaults,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Config{
		Supervisor:      supervisor,
		History:         history,
		DownloadRoot:    cfg.Server.DownloadRoot,
		DefaultThreadID: cfg.Defaults.ThreadID,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Gatherer:        prometheus.DefaultGatherer,
		Metrics:         m,
		Summarizer:      meeting.NewSummarizer(chatModels.AgentGenerator()),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("addr", cfg.Server.Addr).
			Str("env", cfg.Environment.String()).
			Int("code_rules", codeRules.Len()).
			Int("report_chunks", reports.Len()).
			Int("employees", employees.Len()).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logx.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHistoryRepository selects the history backend. The returned func
// releases its resources.
func newHistoryRepository(ctx context.Context, cfg AppConfig) (model.HistoryRepository, func(), error) {
	ttl, err := time.ParseDuration(cfg.History.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid HISTORY_TTL '%s': %w", cfg.History.TTL, err)
	}

	switch cfg.History.Backend {
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisHistoryRepository(rdb, cfg.History.MaxTurns, ttl), func() { _ = rdb.Close() }, nil
	case "memory", "":
		mem := repo.NewMemoryHistoryRepository(cfg.History.MaxTurns, ttl)
		go mem.RunJanitor(ctx, janitorInterval)
		return mem, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.History.Backend)
	}
}
