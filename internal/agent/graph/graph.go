package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/teamfit/server/internal/agent/graph/agents"
	"github.com/teamfit/server/internal/agent/graph/conversations"
	"github.com/teamfit/server/internal/agent/graph/nodes"
	"github.com/teamfit/server/internal/agent/graph/observers"
	"github.com/teamfit/server/internal/agent/model"
	"github.com/teamfit/server/internal/metrics"
	logx "github.com/teamfit/server/pkg/logger"
)

const maxRunSteps = 10

// Config holds everything needed to build the supervisor.
type Config struct {
	Router   *nodes.Router
	Agents   agents.Set
	History  *conversations.HistoryManager
	Defaults model.ConversationDefaults
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Supervisor runs one turn: route the query, invoke exactly one agent, merge
// its update and record the turn in history.
type Supervisor struct {
	runnable compose.Runnable[model.TurnInput, *model.ConversationState]
	history  *conversations.HistoryManager
	defaults model.ConversationDefaults
	metrics  *metrics.Metrics
}

// GraphBuilder handles the construction of the supervisor graph
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.TurnInput, *model.ConversationState]
}

// BuildSupervisor validates the config and compiles the routing graph.
func BuildSupervisor(ctx context.Context, config *Config) (*Supervisor, error) {
	if config == nil {
		return nil, fmt.Errorf("supervisor config is nil")
	}
	if config.Router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if config.History == nil {
		return nil, fmt.Errorf("history manager is nil")
	}
	if err := config.Agents.Validate(); err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[model.TurnInput, *model.ConversationState](),
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Supervisor graph built successfully")
	return &Supervisor{
		runnable: runnable,
		history:  config.History,
		defaults: config.Defaults,
		metrics:  config.Metrics,
	}, nil
}

// addNodes adds the router and one node per agent label
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeRouter, nodes.NewRouterNode(b.config.Router)); err != nil {
		return fmt.Errorf("error adding router node: %w", err)
	}
	for _, label := range model.AgentLabels() {
		h, err := b.config.Agents.For(label)
		if err != nil {
			return err
		}
		if err := b.graph.AddLambdaNode(nodes.AgentNodeKey(label), newAgentNode(h)); err != nil {
			return fmt.Errorf("error adding %s node: %w", label, err)
		}
	}
	return nil
}

// addEdges connects start to the router and every agent to end
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{{compose.START, nodes.NodeRouter}}
	for _, label := range model.AgentLabels() {
		edges = append(edges, [2]string{nodes.AgentNodeKey(label), compose.END})
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the single routing branch
func (b *GraphBuilder) addBranches() error {
	agentBranch := compose.NewGraphBranch(
		nodes.NewAgentBranchCondition(),
		nodes.AgentBranchTargets(),
	)
	if err := b.graph.AddBranch(nodes.NodeRouter, agentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding agent branch")
		return fmt.Errorf("error adding agent branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.ConversationState], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("supervisor"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}

// newAgentNode wraps a handler: the handler sees a private copy and its
// update is merged onto the routed state.
func newAgentNode(h agents.Handler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RoutedTurn) (*model.ConversationState, error) {
		upd, err := h.Invoke(ctx, in.State.Clone(), in.Config)
		if err != nil {
			logx.Error().Err(err).
				Str("thread_id", in.Config.ResolveThreadID()).
				Str("agent", h.Label().String()).
				Msg("Agent failed")
			return nil, fmt.Errorf("%s agent: %w", h.Label(), err)
		}
		return Merge(in.State, upd), nil
	})
}

// baseState builds a fresh turn state from the defaults and the request
// overrides. Messages are seeded by the caller.
func (s *Supervisor) baseState(req model.TurnRequest) *model.ConversationState {
	return &model.ConversationState{
		InputQuery:     req.InputQuery,
		ThreadID:       firstNonEmpty(req.ThreadID, s.defaults.ThreadID, model.DefaultThreadID),
		ProjectName:    firstNonEmpty(req.ProjectName, s.defaults.ProjectName),
		ProjectContext: firstNonEmpty(req.ProjectContext, s.defaults.ProjectContext),
		Fields:         map[string]string{},
	}
}

// Submit runs one turn for req. Turns on the same thread run one at a time,
// each seeded from the batch recorded by the previous one.
func (s *Supervisor) Submit(ctx context.Context, req model.TurnRequest) (*model.ConversationState, error) {
	state := s.baseState(req)
	turn := s.history.BeginTurn(state.ThreadID)
	defer turn.End()

	msgs, err := turn.LatestMessages(ctx)
	if err != nil {
		return nil, err
	}
	state.Messages = msgs
	return s.run(ctx, state, model.RunConfig{ThreadID: state.ThreadID}, turn)
}

// Run executes one turn over a copy of state. A routing or handler error
// aborts the turn and nothing is recorded. A history failure is logged and
// the merged state is still returned.
func (s *Supervisor) Run(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (*model.ConversationState, error) {
	if state == nil {
		return nil, fmt.Errorf("conversation state is nil")
	}
	if cfg.ThreadID == "" {
		cfg.ThreadID = state.ThreadID
	}
	turn := s.history.BeginTurn(cfg.ResolveThreadID())
	defer turn.End()
	return s.run(ctx, state, cfg, turn)
}

func (s *Supervisor) run(ctx context.Context, state *model.ConversationState, cfg model.RunConfig, turn *conversations.Turn) (*model.ConversationState, error) {
	threadID := cfg.ResolveThreadID()
	in := state.Clone()
	in.ThreadID = threadID

	start := time.Now()
	out, err := s.runnable.Invoke(ctx, model.TurnInput{State: in, Config: cfg},
		compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		s.metrics.ObserveTurn("", err, time.Since(start))
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Turn failed")
		return nil, err
	}
	agent := out.Field(model.FieldAgent)
	s.metrics.ObserveTurn(agent, nil, time.Since(start))
	if agent == model.AgentFallback.String() {
		s.metrics.IncRoutingFallback()
	}

	if err := s.record(ctx, turn, out); err != nil {
		s.metrics.IncHistoryFailure()
		logx.Warn().Err(err).Str("thread_id", out.ThreadID).Msg("Turn completed but history was not recorded")
	}

	logx.Info().
		Str("thread_id", out.ThreadID).
		Str("agent", agent).
		Int("messages", len(out.Messages)).
		Dur("elapsed", time.Since(start)).
		Msg("Turn completed")
	return out, nil
}

// record appends the turn under the lock it was seeded with. An update that
// moved the turn to another thread is appended there under that thread's lock.
func (s *Supervisor) record(ctx context.Context, turn *conversations.Turn, out *model.ConversationState) error {
	if out.ThreadID == "" || out.ThreadID == turn.ThreadID() {
		out.ThreadID = turn.ThreadID()
		return turn.Append(ctx, out.InputQuery, out.Messages)
	}
	return s.history.Append(ctx, out.ThreadID, out.InputQuery, out.Messages)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
