package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/teamfit/server/internal/agent/graph/parsers"
	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
	logx "github.com/teamfit/server/pkg/logger"
)

// NodeRouter is the start pseudo-state that computes the routing decision.
// Agent nodes are keyed by their label.
const NodeRouter = "router"

// AgentNodeKey returns the graph node key bound to an agent label.
func AgentNodeKey(label model.AgentLabel) string {
	return "agent_" + label.String()
}

// Router classifies a query into one of the closed agent labels.
type Router struct {
	gen model.Generator
}

func NewRouter(gen model.Generator) *Router {
	return &Router{gen: gen}
}

// Route issues one classification call. Unknown or empty classifier output
// resolves to the fallback agent; only a generation failure is returned as an
// error.
func (r *Router) Route(ctx context.Context, query string) (model.AgentLabel, error) {
	msgs, err := prompts.RenderRouter(ctx, query)
	if err != nil {
		return "", err
	}

	raw, err := r.gen.Generate(ctx, msgs)
	if errors.Is(err, ErrEmptyCompletion) {
		logx.Warn().Msg("Empty routing label - defaulting to fallback")
		return model.AgentFallback, nil
	}
	if err != nil {
		logx.Error().Err(err).Msg("Router classification call failed")
		return "", fmt.Errorf("route query: %w", err)
	}

	label, matched := parsers.ParseAgentLabel(raw)
	if !matched {
		logx.Warn().
			Str("classifier_output", raw).
			Msg("Unrecognised routing label - defaulting to fallback")
	}
	return label, nil
}

// NewRouterNode creates the router node: it records the routing decision
// next to the state without touching the state itself.
func NewRouterNode(r *Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.RoutedTurn, error) {
		if in.State == nil {
			return model.RoutedTurn{}, fmt.Errorf("conversation state is nil")
		}
		label, err := r.Route(ctx, in.State.InputQuery)
		if err != nil {
			return model.RoutedTurn{}, err
		}
		logx.Debug().
			Str("thread_id", in.Config.ResolveThreadID()).
			Str("agent", label.String()).
			Msg("Routing decision")
		return model.RoutedTurn{Label: label, State: in.State, Config: in.Config}, nil
	})
}

// NewAgentBranchCondition maps the routing decision onto its agent node.
func NewAgentBranchCondition() func(context.Context, model.RoutedTurn) (string, error) {
	return func(ctx context.Context, in model.RoutedTurn) (string, error) {
		if !in.Label.Valid() {
			// unreachable through NewRouterNode; kept total for direct callers
			return AgentNodeKey(model.AgentFallback), nil
		}
		return AgentNodeKey(in.Label), nil
	}
}

// AgentBranchTargets returns the end-node set of the agent branch.
func AgentBranchTargets() map[string]bool {
	targets := make(map[string]bool, len(model.AgentLabels()))
	for _, l := range model.AgentLabels() {
		targets[AgentNodeKey(l)] = true
	}
	return targets
}
