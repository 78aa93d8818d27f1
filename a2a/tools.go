package a2a

import (
	"context"
	"fmt"

	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/tool"
)

// ToolProvider exposes the dispatcher to the capability registry. Dispatch
// failures are reported as errors so the registry folds them into tool-result
// text; they never abort the exchange that issued them.
type ToolProvider struct {
	dispatcher *Dispatcher
}

// NewToolProvider wraps a dispatcher as a capability provider.
func NewToolProvider(d *Dispatcher) *ToolProvider {
	return &ToolProvider{dispatcher: d}
}

// Tools implements tool.Provider.
func (p *ToolProvider) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFuncTool(
			"send_message",
			"Send an actionable task description to a named remote agent and return its response.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_name": map[string]any{
						"type":        "string",
						"description": "Name of the remote agent, as listed by list_remote_agents",
					},
					"task": map[string]any{
						"type":        "string",
						"description": "Complete, self-contained task description for the remote agent",
					},
				},
				"required": []string{"agent_name", "task"},
			},
			p.sendMessage,
		),
		tool.NewFuncTool(
			"list_remote_agents",
			"List the remote agents available for task delegation.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			p.listAgents,
		),
	}
}

func (p *ToolProvider) sendMessage(ctx context.Context, args map[string]any) (string, error) {
	agentName, _ := args["agent_name"].(string)
	task, _ := args["task"].(string)
	sessionID := core.ExchangeID(ctx)

	remoteTask, err := p.dispatcher.Dispatch(ctx, sessionID, agentName, task)
	if err != nil {
		return "", fmt.Errorf("delegation to %s failed: %w", agentName, err)
	}

	text := remoteTask.ResultText()
	if text == "" {
		text = fmt.Sprintf("remote task %s is %s", remoteTask.ID, remoteTask.Status.State)
	}
	return text, nil
}

func (p *ToolProvider) listAgents(context.Context, map[string]any) (string, error) {
	summary := p.dispatcher.RosterSummary()
	if summary == "" {
		return "no remote agents available", nil
	}
	return summary, nil
}
