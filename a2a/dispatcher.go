package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/logging"
)

// Continuation is the (task id, context id) pair that lets a remote agent
// resume its own internal state across dispatches from the same session. It
// exists only between a non-terminal response and the next dispatch to the
// same target.
type Continuation struct {
	TaskID    string
	ContextID string
}

type remoteAgent struct {
	card   *AgentCard
	client *Client
}

// Dispatcher sends delegated task descriptions to named remote agents. It
// owns the roster discovered at startup and the per-(session, target)
// continuation table.
type Dispatcher struct {
	mu            sync.Mutex
	agents        map[string]*remoteAgent
	continuations map[string]Continuation
	active        map[string]string // session id -> last dispatched agent
	httpClient    *http.Client
	logger        logging.Logger
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	HTTPClient *http.Client
	Logger     logging.Logger
}

// NewDispatcher constructs a dispatcher with an empty roster. Call Discover
// to populate it.
func NewDispatcher(optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{
		agents:        make(map[string]*remoteAgent),
		continuations: make(map[string]Continuation),
		active:        make(map[string]string),
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
	}
}

// Discover resolves each address's agent card and adds the agent to the
// roster. An address that cannot be reached is logged and skipped — the
// roster degrades to whichever targets answered.
func (d *Dispatcher) Discover(ctx context.Context, addresses []string) {
	for _, addr := range addresses {
		var clientOpts []ClientOption
		if d.httpClient != nil {
			clientOpts = append(clientOpts, WithHTTPClient(d.httpClient))
		}
		client := NewClient(addr, clientOpts...)

		card, err := client.FetchAgentCard(ctx)
		if err != nil {
			d.logger.Warn("a2a.discover.unreachable", "address", addr, "error", err.Error())
			continue
		}

		d.mu.Lock()
		d.agents[card.Name] = &remoteAgent{card: card, client: client}
		d.mu.Unlock()

		d.logger.Info("a2a.discover.registered", "agent", card.Name, "address", addr)
	}
}

// Agents returns the cards of every reachable remote agent.
func (d *Dispatcher) Agents() []AgentCard {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]AgentCard, 0, len(d.agents))
	for _, ra := range d.agents {
		out = append(out, *ra.card)
	}
	return out
}

// RosterSummary renders one JSON line per reachable agent (name +
// description), suitable for embedding into a system instruction.
func (d *Dispatcher) RosterSummary() string {
	var lines []string
	for _, card := range d.Agents() {
		line, err := json.Marshal(map[string]string{
			"name":        card.Name,
			"description": card.Description,
		})
		if err != nil {
			continue
		}
		lines = append(lines, string(line))
	}
	return strings.Join(lines, "\n")
}

// ActiveAgent returns the target of the session's most recent dispatch, or "".
func (d *Dispatcher) ActiveAgent(sessionID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[sessionID]
}

// Dispatch sends a task description to the named remote agent on behalf of a
// session. The first dispatch to a target omits task and context ids so the
// server opens a fresh task; later dispatches carry the stored continuation
// so the remote resumes its own context. A response reporting a terminal
// state clears the continuation; a failed or structurally unexpected response
// leaves it untouched and returns a nil task with the error.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, agentName, task string) (*Task, error) {
	d.mu.Lock()
	ra, ok := d.agents[agentName]
	cont := d.continuations[continuationKey(sessionID, agentName)]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("remote agent %q not found", agentName)
	}

	msg := NewTextMessage(core.NewID(), task)
	msg.TaskID = cont.TaskID
	msg.ContextID = cont.ContextID

	d.logger.Debug("a2a.dispatch.send",
		"agent", agentName,
		"session_id", sessionID,
		"continuation", cont.TaskID != "")

	result, err := ra.client.SendMessage(ctx, msg)
	if err != nil {
		d.logger.Warn("a2a.dispatch.failed", "agent", agentName, "error", err.Error())
		return nil, err
	}
	if result.Task == nil {
		d.logger.Warn("a2a.dispatch.non_task_result", "agent", agentName)
		return nil, fmt.Errorf("remote agent %q returned a non-task result", agentName)
	}

	remoteTask := result.Task

	d.mu.Lock()
	d.active[sessionID] = agentName
	key := continuationKey(sessionID, agentName)
	if remoteTask.Status.State.Terminal() {
		// Next dispatch to this target starts a fresh remote task.
		delete(d.continuations, key)
	} else {
		d.continuations[key] = Continuation{TaskID: remoteTask.ID, ContextID: remoteTask.ContextID}
	}
	d.mu.Unlock()

	d.logger.Info("a2a.dispatch.ok",
		"agent", agentName,
		"task_id", remoteTask.ID,
		"state", string(remoteTask.Status.State))
	return remoteTask, nil
}

// Continuation exposes the stored continuation for a (session, target) pair.
// A zero value means the next dispatch starts fresh.
func (d *Dispatcher) Continuation(sessionID, agentName string) Continuation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.continuations[continuationKey(sessionID, agentName)]
}

func continuationKey(sessionID, agentName string) string {
	return sessionID + "\x00" + agentName
}
