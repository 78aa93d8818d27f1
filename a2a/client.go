package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// agentCardPath is the well-known discovery path every remote agent serves.
const agentCardPath = "/.well-known/agent.json"

// SendResult is the tagged outcome of one message/send call. Exactly one
// field is set: Task when the remote returned a task object, Message when it
// replied with a bare message. Normalization happens once, here — callers
// pattern-match instead of re-sniffing payload shapes.
type SendResult struct {
	Task    *Task
	Message *Message
}

// Client speaks the JSON-RPC task protocol with one remote agent.
type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
	id      uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a static header to every outgoing request.
func WithHeader(name, value string) ClientOption {
	return func(c *Client) { c.headers.Add(name, value) }
}

// NewClient constructs a client for the remote agent at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("a2a error %d: %s", e.Code, e.Message)
}

type sendParams struct {
	Message Message `json:"message"`
}

// FetchAgentCard retrieves the agent's manifest from the discovery path.
func (c *Client) FetchAgentCard(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+agentCardPath, nil)
	if err != nil {
		return nil, err
	}
	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card from %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch agent card from %s: status %d", c.baseURL, resp.StatusCode)
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card from %s: %w", c.baseURL, err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("agent card from %s has no name", c.baseURL)
	}
	if card.URL == "" {
		card.URL = c.baseURL
	}
	return &card, nil
}

// SendMessage submits one message and normalizes the reply into a SendResult.
func (c *Client) SendMessage(ctx context.Context, msg Message) (*SendResult, error) {
	raw, err := c.call(ctx, "message/send", sendParams{Message: msg})
	if err != nil {
		return nil, err
	}
	return normalizeResult(raw)
}

// call performs one JSON-RPC round trip and returns the raw result document.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      atomic.AddUint64(&c.id, 1),
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", method, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s to %s: status %d", method, c.baseURL, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if len(rpcResp.Result) == 0 {
		return nil, fmt.Errorf("%s to %s: empty result", method, c.baseURL)
	}
	return rpcResp.Result, nil
}

// normalizeResult classifies the raw result document once. A document with a
// status.state is a task; one with role+parts is a bare message; anything
// else is structurally unexpected.
func normalizeResult(raw json.RawMessage) (*SendResult, error) {
	switch {
	case gjson.GetBytes(raw, "status.state").Exists():
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("decode task result: %w", err)
		}
		if task.ID == "" {
			return nil, fmt.Errorf("task result missing id")
		}
		return &SendResult{Task: &task}, nil
	case gjson.GetBytes(raw, "role").Exists():
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode message result: %w", err)
		}
		return &SendResult{Message: &msg}, nil
	default:
		return nil, fmt.Errorf("unexpected result shape: %s", summarize(raw))
	}
}

func summarize(raw json.RawMessage) string {
	const max = 120
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
