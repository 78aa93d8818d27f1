package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/careroute/careroute/logging"
)

// Registry aggregates tool descriptors and handlers from capability providers
// into one name-keyed table. Registration is fail-fast: a duplicate name or a
// broken schema aborts startup with a ConfigError before any dispatch is
// served. Dispatch, by contrast, never fails the caller — unknown tools and
// handler errors come back as result text the model can react to.
//
// The registry holds no domain state; all side effects belong to providers.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	logger  logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  opts.Logger,
	}
}

// Register ingests every tool of the given providers. The first duplicate
// name or uncompilable parameter schema aborts the whole registration.
func (r *Registry) Register(providers ...Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range providers {
		for _, t := range p.Tools() {
			name := t.Name()
			if name == "" {
				return &ConfigError{Message: fmt.Sprintf("provider %T declares a tool with an empty name", p)}
			}
			if _, exists := r.tools[name]; exists {
				return &ConfigError{Message: fmt.Sprintf("duplicate tool name %q", name)}
			}

			schema, err := compileSchema(name, t.Parameters())
			if err != nil {
				return &ConfigError{Message: fmt.Sprintf("tool %q: invalid parameter schema: %v", name, err)}
			}

			r.tools[name] = t
			r.schemas[name] = schema
			r.logger.Debug("registry.tool.registered", "tool", name)
		}
	}
	return nil
}

// Descriptors returns the registered tool descriptors sorted by name, giving
// callers a stable order when building backend requests.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Dispatch executes the named tool with JSON-encoded arguments and returns
// result text. Every failure mode — unknown name, malformed or invalid
// arguments, handler error or panic — is folded into the returned text so the
// backend can attempt recovery on its own.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("registry.dispatch.unknown_tool", "tool", name)
		return fmt.Sprintf("unknown tool: %s", name)
	}

	args, err := decodeArgs(argsJSON)
	if err != nil {
		r.logger.Warn("registry.dispatch.bad_arguments", "tool", name, "error", err.Error())
		return fmt.Sprintf("Error executing tool: invalid arguments for %s: %v", name, err)
	}

	if schema != nil {
		if err := schema.Validate(toValidatable(args)); err != nil {
			r.logger.Warn("registry.dispatch.validation_failed", "tool", name, "error", err.Error())
			return fmt.Sprintf("Error executing tool: parameter validation failed for %s: %v", name, err)
		}
	}

	result, err := r.call(ctx, t, args)
	if err != nil {
		r.logger.Error("registry.dispatch.tool_failed", "tool", name, "error", err.Error())
		return fmt.Sprintf("Error executing tool: %v", err)
	}

	r.logger.Info("registry.dispatch.ok", "tool", name)
	return result
}

// call isolates the handler invocation so a panicking provider is demoted to
// an ordinary error instead of killing the exchange goroutine.
func (r *Registry) call(ctx context.Context, t Tool, args map[string]any) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolError{Tool: t.Name(), Message: fmt.Sprintf("panic: %v", rec), Code: "PANIC"}
		}
	}()
	return t.Call(ctx, args)
}

func decodeArgs(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	args := make(map[string]any)
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// compileSchema round-trips the parameter map through JSON so the compiler
// sees the exact document the model receives.
func compileSchema(name string, parameters map[string]any) (*jsonschema.Schema, error) {
	if parameters == nil {
		return nil, nil
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "tool://" + name + "/schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// toValidatable normalizes decoded arguments into the shape the validator
// expects (plain JSON values, numbers as float64).
func toValidatable(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}
