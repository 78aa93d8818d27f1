// Package careroute provides a high-level façade over the loop engine and its
// services (capability registry, session store, remote task dispatcher and
// logging). Most applications interact with this package by:
//  1. Creating a Runtime via New() from a Config (or option overrides)
//  2. Registering capability providers
//  3. Handling inbound messages (HandleMessage) and asynchronous replies
//     (HandleReply)
//
// The façade delegates the agentic loop to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable session store, a
// real model backend and a structured logger.
package careroute

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/careroute/careroute/a2a"
	"github.com/careroute/careroute/config"
	"github.com/careroute/careroute/engine"
	"github.com/careroute/careroute/logging"
	"github.com/careroute/careroute/model"
	"github.com/careroute/careroute/model/anthropic"
	"github.com/careroute/careroute/model/openai"
	"github.com/careroute/careroute/session"
	"github.com/careroute/careroute/tool"
)

// Options configures a Runtime.
type Options struct {
	// Config supplies declarative settings. Defaults to config.Default().
	Config *config.Config

	// Model overrides the backend built from Config.Model.
	Model model.Model
	// SessionStore overrides the store built from Config.Session.
	SessionStore session.Store
	// ToolProviders are registered with the capability registry at startup.
	ToolProviders []tool.Provider
	// Hooks receives engine lifecycle notifications.
	Hooks *engine.Hooks
	// Logger defaults to one built from Config's log settings.
	Logger logging.Logger
}

// Runtime aggregates the engine, registry, session store and dispatcher
// behind a small surface.
type Runtime struct {
	cfg        *config.Config
	engine     *engine.Engine
	registry   *tool.Registry
	sessions   session.Store
	dispatcher *a2a.Dispatcher
	logger     logging.Logger
}

// New assembles a Runtime. Registration problems (duplicate tool names,
// malformed schemas) and store construction failures are fatal and reported
// here, before any request is served. Remote agents from the config are
// discovered with a short timeout; unreachable ones are skipped.
func New(optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{Config: config.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Format: cfg.LogFormat})
	}

	sessions := opts.SessionStore
	if sessions == nil {
		var err error
		sessions, err = buildSessionStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	backend := opts.Model
	if backend == nil {
		backend = buildModel(cfg)
	}

	dispatcher := a2a.NewDispatcher(func(o *a2a.DispatcherOptions) {
		o.Logger = logger
	})
	if len(cfg.RemoteAgents) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dispatcher.Discover(ctx, cfg.RemoteAgents)
		cancel()
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = logger
	})
	providers := opts.ToolProviders
	if len(cfg.RemoteAgents) > 0 {
		providers = append(providers, a2a.NewToolProvider(dispatcher))
	}
	if err := registry.Register(providers...); err != nil {
		return nil, err
	}

	eng := engine.New(backend, func(o *engine.Options) {
		o.Registry = registry
		o.Instruction = composeInstruction(cfg.Engine.Instruction, dispatcher)
		o.MaxIterations = cfg.Engine.MaxIterations
		o.Hooks = opts.Hooks
		o.Logger = logger
	})

	return &Runtime{
		cfg:        cfg,
		engine:     eng,
		registry:   registry,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// HandleMessage runs one exchange for a session and returns its result.
func (r *Runtime) HandleMessage(ctx context.Context, sessionID, text string) (*engine.Result, error) {
	return r.engine.Run(ctx, sessionID, text)
}

// HandleReply applies an asynchronous reply (for example an inbound SMS) to
// the session indexed by phone number: the reply is recorded in the session
// payload, the state transition is derived from the reply text, and the
// updated session is persisted. A missing or expired session returns
// session.ErrNotFound, which callers treat as "start a new conversation".
func (r *Runtime) HandleReply(phone, reply string) (*session.Session, error) {
	s, err := r.sessions.LoadByPhone(phone)
	if err != nil {
		return nil, err
	}

	session.ApplyReply(s, reply)
	if err := r.sessions.Save(s); err != nil {
		return nil, fmt.Errorf("persist reply for session %s: %w", s.ID, err)
	}

	r.logger.Info("runtime.reply.applied", "session_id", s.ID, "state", string(s.State))
	return s, nil
}

// Cancel discards the in-memory exchange state for a session. See
// engine.Engine.Cancel for the mid-flight signal.
func (r *Runtime) Cancel(sessionID string) error {
	return r.engine.Cancel(sessionID)
}

// Sessions exposes the session store.
func (r *Runtime) Sessions() session.Store { return r.sessions }

// Registry exposes the capability registry.
func (r *Runtime) Registry() *tool.Registry { return r.registry }

// Dispatcher exposes the remote task dispatcher.
func (r *Runtime) Dispatcher() *a2a.Dispatcher { return r.dispatcher }

// Engine exposes the loop engine.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

func buildSessionStore(cfg *config.Config, logger logging.Logger) (session.Store, error) {
	ttl, err := cfg.Session.SessionTTL()
	if err != nil {
		return nil, err
	}

	switch cfg.Session.Backend {
	case "", "memory":
		return session.NewMemoryStore(func(o *session.MemoryStoreOptions) {
			o.TTL = ttl
		}), nil
	case "file":
		return session.NewFileStore(cfg.Session.Path, func(o *session.FileStoreOptions) {
			o.TTL = ttl
			o.Logger = logger
		})
	case "sqlite":
		return session.NewSQLiteStore(cfg.Session.Path, func(o *session.SQLiteStoreOptions) {
			o.TTL = ttl
		})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func buildModel(cfg *config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			if cfg.Model.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.Model.MaxTokens)
			}
			if cfg.Model.Temperature > 0 {
				o.Temperature = cfg.Model.Temperature
			}
			o.APIKey = cfg.Model.APIKey
		})
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			if cfg.Model.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.Model.MaxTokens)
			}
			if cfg.Model.Temperature > 0 {
				o.Temperature = cfg.Model.Temperature
			}
		})
	default:
		return model.NewStubModel()
	}
}

// composeInstruction appends the discovered agent roster so the backend knows
// which delegation targets exist.
func composeInstruction(instruction string, dispatcher *a2a.Dispatcher) string {
	roster := dispatcher.RosterSummary()
	if roster == "" {
		return instruction
	}
	if instruction == "" {
		return "Available remote agents:\n" + roster
	}
	return instruction + "\n\nAvailable remote agents:\n" + roster
}
