// Careroute is a care-coordination agent runtime.
//
// It exposes a small HTTP API: POST /v1/messages runs one exchange with the
// configured model backend (dispatching tools and remote-agent delegations as
// the model requests them), and POST /v1/replies applies an asynchronous
// patient reply to the session indexed by phone number. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	careroute [-config path]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/careroute/careroute"
	"github.com/careroute/careroute/config"
	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/logging"
	"github.com/careroute/careroute/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	logger := logging.New(&logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Format: cfg.LogFormat})

	rt, err := careroute.New(func(o *careroute.Options) {
		o.Config = cfg
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Listen.Address, strconv.Itoa(cfg.Listen.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(rt, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("server.shutting_down")
	return srv.Shutdown(shutdownCtx)
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type messageResponse struct {
	SessionID string                `json:"session_id"`
	Text      string                `json:"text"`
	Status    string                `json:"status"`
	ToolCalls []core.ToolCallRecord `json:"tool_calls,omitempty"`
}

type replyRequest struct {
	Phone string `json:"phone"`
	Reply string `json:"reply"`
}

type replyResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

func newHandler(rt *careroute.Runtime, logger logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "text is required")
			return
		}
		if req.SessionID == "" {
			req.SessionID = core.NewID()
		}

		result, err := rt.HandleMessage(r.Context(), req.SessionID, req.Text)
		if err != nil {
			logger.Error("http.message.failed", "session_id", req.SessionID, "error", err.Error())
			writeJSON(w, http.StatusBadGateway, messageResponse{
				SessionID: req.SessionID,
				Status:    string(result.Status),
			})
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{
			SessionID: req.SessionID,
			Text:      result.Text,
			Status:    string(result.Status),
			ToolCalls: result.ToolCalls,
		})
	})

	mux.HandleFunc("POST /v1/replies", func(w http.ResponseWriter, r *http.Request) {
		var req replyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Phone == "" || req.Reply == "" {
			httpError(w, http.StatusBadRequest, "phone and reply are required")
			return
		}

		s, err := rt.HandleReply(req.Phone, req.Reply)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "no active session for phone")
			return
		}
		if err != nil {
			logger.Error("http.reply.failed", "phone", req.Phone, "error", err.Error())
			httpError(w, http.StatusInternalServerError, "failed to apply reply")
			return
		}

		writeJSON(w, http.StatusOK, replyResponse{SessionID: s.ID, State: string(s.State)})
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
