// Package web exposes the platform over HTTP: chat turns, agent
// management, health, and version.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pompdany/gatekeeper/internal/agent"
	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

// Server is the HTTP API server.
type Server struct {
	listen       string
	logger       *slog.Logger
	store        *store.Store
	guard        *quota.Guard
	loop         *agent.Loop
	registry     *tools.Registry
	defaultModel string
	server       *http.Server
}

// NewServer creates the API server. registry is the full tool registry,
// used to validate enabled-tool names on agent creation; defaultModel
// is assigned to agents created without an explicit model.
func NewServer(listen string, logger *slog.Logger, st *store.Store, guard *quota.Guard, loop *agent.Loop, registry *tools.Registry, defaultModel string) *Server {
	return &Server{
		listen:       listen,
		logger:       logger,
		store:        st,
		guard:        guard,
		loop:         loop,
		registry:     registry,
		defaultModel: defaultModel,
	}
}

// Handler builds the route table. Split out from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Method-prefixed ServeMux patterns ("POST /api/chat") need Go 1.22;
	// byMethod reproduces their dispatch (including 405 on mismatch and
	// HEAD matching GET) on the Go 1.21 mux.
	mux.HandleFunc("/api/chat", byMethod(map[string]http.HandlerFunc{
		http.MethodPost: s.handleChat,
	}))
	mux.HandleFunc("/api/agents", byMethod(map[string]http.HandlerFunc{
		http.MethodPost: s.handleCreateAgent,
		http.MethodGet:  s.handleListAgents,
	}))
	mux.HandleFunc("/api/health", byMethod(map[string]http.HandlerFunc{
		http.MethodGet: s.handleHealth,
	}))
	mux.HandleFunc("/api/version", byMethod(map[string]http.HandlerFunc{
		http.MethodGet: s.handleVersion,
	}))

	return s.withLogging(mux)
}

// byMethod dispatches on the request method like the Go 1.22+
// ServeMux method patterns: HEAD falls back to the GET handler, and
// unmatched methods get 405 with an Allow header.
func byMethod(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method]
		if !ok && r.Method == http.MethodHead {
			h, ok = handlers[http.MethodGet]
		}
		if !ok {
			allowed := make([]string, 0, len(handlers))
			for m := range handlers {
				allowed = append(allowed, m)
			}
			sort.Strings(allowed)
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// Start begins serving HTTP requests and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // turns can take several model calls
	}

	s.logger.Info("starting API server", "listen", s.listen)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// writeJSON encodes v as JSON to w. Encoding errors usually mean the
// client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
