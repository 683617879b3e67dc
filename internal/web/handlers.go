package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pompdany/gatekeeper/internal/buildinfo"
	"github.com/pompdany/gatekeeper/internal/builder"
	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
)

type chatRequest struct {
	AgentID   string `json:"agent_id"`
	UserEmail string `json:"user_email"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" || req.UserEmail == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "agent_id, user_email and message are required")
		return
	}

	// First contact materializes the user on the free tier.
	if err := s.store.EnsureUser(req.UserEmail, "free"); err != nil {
		s.logger.Error("ensure user failed", "user", req.UserEmail, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.guard.Check(req.UserEmail, quota.ActionSendMessage); err != nil {
		var limitErr *quota.LimitError
		if errors.As(err, &limitErr) {
			s.writeError(w, http.StatusTooManyRequests, limitErr.Error())
			return
		}
		s.logger.Error("quota check failed", "user", req.UserEmail, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ag, err := s.store.Agent(req.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		s.logger.Error("load agent failed", "agent_id", req.AgentID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res, err := s.loop.Run(r.Context(), ag, req.UserEmail, req.Message)
	if err != nil {
		// The guard passed but the transactional reserve lost a race.
		if errors.Is(err, store.ErrMessageLimit) {
			s.writeError(w, http.StatusTooManyRequests, store.ErrMessageLimit.Error())
			return
		}
		s.logger.Error("turn failed", "agent_id", req.AgentID, "user", req.UserEmail, "error", err)
		s.writeError(w, http.StatusBadGateway, "the agent could not complete this turn")
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

type createAgentRequest struct {
	UserEmail   string   `json:"user_email"`
	Name        string   `json:"name"`
	Personality string   `json:"personality"`
	Goal        string   `json:"goal"`
	Tools       []string `json:"tools"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Icon        string   `json:"icon"`
	APISecrets  string   `json:"api_secrets"`
}

// agentView is the API shape of an agent. Secrets never leave the
// server.
type agentView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Persona     string    `json:"persona"`
	Goal        string    `json:"goal"`
	Tools       []string  `json:"tools"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(a *store.Agent) agentView {
	return agentView{
		ID:          a.ID,
		Name:        a.Name,
		Persona:     a.Persona,
		Goal:        a.Goal,
		Tools:       a.EnabledTools,
		Model:       a.Model,
		Temperature: a.Temperature,
		Icon:        a.Icon,
		CreatedAt:   a.CreatedAt,
	}
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserEmail == "" || req.Name == "" || req.Personality == "" || req.Goal == "" {
		s.writeError(w, http.StatusBadRequest, "user_email, name, personality and goal are required")
		return
	}

	if unknown := s.registry.UnknownNames(req.Tools); len(unknown) > 0 {
		s.writeError(w, http.StatusBadRequest, "unknown tools: "+strings.Join(unknown, ", "))
		return
	}

	if err := s.store.EnsureUser(req.UserEmail, "free"); err != nil {
		s.logger.Error("ensure user failed", "user", req.UserEmail, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	temperature := builder.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	icon := req.Icon
	if icon == "" {
		icon = builder.DefaultIcon
	}

	ag := &store.Agent{
		Creator:      req.UserEmail,
		Name:         req.Name,
		Persona:      req.Personality,
		Goal:         req.Goal,
		EnabledTools: req.Tools,
		Model:        model,
		Temperature:  temperature,
		Icon:         icon,
		Secrets:      req.APISecrets,
	}
	if err := s.store.CreateAgent(ag); err != nil {
		if errors.Is(err, store.ErrAgentLimit) {
			s.writeError(w, http.StatusTooManyRequests, store.ErrAgentLimit.Error())
			return
		}
		s.logger.Error("create agent failed", "user", req.UserEmail, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusCreated, viewOf(ag))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("user")
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	agents, err := s.store.AgentsByCreator(email)
	if err != nil {
		s.logger.Error("list agents failed", "user", email, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, viewOf(a))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": buildinfo.Uptime().String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}
