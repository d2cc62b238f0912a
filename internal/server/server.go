package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgeworks/forge-coordinator/internal/config"
	"github.com/forgeworks/forge-coordinator/internal/health"
	"github.com/forgeworks/forge-coordinator/internal/hub"
	"github.com/forgeworks/forge-coordinator/internal/router"
	"github.com/forgeworks/forge-coordinator/internal/store"
	"github.com/forgeworks/forge-coordinator/internal/usage"
	"github.com/forgeworks/forge-coordinator/internal/workflow"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	router     *router.Router
	ledger     *usage.Ledger
	eventHub   *hub.Hub
	runner     *workflow.Runner
	messages   *store.Store
	providers  *health.Ring
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Observers int    `json:"observers"`
	Timestamp string `json:"timestamp"`
}

// GenerateRequest is the inbound routing request
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Role   string `json:"role_description"`
}

// GenerateResponse is a successful routing result
type GenerateResponse struct {
	Text       string `json:"text"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Category   string `json:"category"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// ErrorResponse is a structured failure
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	LastErr  string `json:"last_error,omitempty"`
}

// ModelStatus describes the pin and fallback state
type ModelStatus struct {
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	Pinned       bool   `json:"pinned"`
	AutoFallback bool   `json:"auto_fallback"`
	PrimaryModel string `json:"primary_model"`
}

// ModelUpdateRequest pins or unpins a model and toggles fallback
type ModelUpdateRequest struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Unpin        bool   `json:"unpin,omitempty"`
	AutoFallback *bool  `json:"auto_fallback,omitempty"`
}

// WorkflowRequest creates and starts a workflow
type WorkflowRequest struct {
	Name         string `json:"name"`
	Requirements string `json:"requirements"`
}

// New creates a new HTTP server
func New(cfg *config.Config, r *router.Router, ledger *usage.Ledger, eventHub *hub.Hub, runner *workflow.Runner, st *store.Store, providers *health.Ring, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		router:    r,
		ledger:    ledger,
		eventHub:  eventHub,
		runner:    runner,
		messages:  st,
		providers: providers,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/v1/generate", s.generateHandler)
	mux.HandleFunc("/api/v1/chat", s.chatHandler)
	mux.HandleFunc("/api/v1/messages", s.messagesHandler)
	mux.HandleFunc("/api/v1/quotas", s.quotasHandler)
	mux.HandleFunc("/api/v1/model", s.modelHandler)
	mux.HandleFunc("/api/v1/models", s.modelsHandler)
	mux.HandleFunc("/api/v1/workflows", s.workflowsHandler)
	mux.HandleFunc("/api/v1/workflows/", s.workflowGetHandler)
	if providers != nil {
		mux.HandleFunc("/api/v1/providers", providers.Handler())
	}
	mux.HandleFunc("/ws", hub.Handler(eventHub))
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Observers: s.eventHub.ObserverCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// generateHandler routes one prompt through the provider chain
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt required", http.StatusBadRequest)
		return
	}

	res, err := s.router.Route(r.Context(), req.Prompt, req.Role)
	if err != nil {
		s.writeRouteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Text:       res.Text,
		Provider:   res.Provider,
		Model:      res.Model,
		Category:   string(res.Category),
		TokensUsed: res.TokensUsed,
	})
}

// chatHandler routes a prompt and persists both sides of the exchange
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt required", http.StatusBadRequest)
		return
	}

	if s.messages != nil {
		if err := s.messages.SaveMessage(r.Context(), &store.Message{
			ID:      uuid.NewString(),
			Sender:  "user",
			Content: req.Prompt,
			Type:    "user",
		}); err != nil {
			s.logger.Error("failed to save user message", "error", err)
		}
	}

	res, err := s.router.Route(r.Context(), req.Prompt, req.Role)
	if err != nil {
		if s.messages != nil {
			s.messages.SaveMessage(r.Context(), &store.Message{
				ID:      uuid.NewString(),
				Sender:  "system",
				Content: err.Error(),
				Type:    "system",
				IsError: true,
			})
		}
		s.writeRouteError(w, err)
		return
	}

	if s.messages != nil {
		if err := s.messages.SaveMessage(r.Context(), &store.Message{
			ID:      uuid.NewString(),
			Sender:  res.Provider + "/" + res.Model,
			Content: res.Text,
			Type:    "assistant",
		}); err != nil {
			s.logger.Error("failed to save reply", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Text:       res.Text,
		Provider:   res.Provider,
		Model:      res.Model,
		Category:   string(res.Category),
		TokensUsed: res.TokensUsed,
	})
}

// messagesHandler lists recent persisted messages
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.messages == nil {
		writeJSON(w, http.StatusOK, []store.Message{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := s.messages.ListMessages(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list messages", "error", err)
		http.Error(w, "Failed to retrieve messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// quotasHandler returns per-provider per-model usage percentages
func (s *Server) quotasHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Snapshot())
}

// modelHandler inspects or updates the pinned model and fallback flag
func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := ModelStatus{
			AutoFallback: s.router.AutoFallback(),
			PrimaryModel: s.router.Primary(),
		}
		if pinned, ok := s.router.Pinned(); ok {
			status.Provider = pinned.Provider
			status.Model = pinned.Model
			status.Pinned = true
		}
		writeJSON(w, http.StatusOK, status)

	case http.MethodPost:
		var req ModelUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		if req.Unpin {
			s.router.Unpin()
		} else if req.Provider != "" || req.Model != "" {
			if err := s.router.Pin(req.Provider, req.Model); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.logger.Info("model pinned", "provider", req.Provider, "model", req.Model)
		}
		if req.AutoFallback != nil {
			s.router.SetAutoFallback(*req.AutoFallback)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// modelsHandler lists all routable models
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.router.Models())
}

// workflowsHandler creates a workflow and starts it in the background
func (s *Server) workflowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Requirements == "" {
		http.Error(w, "name and requirements required", http.StatusBadRequest)
		return
	}

	wf := s.runner.Create(req.Name, req.Requirements)
	snapshot, _ := s.runner.Get(wf.ID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.runner.Start(ctx, wf.ID); err != nil {
			s.logger.Error("workflow failed", "workflow", wf.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, snapshot)
}

// workflowGetHandler returns one workflow's state
func (s *Server) workflowGetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/workflows/")
	wf, ok := s.runner.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// writeRouteError maps router errors to structured responses
func (s *Server) writeRouteError(w http.ResponseWriter, err error) {
	var exhausted *router.ExhaustedError
	if errors.As(err, &exhausted) {
		resp := ErrorResponse{
			Error:    "all providers exhausted",
			Category: string(exhausted.Category),
		}
		if exhausted.LastErr != nil {
			resp.LastErr = exhausted.LastErr.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
