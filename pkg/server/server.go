// Package server is the HTTP front door: request decoding, API-key gating,
// and mapping of engine failures onto client-facing statuses. The engine
// itself knows nothing about HTTP.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/classify"
	"github.com/zen-systems/quorum/pkg/council"
	"github.com/zen-systems/quorum/pkg/engine"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Server handles the public HTTP surface.
type Server struct {
	engine   *engine.Engine
	registry *catalog.Registry
	apiKey   string
	logger   *slog.Logger
}

// New creates a Server. An empty apiKey disables authentication.
func New(eng *engine.Engine, registry *catalog.Registry, apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, registry: registry, apiKey: apiKey, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/v1/consensus", s.handleConsensus)
		r.Get("/v1/models", s.handleModels)
	})

	return r
}

type consensusRequest struct {
	Prompt      string `json:"prompt"`
	BudgetTier  string `json:"budget_tier,omitempty"`
	Reliability string `json:"reliability,omitempty"`
	// Tier overrides the classifier when set.
	Tier string `json:"tier,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[consensusRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	budget, ok := parseBudget(req.BudgetTier)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid budget_tier")
		return
	}
	reliability, ok := parseReliability(req.Reliability)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid reliability")
		return
	}
	tier, ok := resolveTier(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tier")
		return
	}

	result, err := s.engine.RunConsensus(r.Context(), engine.Request{
		Prompt:      req.Prompt,
		BudgetTier:  budget,
		Reliability: reliability,
	}, tier)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	live, err := s.registry.Models(r.Context())
	if err != nil {
		s.logger.Warn("catalog unavailable for /v1/models, serving fallback", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": catalog.Merge(live, catalog.Fallback()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps surfaced engine failures onto client statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, council.ErrBudgetExceeded):
		writeError(w, http.StatusPaymentRequired, "budget exceeded for requested tier")
	case errors.Is(err, engine.ErrNoModels):
		writeError(w, http.StatusServiceUnavailable, "no models available for request")
	case errors.Is(err, engine.ErrAllModelsFailed):
		writeError(w, http.StatusBadGateway, "all council models failed")
	default:
		s.logger.Error("consensus request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireAPIKey gates requests on a static key from either the
// Authorization bearer header or X-API-Key. No key configured, no gate.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseBudget(raw string) (council.BudgetTier, bool) {
	switch council.BudgetTier(raw) {
	case "", council.BudgetLow:
		return council.BudgetLow, true
	case council.BudgetFree, council.BudgetMedium, council.BudgetHigh:
		return council.BudgetTier(raw), true
	default:
		return "", false
	}
}

func parseReliability(raw string) (council.Reliability, bool) {
	switch council.Reliability(raw) {
	case "", council.ReliabilityStandard:
		return council.ReliabilityStandard, true
	case council.ReliabilityHigh:
		return council.ReliabilityHigh, true
	default:
		return "", false
	}
}

func resolveTier(req consensusRequest) (classify.Tier, bool) {
	switch classify.Tier(req.Tier) {
	case "":
		return classify.Prompt(req.Prompt).Tier, true
	case classify.Simple, classify.Medium, classify.Complex:
		return classify.Tier(req.Tier), true
	default:
		return "", false
	}
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
