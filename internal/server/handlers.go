package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/scrypster/resolver/internal/engine"
	"github.com/scrypster/resolver/internal/storage/guard"
	"github.com/scrypster/resolver/pkg/types"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 1000
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type resolveResponse struct {
	Result *types.ResolutionResult `json:"result"`
}

type batchRequest struct {
	Mentions   []string           `json:"mentions"`
	Scope      string             `json:"scope"`
	TypeFilter []types.EntityType `json:"type_filter,omitempty"`
}

type batchResponse struct {
	Results []*types.ResolutionResult `json:"results"`
}

type semanticRequest struct {
	Mention    string             `json:"mention"`
	Embedding  []float32          `json:"embedding"`
	Scope      string             `json:"scope"`
	TypeFilter []types.EntityType `json:"type_filter,omitempty"`
	Threshold  float64            `json:"threshold,omitempty"`
	TopK       int                `json:"top_k,omitempty"`
}

type semanticResponse struct {
	Candidates []types.ScoredEntity `json:"candidates"`
}

type semanticBatchRequest struct {
	Queries    []engine.SemanticQuery `json:"queries"`
	Scope      string                 `json:"scope"`
	TypeFilter []types.EntityType     `json:"type_filter,omitempty"`
}

type semanticBatchResponse struct {
	Results [][]types.ScoredEntity `json:"results"`
}

type suggestRequest struct {
	Mention   string  `json:"mention"`
	Scope     string  `json:"scope"`
	Threshold float64 `json:"threshold,omitempty"`
	TopK      int     `json:"top_k,omitempty"`
}

type suggestResponse struct {
	Suggestions []types.ScoredAlias `json:"suggestions"`
}

type healthResponse struct {
	Status  string         `json:"status"`
	Breaker string         `json:"breaker,omitempty"`
	Store   string         `json:"store,omitempty"`
	Metrics *guard.Metrics `json:"metrics,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req types.ResolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resolveResponse{Result: result})
}

func (s *Server) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Mentions) > maxBatchSize {
		respondError(w, http.StatusBadRequest, "too many mentions (max "+strconv.Itoa(maxBatchSize)+")", CodeBadRequest)
		return
	}

	results, err := s.resolver.ResolveBatch(r.Context(), req.Mentions, req.Scope, req.TypeFilter)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleResolveSemantic(w http.ResponseWriter, r *http.Request) {
	var req semanticRequest
	if !decodeBody(w, r, &req) {
		return
	}

	candidates, err := s.resolver.ResolveSemanticOnly(r.Context(), req.Mention, req.Embedding, req.Scope, req.TypeFilter, req.Threshold, req.TopK)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, semanticResponse{Candidates: candidates})
}

func (s *Server) handleResolveSemanticBatch(w http.ResponseWriter, r *http.Request) {
	var req semanticBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Queries) > maxBatchSize {
		respondError(w, http.StatusBadRequest, "too many queries (max "+strconv.Itoa(maxBatchSize)+")", CodeBadRequest)
		return
	}

	results, err := s.resolver.ResolveSemanticBatch(r.Context(), req.Queries, req.Scope, req.TypeFilter)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, semanticBatchResponse{Results: results})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	suggestions, err := s.resolver.FuzzyGlossarySuggest(r.Context(), req.Mention, req.Scope, req.Threshold, req.TopK)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

// handleHealth always answers 200 while the process is up; a degraded store
// is reported in the body so load balancers do not flap with the breaker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if s.health != nil {
		metrics := s.health.Metrics()
		resp.Breaker = s.health.State()
		resp.Metrics = &metrics
		resp.Store = "ok"
		if err := s.health.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
		}
		if resp.Breaker == "open" {
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// classifyError maps an engine error to a status, code and client message.
// Store failures, open circuits included, are 503.
func classifyError(err error) (int, string, string) {
	if errors.Is(err, engine.ErrStoreUnavailable) || errors.Is(err, guard.ErrCircuitOpen) {
		return http.StatusServiceUnavailable, CodeStoreUnavailable, "store unavailable"
	}
	return http.StatusInternalServerError, CodeInternal, "internal error"
}

func (s *Server) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	if errors.Is(err, guard.ErrCircuitOpen) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Breaker.OpenTimeout.Seconds())))
	}
	s.log.Warnw("request failed", "path", r.URL.Path, "status", status, "request_id", RequestID(r.Context()), "error", err)
	respondError(w, status, message, code)
}

// decodeBody reads a JSON body into dst, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), CodeBadRequest)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
