package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/service"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	patterns  *service.PatternService
	proposals *service.ProposalService
	actions   *service.ActionService
	projects  *service.ProjectService
	health    HealthCheck
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. health may be nil.
func NewHTTPHandler(
	patterns *service.PatternService,
	proposals *service.ProposalService,
	actions *service.ActionService,
	projects *service.ProjectService,
	health HealthCheck,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		patterns:  patterns,
		proposals: proposals,
		actions:   actions,
		projects:  projects,
		health:    health,
		log:       log,
	}
}

// Routes returns the full HTTP surface with logging, recovery, a request
// deadline and bearer-token auth on every /api route.
func (h *HTTPHandler) Routes(verifier *auth.Verifier, requestTimeout time.Duration) http.Handler {
	authed := RequireAuth(verifier)
	api := func(fn http.HandlerFunc) http.Handler { return authed(fn) }

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)

	mux.Handle("/api/v1/proposals/snapshots", api(h.CreateSnapshot))
	mux.Handle("/api/v1/proposals/snapshots/latest", api(h.LatestSnapshot))
	mux.Handle("/api/v1/proposals/snapshots/verify", api(h.VerifySnapshot))

	mux.Handle("/api/v1/risks/acknowledge", api(h.mutation(service.ActionAcknowledgeRisk)))
	mux.Handle("/api/v1/patterns/approve", api(h.mutation(service.ActionApprovePattern)))
	mux.Handle("/api/v1/patterns/reject", api(h.mutation(service.ActionRejectPattern)))
	mux.Handle("/api/v1/patterns", api(h.ListPatterns))
	mux.Handle("/api/v1/patterns/run", api(h.RunPatterns))

	mux.Handle("/api/v1/projects/risk-signals", api(h.RiskSignals))
	mux.Handle("/api/v1/projects/financial-flags", api(h.FinancialFlags))

	mws := RequestLogging(h.log.Logger)
	mws = append(mws, Recover, Timeout(requestTimeout))
	return Chain(mux, mws...)
}

// Health handles liveness and readiness probes.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSnapshotBody struct {
	TenantID   string         `json:"tenant_id"`
	ProposalID string         `json:"proposal_id"`
	Branding   map[string]any `json:"branding,omitempty"`
}

// CreateSnapshot handles create snapshot HTTP requests
func (h *HTTPHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var body createSnapshotBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := h.proposals.CreateSnapshot(r.Context(), callerFrom(r), &service.CreateSnapshotRequest{
		OrgID:      body.TenantID,
		ProposalID: body.ProposalID,
		Branding:   body.Branding,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

// LatestSnapshot handles latest snapshot HTTP requests. A proposal without
// snapshots yields {"snapshot": null}.
func (h *HTTPHandler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	snap, err := h.proposals.LatestSnapshot(r.Context(), callerFrom(r), q.Get("tenant_id"), q.Get("proposal_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snapshot": toSnapshotResponse(snap)})
}

// VerifySnapshot handles snapshot checksum verification HTTP requests
func (h *HTTPHandler) VerifySnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	result, err := h.proposals.VerifySnapshot(r.Context(), callerFrom(r), q.Get("tenant_id"), q.Get("proposal_id"), q.Get("version"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type mutationBody struct {
	TenantID string `json:"tenant_id"`
	TargetID string `json:"target_id"`
}

// mutation returns the handler of a role-gated action endpoint.
func (h *HTTPHandler) mutation(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}

		var body mutationBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := h.actions.Execute(r.Context(), callerFrom(r), &service.MutationRequest{
			Action:   action,
			OrgID:    body.TenantID,
			TargetID: body.TargetID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// ListPatterns handles list patterns HTTP requests
func (h *HTTPHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	var status *string
	if s := q.Get("status"); s != "" {
		status = &s
	}

	patterns, err := h.patterns.List(r.Context(), callerFrom(r), q.Get("tenant_id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": toPatternResponses(patterns),
		"total":    len(patterns),
	})
}

type runPatternsBody struct {
	TenantID string `json:"tenant_id"`
}

// RunPatterns handles manual pattern aggregation HTTP requests
func (h *HTTPHandler) RunPatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var body runPatternsBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.patterns.Run(r.Context(), callerFrom(r), body.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns":      toPatternResponses(created),
		"pattern_count": len(created),
	})
}

// RiskSignals handles project risk signal HTTP requests
func (h *HTTPHandler) RiskSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	result, err := h.projects.RiskSignals(r.Context(), callerFrom(r), q.Get("tenant_id"), q.Get("project_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// FinancialFlags handles project financial flag HTTP requests
func (h *HTTPHandler) FinancialFlags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	q := r.URL.Query()
	result, err := h.projects.FinancialFlags(r.Context(), callerFrom(r), q.Get("tenant_id"), q.Get("project_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// callerFrom returns the verified caller, or nil on an unauthenticated
// request; services reject nil callers.
func callerFrom(r *http.Request) *auth.UserContext {
	uc, err := auth.GetUserContext(r.Context())
	if err != nil {
		return nil
	}
	return uc
}
