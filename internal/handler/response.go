package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/hlog"

	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error":{"status","message"}} using the
// canonical gRPC code name. Internal causes are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == errors.ErrCodeInternal {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}

	detail := errorDetail{
		Status:  grpcStatusName(code),
		Message: errors.PublicMessage(err),
	}
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		detail.Field = domainErr.Field
	}

	writeJSON(w, code.HTTPStatus(), errorBody{Error: detail})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
		Status:  "UNIMPLEMENTED",
		Message: "method not allowed",
	}})
}

// grpcStatusName renders a code as its upper snake case gRPC name,
// e.g. NotFound -> NOT_FOUND.
func grpcStatusName(code errors.ErrorCode) string {
	name := code.GRPCCode().String()
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.InvalidInput("body", "invalid request body")
	}
	return nil
}

// ── response documents ───────────────────────────────────────────────────────

type snapshotResponse struct {
	ProposalID string         `json:"proposalId"`
	Version    string         `json:"version"`
	Content    map[string]any `json:"content"`
	Branding   map[string]any `json:"branding"`
	Terms      any            `json:"terms"`
	Checksum   string         `json:"checksum"`
	CreatedBy  string         `json:"createdBy"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toSnapshotResponse(s *repository.Snapshot) *snapshotResponse {
	if s == nil {
		return nil
	}
	return &snapshotResponse{
		ProposalID: s.ProposalID,
		Version:    s.Version,
		Content:    s.Content,
		Branding:   s.Branding,
		Terms:      s.Terms,
		Checksum:   s.Checksum,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
	}
}

type patternResponse struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	Indicators      []string   `json:"indicators"`
	Examples        []string   `json:"examples"`
	ConfidenceLevel string     `json:"confidenceLevel"`
	Status          string     `json:"status"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	ReviewedBy      *string    `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
}

func toPatternResponses(patterns []*repository.Pattern) []patternResponse {
	out := make([]patternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, patternResponse{
			ID:              p.ID,
			Description:     p.Description,
			Indicators:      p.Indicators,
			Examples:        p.Examples,
			ConfidenceLevel: p.ConfidenceLevel,
			Status:          p.Status,
			CreatedBy:       p.CreatedBy,
			CreatedAt:       p.CreatedAt,
			ReviewedBy:      p.ReviewedBy,
			ReviewedAt:      p.ReviewedAt,
		})
	}
	return out
}
