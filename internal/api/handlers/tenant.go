package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/service"
	"github.com/go-chi/chi/v5"
)

// TenantHandler serves the administrative console endpoints.
type TenantHandler struct {
	svc *service.TenantService
}

func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{svc: svc}
}

type tenantResponse struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id,omitempty"`
	CompanyName        string         `json:"company_name,omitempty"`
	Email              string         `json:"email,omitempty"`
	HasVoiceflowSecret bool           `json:"has_voiceflow_secret"`
	VoiceflowVersion   string         `json:"voiceflow_version,omitempty"`
	Attributes         map[string]any `json:"attributes,omitempty"`
	LastSeen           time.Time      `json:"last_seen"`
	CreatedAt          time.Time      `json:"created_at"`
	ETag               string         `json:"etag"`
}

func newTenantResponse(t *domain.TenantRecord) tenantResponse {
	return tenantResponse{
		ID:                 t.ID,
		UserID:             t.UserID,
		CompanyName:        t.CompanyName,
		Email:              t.Email,
		HasVoiceflowSecret: t.VoiceflowSecret != "",
		VoiceflowVersion:   t.VoiceflowVersion,
		Attributes:         t.Attributes,
		LastSeen:           t.LastSeen,
		CreatedAt:          t.CreatedAt,
		ETag:               t.ETag,
	}
}

type updateCredentialsRequest struct {
	VoiceflowSecret  *string        `json:"voiceflow_secret"`
	VoiceflowVersion *string        `json:"voiceflow_version"`
	Attributes       map[string]any `json:"attributes"`
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, found, err := h.svc.GetTenantConfig(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "tenant store unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	w.Header().Set("ETag", quoteETag(t.ETag))
	writeJSON(w, http.StatusOK, newTenantResponse(t))
}

func (h *TenantHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := domain.AdminUpdate{
		VoiceflowSecret:  req.VoiceflowSecret,
		VoiceflowVersion: req.VoiceflowVersion,
		Attributes:       req.Attributes,
	}
	t, err := h.svc.UpdateAdminFields(r.Context(), id, u, parseIfMatch(r.Header.Get("If-Match")))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyAdminUpdate), errors.Is(err, service.ErrInvalidTenantID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTenantNotFound):
			writeError(w, http.StatusNotFound, "tenant not found")
		case errors.Is(err, service.ErrPreconditionFailed):
			writeError(w, http.StatusPreconditionFailed, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, "tenant store unavailable")
		}
		return
	}

	w.Header().Set("ETag", quoteETag(t.ETag))
	writeJSON(w, http.StatusOK, newTenantResponse(t))
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListIndex(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrIndexUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to read tenant index")
		return
	}
	if entries == nil {
		entries = []domain.IndexEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenants": entries,
		"count":   len(entries),
	})
}

func quoteETag(etag string) string {
	return `"` + etag + `"`
}

// parseIfMatch strips the quoting of an entity tag. "*" and an absent header
// both mean an unconditional write.
func parseIfMatch(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return ""
	}
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}
