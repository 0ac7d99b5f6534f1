package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/service"
)

// TenantHeader carries the tenant id when the activity itself does not.
const TenantHeader = "X-Ms-Tenant-Id"

// MessageHandler is the inbound bot messaging endpoint.
type MessageHandler struct {
	svc *service.TurnService
}

func NewMessageHandler(svc *service.TurnService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type activity struct {
	Type string `json:"type"`
	Text string `json:"text"`
	From struct {
		ID string `json:"id"`
	} `json:"from"`
	Conversation struct {
		TenantID string `json:"tenantId"`
		Name     string `json:"name"`
	} `json:"conversation"`
	ChannelData struct {
		Tenant struct {
			ID string `json:"id"`
		} `json:"tenant"`
		Team struct {
			Name string `json:"name"`
		} `json:"team"`
	} `json:"channelData"`
}

func (a activity) turn(headerTenant string) domain.Turn {
	return domain.Turn{
		ActivityType:       a.Type,
		Text:               a.Text,
		UserID:             a.From.ID,
		ConversationTenant: a.Conversation.TenantID,
		ChannelTenant:      a.ChannelData.Tenant.ID,
		HeaderTenant:       headerTenant,
		TeamName:           a.ChannelData.Team.Name,
		ConversationName:   a.Conversation.Name,
	}
}

type turnResponse struct {
	TenantID         string `json:"tenant_id"`
	CompanyName      string `json:"company_name"`
	CredentialSource string `json:"credential_source"`
	VersionID        string `json:"version_id"`
	Degraded         bool   `json:"degraded"`
}

func (h *MessageHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var act activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity")
		return
	}

	if act.Type != "message" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	res := h.svc.Resolve(r.Context(), act.turn(r.Header.Get(TenantHeader)))

	writeJSON(w, http.StatusOK, turnResponse{
		TenantID:         res.TenantID,
		CompanyName:      res.CompanyName,
		CredentialSource: string(res.Source),
		VersionID:        res.VersionID,
		Degraded:         res.Degraded,
	})
}
