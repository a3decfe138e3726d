package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

type slackConnect struct {
	WebhookURL string `json:"webhook_url" validate:"required,url"`
}

type trelloConnect struct {
	APIKey string `json:"api_key" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

type githubConnect struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) integrationRoutes(r chi.Router) {
	r.Get("/", h.handleListIntegrations)
	r.Post("/slack/connect", h.handleConnectSlack)
	r.Post("/trello/connect", h.handleConnectTrello)
	r.Post("/github/connect", h.handleConnectGitHub)
	r.Post("/slack/notify", invoke[common.Notify](h, models.IntegrationSlack, "Notification sent successfully"))
	r.Post("/trello/create-card", invoke[common.CreateCard](h, models.IntegrationTrello, "Trello card created successfully"))
	r.Post("/github/create-issue", invoke[common.CreateIssue](h, models.IntegrationGitHub, "GitHub issue created successfully"))
	r.Delete("/{integrationID}", h.handleDisconnect)
}

func (h *Handler) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := h.integrations.List(r.Context(), currentUser(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"integrations": list})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request, kind models.IntegrationKind, name string, cfg map[string]string) {
	conn, err := h.integrations.Connect(r.Context(), currentUser(r).ID, kind, cfg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":     name + " integration connected successfully",
		"integration": conn.Integration,
		"items":       conn.Verification.Items,
	})
}

func (h *Handler) handleConnectSlack(w http.ResponseWriter, r *http.Request) {
	var req slackConnect
	if !read(w, r, &req) {
		return
	}
	h.connect(w, r, models.IntegrationSlack, "Slack", map[string]string{"webhook_url": req.WebhookURL})
}

func (h *Handler) handleConnectTrello(w http.ResponseWriter, r *http.Request) {
	var req trelloConnect
	if !read(w, r, &req) {
		return
	}
	h.connect(w, r, models.IntegrationTrello, "Trello", map[string]string{"api_key": req.APIKey, "token": req.Token})
}

func (h *Handler) handleConnectGitHub(w http.ResponseWriter, r *http.Request) {
	var req githubConnect
	if !read(w, r, &req) {
		return
	}
	h.connect(w, r, models.IntegrationGitHub, "GitHub", map[string]string{"token": req.Token})
}

// invoke decodes one action type and runs it with the caller's connector.
func invoke[A common.Action](h *Handler, kind models.IntegrationKind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var action A
		if !read(w, r, &action) {
			return
		}
		res, err := h.integrations.Invoke(r.Context(), currentUser(r).ID, kind, action)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": message, "result": res})
	}
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.integrations.Disconnect(r.Context(), currentUser(r).ID, chi.URLParam(r, "integrationID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, "Integration disconnected successfully")
}
