package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/auth"
)

func (h *Handler) analyticsRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/productivity", h.handleProductivity)
	r.Group(func(r chi.Router) {
		r.Use(h.require(auth.RequireAdminOrManager))
		r.Get("/team", h.handleTeamAnalytics)
		r.Get("/reports/custom", h.handleCustomReport)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reporter.Dashboard(r.Context(), currentUser(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) handleTeamAnalytics(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, 30)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	team, err := h.reporter.Team(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, team)
}

func (h *Handler) handleProductivity(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Productivity(r.Context(), currentUser(r).ID, r.URL.Query().Get("period"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleCustomReport requires both dates; user_ids and project_ids narrow
// the rows.
func (h *Handler) handleCustomReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start_date") == "" || q.Get("end_date") == "" {
		h.respondError(w, r, apperr.Invalid("start_date and end_date are required"))
		return
	}
	from, to, err := h.dateRange(r, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report, err := h.reporter.CustomReport(r.Context(), from, to, listParam(r, "user_ids"), listParam(r, "project_ids"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
