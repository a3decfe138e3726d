package web

import (
	"net/http"

	"cdr.dev/slog"
	"github.com/go-chi/chi/v5"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/models"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !read(w, r, &req) {
		return
	}
	session, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !read(w, r, &req) {
		return
	}
	session, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !read(w, r, &req) {
		return
	}
	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), currentUser(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, "Successfully logged out")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}

func (h *Handler) userRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Put("/me", h.handleUpdateMe)
	r.Get("/team/stats", h.handleTeamStats)
	r.Get("/{userID}", h.handleGetUser)

	r.Group(func(r chi.Router) {
		r.Use(h.require(auth.RequireAdminOrManager))
		r.Get("/", h.handleListUsers)
		r.Put("/{userID}", h.handleUpdateUser)
		r.Delete("/{userID}", h.handleDeleteUser)
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		h.respondError(w, r, apperr.Invalid("invalid role: %s", role))
		return
	}
	users, err := h.repo.ListUsers(r.Context(), models.UserFilter{Role: role, Offset: offset, Limit: limit})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// handleUpdateMe lets users edit their profile but not their role.
func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if !read(w, r, &upd) {
		return
	}
	upd.Role = nil
	user, err := h.repo.UpdateUser(r.Context(), currentUser(r).ID, upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	id := chi.URLParam(r, "userID")
	if id != me.ID && !me.IsAdminOrManager() {
		h.respondError(w, r, apperr.Forbidden("Access denied"))
		return
	}
	user, err := h.repo.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if !read(w, r, &upd) {
		return
	}
	user, err := h.repo.UpdateUser(r.Context(), chi.URLParam(r, "userID"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	id := chi.URLParam(r, "userID")
	if id == me.ID {
		h.respondError(w, r, apperr.Invalid("Cannot delete yourself"))
		return
	}
	if err := h.repo.DeleteUser(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	// A deleted user's live session would otherwise keep receiving events.
	h.presence.Disconnect(r.Context(), id)
	h.log.Info(r.Context(), "user deleted", slog.F("user_id", id), slog.F("by", me.ID))
	respondMessage(w, "User deleted successfully")
}

func (h *Handler) handleTeamStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporter.TeamStats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	stats.Online = int64(h.presence.Count())
	respondJSON(w, http.StatusOK, stats)
}
