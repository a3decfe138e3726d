package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/models"
)

type projectRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description,omitempty"`
	Client      string     `json:"client" validate:"required,max=200"`
	Budget      float64    `json:"budget" validate:"gte=0"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	TeamMembers []string   `json:"team_members,omitempty"`
}

type taskRequest struct {
	Title          string              `json:"title" validate:"required,max=500"`
	Description    string              `json:"description,omitempty"`
	AssigneeID     string              `json:"assignee_id,omitempty"`
	Priority       models.TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	EstimatedHours *float64            `json:"estimated_hours,omitempty" validate:"omitempty,gte=0"`
	DueDate        *time.Time          `json:"due_date,omitempty"`
}

func (h *Handler) projectRoutes(r chi.Router) {
	r.Get("/", h.handleListProjects)
	r.Get("/stats/dashboard", h.handleProjectStats)
	r.With(h.require(auth.RequireAdminOrManager)).Post("/", h.handleCreateProject)

	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.handleGetProject)
		r.Put("/", h.handleUpdateProject)
		r.With(h.require(auth.RequireAdminOrManager)).Delete("/", h.handleDeleteProject)

		r.Post("/tasks", h.handleCreateTask)
		r.Get("/tasks", h.handleListTasks)
		r.Put("/tasks/{taskID}", h.handleUpdateTask)
		r.Delete("/tasks/{taskID}", h.handleDeleteTask)
	})
}

// visibleProject loads the URL's project if the caller may see it: admins
// and managers see everything, others only projects they are on.
func (h *Handler) visibleProject(r *http.Request) (*models.Project, error) {
	p, err := h.repo.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		return nil, err
	}
	me := currentUser(r)
	if !me.IsAdminOrManager() && !p.HasMember(me.ID) {
		return nil, apperr.Forbidden("Access denied")
	}
	return p, nil
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !read(w, r, &req) {
		return
	}
	p := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		Client:      req.Client,
		Budget:      req.Budget,
		Deadline:    req.Deadline,
		TeamMembers: req.TeamMembers,
		CreatedBy:   currentUser(r).ID,
	}
	if err := h.repo.CreateProject(r.Context(), p); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.presence.ProjectUpdate(r.Context(), "created", p)
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	filter := models.ProjectFilter{
		Status: models.ProjectStatus(r.URL.Query().Get("status")),
		Offset: offset,
		Limit:  limit,
	}
	if me := currentUser(r); !me.IsAdminOrManager() {
		filter.MemberID = me.ID
	}
	projects, err := h.repo.ListProjects(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.visibleProject(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// handleUpdateProject allows admins, managers and the project's creator.
func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var upd models.ProjectUpdate
	if !read(w, r, &upd) {
		return
	}
	p, err := h.repo.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if me := currentUser(r); !me.IsAdminOrManager() && p.CreatedBy != me.ID {
		h.respondError(w, r, apperr.Forbidden("Access denied"))
		return
	}
	p, err = h.repo.UpdateProject(r.Context(), p.ID, upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.presence.ProjectUpdate(r.Context(), "updated", p)
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if err := h.repo.DeleteProject(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.presence.ProjectUpdate(r.Context(), "deleted", map[string]string{"id": id})
	respondMessage(w, "Project deleted successfully")
}

func (h *Handler) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporter.ProjectStats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !read(w, r, &req) {
		return
	}
	p, err := h.visibleProject(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t := &models.Task{
		ProjectID:      p.ID,
		Title:          req.Title,
		Description:    req.Description,
		AssigneeID:     req.AssigneeID,
		Priority:       req.Priority,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
		CreatedBy:      currentUser(r).ID,
	}
	if err := h.repo.CreateTask(r.Context(), t); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	p, err := h.visibleProject(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	tasks, err := h.repo.ListTasks(r.Context(), p.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// projectTask loads the URL's task and checks it belongs to the URL's
// project, which the caller must be able to see.
func (h *Handler) projectTask(r *http.Request) (*models.Task, error) {
	p, err := h.visibleProject(r)
	if err != nil {
		return nil, err
	}
	t, err := h.repo.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		return nil, err
	}
	if t.ProjectID != p.ID {
		return nil, apperr.NotFound("Task not found")
	}
	return t, nil
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var upd models.TaskUpdate
	if !read(w, r, &upd) {
		return
	}
	t, err := h.projectTask(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err = h.repo.UpdateTask(r.Context(), t.ID, upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.projectTask(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.repo.DeleteTask(r.Context(), t.ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, "Task deleted successfully")
}
