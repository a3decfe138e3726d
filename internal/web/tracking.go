package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/internal/storage"
	"github.com/teamclock/teamclock/internal/tracker"
)

func (h *Handler) trackingRoutes(r chi.Router) {
	r.Post("/start", h.handleStart)
	r.Post("/stop/{entryID}", h.handleStop)
	r.Get("/active", h.handleActive)
	r.Get("/entries", h.handleListEntries)
	r.Post("/manual", h.handleManual)
	r.Put("/entries/{entryID}", h.handleUpdateEntry)
	r.Post("/activity", h.handleActivity)
	r.Post("/screenshot", h.handleScreenshot)
	r.Get("/reports/daily", h.handleDailyReport)
	r.With(h.require(auth.RequireAdminOrManager)).Get("/reports/team", h.handleTeamTimeReport)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req tracker.StartRequest
	if !read(w, r, &req) {
		return
	}
	entry, err := h.tracker.Start(r.Context(), currentUser(r).ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	entry, err := h.tracker.Stop(r.Context(), currentUser(r).ID, chi.URLParam(r, "entryID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// handleActive answers null when no timer is running.
func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	entry, err := h.tracker.GetActive(r.Context(), currentUser(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	from, err := dateParam(r, "start_date")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	to, err := dateParam(r, "end_date")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if to != nil {
		// end_date covers the whole day.
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}

	entries, err := h.tracker.List(r.Context(), currentUser(r).ID, models.EntryFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		From:      from,
		To:        to,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	var req tracker.ManualRequest
	if !read(w, r, &req) {
		return
	}
	entry, err := h.tracker.RecordManual(r.Context(), currentUser(r).ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var patch models.TimeEntryPatch
	if !read(w, r, &patch) {
		return
	}
	entry, err := h.tracker.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "entryID"), patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req tracker.ActivityRequest
	if !read(w, r, &req) {
		return
	}
	sample, err := h.tracker.RecordActivity(r.Context(), currentUser(r).ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sample)
}

// handleScreenshot takes a multipart form with time_entry_id, file and an
// optional activity_level.
func (h *Handler) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.respondError(w, r, apperr.Invalid("Invalid multipart upload: %v", err))
		return
	}
	entryID := r.FormValue("time_entry_id")
	if entryID == "" {
		h.respondError(w, r, apperr.Invalid("time_entry_id is required"))
		return
	}
	var level *float64
	if s := r.FormValue("activity_level"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 100 {
			h.respondError(w, r, apperr.Invalid("activity_level must be between 0 and 100"))
			return
		}
		level = &v
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, apperr.Invalid("file is required"))
		return
	}
	defer file.Close()

	shot, err := h.tracker.AddScreenshot(r.Context(), currentUser(r).ID, entryID, header.Filename, file, level)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, shot)
}

func (h *Handler) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day, err := dateParam(r, "date")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if day == nil {
		now := h.clock.Now()
		day = &now
	}
	report, err := h.reporter.DailyReport(r.Context(), currentUser(r).ID, *day)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleTeamTimeReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, 7)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report, err := h.reporter.TeamTimeReport(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// dateRange reads start_date and end_date as an inclusive day range,
// defaulting to the last defaultDays days.
func (h *Handler) dateRange(r *http.Request, defaultDays int) (time.Time, time.Time, error) {
	start, err := dateParam(r, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := dateParam(r, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return h.reporter.DateRange(start, end, defaultDays)
}
