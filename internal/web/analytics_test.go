package web_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/models"
)

func TestAnalyticsEndpoints(t *testing.T) {
	t.Parallel()
	f := setup(t)
	manager := f.register(t, "Mia", "mia@example.com", "manager")
	bob := f.register(t, "Bob", "bob@example.com", "")
	p := f.project(t, manager.Token, bob.ID)

	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	res := f.do(t, http.MethodPost, "/api/time-tracking/manual", bob.Token, map[string]any{
		"project_id":     p.ID,
		"start_time":     start,
		"end_time":       start.Add(3 * time.Hour),
		"activity_level": 60,
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	res = f.do(t, http.MethodGet, "/api/analytics/dashboard", bob.Token, nil)
	require.Equal(t, http.StatusOK, res.status)
	var dash models.Dashboard
	res.decode(t, &dash)
	assert.NotNil(t, dash.DailyActivity)

	res = f.do(t, http.MethodGet, "/api/analytics/productivity?period=year", bob.Token, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = f.do(t, http.MethodGet, "/api/analytics/productivity", bob.Token, nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = f.do(t, http.MethodGet, "/api/analytics/team", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	res = f.do(t, http.MethodGet, "/api/analytics/team", manager.Token, nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = f.do(t, http.MethodGet, "/api/analytics/reports/custom?start_date=2024-05-01", manager.Token, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = f.do(t, http.MethodGet, "/api/analytics/reports/custom?start_date=2024-05-01&end_date=2024-05-31&user_ids="+bob.ID, manager.Token, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var report models.CustomReport
	res.decode(t, &report)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, bob.ID, report.Rows[0].UserID)

	res = f.do(t, http.MethodGet, "/api/analytics/reports/custom?start_date=2024-05-31&end_date=2024-05-01", manager.Token, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
}
