package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/database/dbtest"
	"github.com/teamclock/teamclock/internal/models"
)

func seedUser(t *testing.T, repo *database.Repository, email string) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func seedProject(t *testing.T, repo *database.Repository, owner string) *models.Project {
	t.Helper()
	p := &models.Project{Name: "Website", Client: "Acme", CreatedBy: owner}
	require.NoError(t, repo.CreateProject(context.Background(), p))
	return p
}

func ptr[T any](v T) *T { return &v }

func TestCreateUserDefaults(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()

	u := seedUser(t, repo, "Alice@Example.com")
	got, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Equal(t, models.WorkStatusOffline, got.Status)
	assert.Equal(t, "UTC", got.Timezone)
	assert.Equal(t, models.DefaultUserSettings(), got.Settings)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)

	seedUser(t, repo, "bob@example.com")
	err := repo.CreateUser(context.Background(), &models.User{Name: "b", Email: "BOB@example.com", PasswordHash: "x"})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)

	_, err := repo.GetUser(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOpenEntryIndex(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "carol@example.com")
	p := seedProject(t, repo, u.ID)

	now := time.Now().UTC()
	first := &models.TimeEntry{UserID: u.ID, ProjectID: p.ID, StartTime: now}
	require.NoError(t, repo.CreateOpenEntry(ctx, first))

	second := &models.TimeEntry{UserID: u.ID, ProjectID: p.ID, StartTime: now}
	err := repo.CreateOpenEntry(ctx, second)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	// Closed entries never collide with the open one.
	closed := &models.TimeEntry{
		UserID: u.ID, ProjectID: p.ID, StartTime: now.Add(-2 * time.Hour),
		EndTime: ptr(now.Add(-time.Hour)), Duration: ptr(int64(3600)), IsManual: true,
	}
	require.NoError(t, repo.CreateClosedEntry(ctx, closed))

	open, err := repo.GetOpenEntry(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)
}

func TestCloseEntryOnlyOnce(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "dave@example.com")
	p := seedProject(t, repo, u.ID)

	start := time.Now().UTC().Add(-time.Hour)
	e := &models.TimeEntry{UserID: u.ID, ProjectID: p.ID, StartTime: start}
	require.NoError(t, repo.CreateOpenEntry(ctx, e))

	require.NoError(t, repo.CloseEntry(ctx, e.ID, start.Add(time.Hour), 3600))
	err := repo.CloseEntry(ctx, e.ID, start.Add(2*time.Hour), 7200)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := repo.GetEntryForUser(ctx, e.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Duration)
	assert.EqualValues(t, 3600, *got.Duration)

	open, err := repo.GetOpenEntry(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestGetEntryForOtherUser(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "owner@example.com")
	other := seedUser(t, repo, "other@example.com")
	p := seedProject(t, repo, owner.ID)

	e := &models.TimeEntry{UserID: owner.ID, ProjectID: p.ID, StartTime: time.Now().UTC()}
	require.NoError(t, repo.CreateOpenEntry(ctx, e))

	_, err := repo.GetEntryForUser(ctx, e.ID, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAccrueProjectHoursInTx(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "erin@example.com")
	p := seedProject(t, repo, u.ID)

	for i := 0; i < 4; i++ {
		err := repo.WithTx(ctx, func(tx *database.Repository) error {
			return tx.AccrueProjectHours(ctx, p.ID, 0.25)
		})
		require.NoError(t, err)
	}

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.HoursTracked, 1e-9)

	err = repo.AccrueProjectHours(ctx, "missing", 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "frank@example.com")
	p := seedProject(t, repo, u.ID)

	err := repo.WithTx(ctx, func(tx *database.Repository) error {
		require.NoError(t, tx.AccrueProjectHours(ctx, p.ID, 5))
		return apperr.Conflict("boom")
	})
	require.Error(t, err)

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.HoursTracked)
}

func TestListEntriesFiltersAndOrder(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "gina@example.com")
	p1 := seedProject(t, repo, u.ID)
	p2 := seedProject(t, repo, u.ID)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		pid := p1.ID
		if i%2 == 1 {
			pid = p2.ID
		}
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, repo.CreateClosedEntry(ctx, &models.TimeEntry{
			UserID: u.ID, ProjectID: pid, StartTime: start,
			EndTime: ptr(start.Add(time.Hour)), Duration: ptr(int64(3600)),
		}))
	}

	all, err := repo.ListEntries(ctx, models.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].StartTime.After(all[4].StartTime), "newest first")

	byProject, err := repo.ListEntries(ctx, models.EntryFilter{UserID: u.ID, ProjectID: p2.ID})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	from, to := base.Add(24*time.Hour), base.Add(3*24*time.Hour)
	ranged, err := repo.ListEntries(ctx, models.EntryFilter{UserID: u.ID, From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	paged, err := repo.ListEntries(ctx, models.EntryFilter{UserID: u.ID, Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, all[1].ID, paged[0].ID)
}

func TestTotalsBetween(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	a := seedUser(t, repo, "a@example.com")
	b := seedUser(t, repo, "b@example.com")
	p := seedProject(t, repo, a.ID)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	add := func(user string, hours int64, activity float64) {
		require.NoError(t, repo.CreateClosedEntry(ctx, &models.TimeEntry{
			UserID: user, ProjectID: p.ID, StartTime: base,
			EndTime: ptr(base.Add(time.Duration(hours) * time.Hour)), Duration: ptr(hours * 3600),
			ActivityLevel: ptr(activity),
		}))
		base = base.Add(time.Duration(hours) * time.Hour)
	}
	add(a.ID, 1, 50)
	add(a.ID, 2, 70)
	add(b.ID, 1, 90)

	// Open entries are excluded.
	require.NoError(t, repo.CreateOpenEntry(ctx, &models.TimeEntry{UserID: b.ID, ProjectID: p.ID, StartTime: base}))

	from, to := base.Add(-24*time.Hour), base.Add(24*time.Hour)
	users, err := repo.UserTotalsBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, a.ID, users[0].ID)
	assert.EqualValues(t, 3*3600, users[0].Seconds)
	assert.EqualValues(t, 2, users[0].Entries)
	assert.InDelta(t, 60, users[0].AvgActivity, 1e-9)

	projects, err := repo.ProjectTotalsBetween(ctx, from, to, b.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.EqualValues(t, 3600, projects[0].Seconds)
}

func TestListProjectsMembership(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "owner@example.com")
	member := seedUser(t, repo, "member@example.com")
	outsider := seedUser(t, repo, "outsider@example.com")

	shared := seedProject(t, repo, owner.ID)
	_, err := repo.UpdateProject(ctx, shared.ID, models.ProjectUpdate{TeamMembers: &[]string{member.ID}})
	require.NoError(t, err)
	seedProject(t, repo, owner.ID)

	got, err := repo.ListProjects(ctx, models.ProjectFilter{MemberID: member.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, shared.ID, got[0].ID)

	got, err = repo.ListProjects(ctx, models.ProjectFilter{MemberID: outsider.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.ListProjects(ctx, models.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDeleteProjectCascadesTasks(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "hank@example.com")
	p := seedProject(t, repo, u.ID)

	task := &models.Task{ProjectID: p.ID, Title: "Landing page", CreatedBy: u.ID}
	require.NoError(t, repo.CreateTask(ctx, task))

	require.NoError(t, repo.DeleteProject(ctx, p.ID))

	_, err := repo.GetTask(ctx, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	err = repo.DeleteProject(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestIntegrationLifecycle(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "ivy@example.com")
	other := seedUser(t, repo, "jack@example.com")

	in := &models.Integration{UserID: u.ID, Type: models.IntegrationSlack, Config: map[string]string{"webhook_url": "https://hooks"}}
	require.NoError(t, repo.UpsertIntegration(ctx, in))

	err := repo.DeactivateIntegration(ctx, in.ID, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, repo.DeactivateIntegration(ctx, in.ID, u.ID))
	list, err := repo.ListIntegrations(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	again := &models.Integration{UserID: u.ID, Type: models.IntegrationSlack, Config: map[string]string{"webhook_url": "https://new"}}
	require.NoError(t, repo.UpsertIntegration(ctx, again))
	assert.Equal(t, in.ID, again.ID, "reconnect reuses the record")

	got, err := repo.GetActiveIntegration(ctx, u.ID, models.IntegrationSlack)
	require.NoError(t, err)
	assert.Equal(t, "https://new", got.Config["webhook_url"])
}

func TestTeamCounters(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	a := seedUser(t, repo, "a@example.com")
	seedUser(t, repo, "b@example.com")
	require.NoError(t, repo.SetPresence(ctx, a.ID, true, time.Now()))
	require.NoError(t, repo.SetWorkStatus(ctx, a.ID, models.WorkStatusActive, nil))

	c, err := repo.TeamCounters(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.Total)
	assert.EqualValues(t, 2, c.ByRole["user"])
	assert.EqualValues(t, 1, c.ByStatus["active"])
	assert.EqualValues(t, 1, c.Online)

	require.NoError(t, repo.ResetPresence(ctx))
	c, err = repo.TeamCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Online)
}

func TestMarkIdle(t *testing.T) {
	t.Parallel()
	repo, _ := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, repo, "idle@example.com")
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	changed, err := repo.MarkIdle(ctx, u.ID, now)
	require.NoError(t, err)
	assert.False(t, changed, "offline users stay offline")

	// Activity newer than the cutoff wins over the sweep.
	recent := now.Add(time.Minute)
	require.NoError(t, repo.SetWorkStatus(ctx, u.ID, models.WorkStatusActive, &recent))
	changed, err = repo.MarkIdle(ctx, u.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)
	got, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusActive, got.Status)

	changed, err = repo.MarkIdle(ctx, u.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	got, err = repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusIdle, got.Status)
}
