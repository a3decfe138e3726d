package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/cli"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/models"
)

type env struct {
	dir    string
	config string
	dbPath string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{dir: dir, config: filepath.Join(dir, "teamclock.yaml"), dbPath: filepath.Join(dir, "teamclock.db")}
	yaml := fmt.Sprintf("database:\n  path: %s\ndaemon:\n  pid_file: %s\n", e.dbPath, filepath.Join(dir, "teamclock.pid"))
	require.NoError(t, os.WriteFile(e.config, []byte(yaml), 0o600))
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.New()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()
	out, err := newEnv(t).run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "teamclock version")
}

func TestMigrateAndStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	out, err := e.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
	_, err = os.Stat(e.dbPath)
	require.NoError(t, err)

	out, err = e.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not running")

	out, err = e.run(t, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is not running")
}

func TestReport(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	db, err := database.Connect(e.dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	repo := database.NewRepository(db)

	user := &models.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(ctx, user))
	project := &models.Project{Name: "Website", Client: "Acme", CreatedBy: user.ID}
	require.NoError(t, repo.CreateProject(ctx, project))
	end := time.Now().UTC().Add(-time.Minute)
	start := end.Add(-90 * time.Minute)
	duration := int64(90 * 60)
	require.NoError(t, repo.CreateClosedEntry(ctx, &models.TimeEntry{
		UserID:    user.ID,
		ProjectID: project.ID,
		StartTime: start,
		EndTime:   &end,
		Duration:  &duration,
	}))
	require.NoError(t, db.Close())

	out, err := e.run(t, "report", "week", "--email", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "User: Alice <alice@example.com>")
	assert.Contains(t, out, "Productivity Report - week")
	assert.Contains(t, out, "1h 30m")

	out, err = e.run(t, "report", "day", "--email", "alice@example.com", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"productivity_score"`)

	_, err = e.run(t, "report", "--email", "nobody@example.com")
	assert.Error(t, err)

	_, err = e.run(t, "report")
	assert.Error(t, err)
}
