package web_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

func TestIntegrationLifecycle(t *testing.T) {
	t.Parallel()
	f := setup(t)
	bob := f.register(t, "Bob", "bob@example.com", "")

	res := f.do(t, http.MethodPost, "/api/integrations/slack/notify", bob.Token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Slack integration not found", res.message(t))

	res = f.do(t, http.MethodPost, "/api/integrations/slack/connect", bob.Token, map[string]string{"webhook_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = f.do(t, http.MethodPost, "/api/integrations/slack/connect", bob.Token, map[string]string{
		"webhook_url": "https://hooks.slack.test/services/T/B/secret",
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var connected struct {
		Message     string             `json:"message"`
		Integration models.Integration `json:"integration"`
	}
	res.decode(t, &connected)
	assert.Equal(t, "Slack integration connected successfully", connected.Message)
	assert.NotContains(t, connected.Integration.Config["webhook_url"], "secret")

	res = f.do(t, http.MethodPost, "/api/integrations/slack/notify", bob.Token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = f.do(t, http.MethodPost, "/api/integrations/slack/notify", bob.Token, map[string]string{"message": "Deploy done"})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	require.Len(t, f.provider.performed, 1)
	assert.Equal(t, common.Notify{Message: "Deploy done"}, f.provider.performed[0])

	var listed struct {
		Integrations []models.Integration `json:"integrations"`
	}
	f.do(t, http.MethodGet, "/api/integrations/", bob.Token, nil).decode(t, &listed)
	require.Len(t, listed.Integrations, 1)

	res = f.do(t, http.MethodDelete, "/api/integrations/"+listed.Integrations[0].ID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, res.status)
	res = f.do(t, http.MethodPost, "/api/integrations/slack/notify", bob.Token, map[string]string{"message": "again"})
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestIntegrationVerifyFailures(t *testing.T) {
	t.Parallel()
	f := setup(t)
	bob := f.register(t, "Bob", "bob@example.com", "")

	f.provider.verifyErr = apperr.Invalid("Invalid GitHub token")
	res := f.do(t, http.MethodPost, "/api/integrations/github/connect", bob.Token, map[string]string{"token": "ghp_x"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid GitHub token", res.message(t))

	f.provider.verifyErr = apperr.Upstream(assert.AnError, "Trello is unavailable")
	res = f.do(t, http.MethodPost, "/api/integrations/trello/connect", bob.Token, map[string]string{"api_key": "k", "token": "t"})
	assert.Equal(t, http.StatusBadGateway, res.status)
}
