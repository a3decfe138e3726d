package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/config"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/database/dbtest"
	"github.com/teamclock/teamclock/internal/integration"
	"github.com/teamclock/teamclock/internal/presence"
	"github.com/teamclock/teamclock/internal/reporter"
	"github.com/teamclock/teamclock/internal/storage"
	"github.com/teamclock/teamclock/internal/tracker"
	"github.com/teamclock/teamclock/internal/web"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

type fakeProvider struct {
	kind      common.Kind
	verifyErr error
	performed []common.Action
}

func (f *fakeProvider) Kind() common.Kind { return f.kind }

func (f *fakeProvider) Verify(context.Context) (*common.Verification, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &common.Verification{Items: []common.Item{{ID: "b1", Name: "Board"}}}, nil
}

func (f *fakeProvider) Perform(_ context.Context, a common.Action) (*common.Result, error) {
	f.performed = append(f.performed, a)
	return &common.Result{ID: "42", URL: "https://example.com/42"}, nil
}

type fixture struct {
	srv      *httptest.Server
	repo     *database.Repository
	presence *presence.Manager
	fs       afero.Fs
	provider *fakeProvider
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	repo, _ := dbtest.New(t)
	cfg := config.Default()

	f := &fixture{repo: repo, fs: afero.NewMemMapFs(), provider: &fakeProvider{}}
	f.presence = presence.New(presence.Options{Logger: log})
	t.Cleanup(func() { _ = f.presence.Close() })

	shots := storage.New(f.fs, cfg.Storage.PublicPrefix)
	h := web.NewHandler(cfg, web.Deps{
		Repo:     repo,
		Auth:     auth.New(repo, auth.Options{Secret: "test-secret", Logger: log}),
		Tracker:  tracker.NewService(repo, tracker.Options{Notifier: f.presence, Screenshots: shots, Logger: log}),
		Reporter: reporter.New(repo, reporter.Options{Logger: log}),
		Presence: f.presence,
		Integrations: integration.NewService(repo, integration.Options{
			Logger: log,
			Factory: func(kind common.Kind, _ map[string]string) (common.Provider, error) {
				f.provider.kind = kind
				return f.provider, nil
			},
		}),
		Screenshots: shots,
		Registry:    prometheus.NewRegistry(),
		Logger:      log,
	})
	f.srv = httptest.NewServer(h.Routes())
	t.Cleanup(f.srv.Close)
	return f
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) message(t *testing.T) string {
	t.Helper()
	var m web.Response
	r.decode(t, &m)
	return m.Message
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) response {
	t.Helper()
	res, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return response{status: res.StatusCode, header: res.Header, body: data}
}

type account struct {
	ID      string
	Token   string
	Refresh string
}

func (f *fixture) register(t *testing.T, name, email, role string) account {
	t.Helper()
	res := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "hunter22",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var s auth.Session
	res.decode(t, &s)
	require.NotNil(t, s.User)
	return account{ID: s.User.ID, Token: s.AccessToken, Refresh: s.RefreshToken}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := setup(t)

	res := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	var body map[string]string
	res.decode(t, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, res.header.Get("X-Request-ID"))

	res = f.do(t, http.MethodGet, "/api/", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &body)
	assert.Equal(t, web.Version, body["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	f := setup(t)

	f.do(t, http.MethodGet, "/health", "", nil)
	res := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.body), "teamclock_api_requests_processed_total")
}
