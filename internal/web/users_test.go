package web_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/internal/web"
)

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	f := setup(t)
	alice := f.register(t, "Alice", "Alice@Example.com", "")

	res := f.do(t, http.MethodGet, "/api/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, res.status)
	var me models.User
	res.decode(t, &me)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, models.RoleUser, me.Role)

	t.Run("DuplicateEmail", func(t *testing.T) {
		res := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"name": "Other", "email": "alice@example.com", "password": "hunter22",
		})
		assert.Equal(t, http.StatusConflict, res.status)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		res := f.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
			Email: "alice@example.com", Password: "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "Incorrect email or password", res.message(t))
	})

	t.Run("Login", func(t *testing.T) {
		res := f.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
			Email: "alice@example.com", Password: "hunter22",
		})
		require.Equal(t, http.StatusOK, res.status)
		var s auth.Session
		res.decode(t, &s)
		assert.NotEmpty(t, s.AccessToken)
		assert.Equal(t, models.WorkStatusActive, s.User.Status)
	})

	t.Run("Refresh", func(t *testing.T) {
		res := f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": alice.Refresh})
		require.Equal(t, http.StatusOK, res.status)
		var s auth.Session
		res.decode(t, &s)
		assert.NotEmpty(t, s.AccessToken)

		// An access token is not a refresh token.
		res = f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": alice.Token})
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})
}

func TestAuthenticationRequired(t *testing.T) {
	t.Parallel()
	f := setup(t)

	for _, token := range []string{"", "garbage"} {
		res := f.do(t, http.MethodGet, "/api/users/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "Bearer", res.header.Get("WWW-Authenticate"))
		assert.NotEmpty(t, res.message(t))
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()
	f := setup(t)

	res := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Bad", "email": "not-an-email", "password": "123",
	})
	require.Equal(t, http.StatusBadRequest, res.status)
	var body web.Response
	res.decode(t, &body)
	fields := map[string]bool{}
	for _, e := range body.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
}

func TestUserRoleGates(t *testing.T) {
	t.Parallel()
	f := setup(t)
	admin := f.register(t, "Ada", "ada@example.com", "admin")
	bob := f.register(t, "Bob", "bob@example.com", "")
	carol := f.register(t, "Carol", "carol@example.com", "")

	res := f.do(t, http.MethodGet, "/api/users/", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = f.do(t, http.MethodGet, "/api/users/"+carol.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = f.do(t, http.MethodGet, "/api/users/"+bob.ID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = f.do(t, http.MethodGet, "/api/users/", admin.Token, nil)
	require.Equal(t, http.StatusOK, res.status)
	var users []models.User
	res.decode(t, &users)
	assert.Len(t, users, 3)

	t.Run("SelfUpdateKeepsRole", func(t *testing.T) {
		res := f.do(t, http.MethodPut, "/api/users/me", bob.Token, map[string]string{"name": "Robert", "role": "admin"})
		require.Equal(t, http.StatusOK, res.status)
		var u models.User
		res.decode(t, &u)
		assert.Equal(t, "Robert", u.Name)
		assert.Equal(t, models.RoleUser, u.Role)
	})

	t.Run("Delete", func(t *testing.T) {
		res := f.do(t, http.MethodDelete, "/api/users/"+admin.ID, admin.Token, nil)
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Cannot delete yourself", res.message(t))

		res = f.do(t, http.MethodDelete, "/api/users/"+carol.ID, admin.Token, nil)
		assert.Equal(t, http.StatusOK, res.status)

		res = f.do(t, http.MethodDelete, "/api/users/"+carol.ID, admin.Token, nil)
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("TeamStats", func(t *testing.T) {
		res := f.do(t, http.MethodGet, "/api/users/team/stats", bob.Token, nil)
		require.Equal(t, http.StatusOK, res.status)
		var stats models.TeamCounters
		res.decode(t, &stats)
		assert.EqualValues(t, 2, stats.Total)
		assert.EqualValues(t, 0, stats.Online)
	})
}
