package apperr_test

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/apperr"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{name: "Nil", err: nil, want: ""},
		{name: "Plain", err: errors.New("boom"), want: apperr.KindUnexpected},
		{name: "NotFound", err: apperr.NotFound("project %q not found", "p1"), want: apperr.KindNotFound},
		{name: "WrappedConflict", err: errors.Wrap(apperr.Conflict("open timer"), "start"), want: apperr.KindConflict},
		{name: "Upstream", err: apperr.Upstream(errors.New("503"), "slack"), want: apperr.KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

func TestMessageHidesUnexpected(t *testing.T) {
	t.Parallel()

	require.Equal(t, "An unexpected error occurred.", apperr.Message(errors.New("pq: connection refused")))
	require.Equal(t, "Time entry not found", apperr.Message(errors.WithStack(apperr.NotFound("Time entry not found"))))
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusUnauthorized, apperr.HTTPStatus(apperr.KindUnauthenticated))
	assert.Equal(t, http.StatusForbidden, apperr.HTTPStatus(apperr.KindForbidden))
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(apperr.KindNotFound))
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(apperr.KindConflict))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(apperr.KindInvalidRange))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(apperr.KindUpstream))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.KindUnexpected))
}
