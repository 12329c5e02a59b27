package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theseyan/418-nits-hacks/internal/apperr"
)

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err    *apperr.Error
		code   string
		status int
	}{
		{apperr.BadRequest(""), "E_BAD_REQUEST", http.StatusBadRequest},
		{apperr.Unauthorized(""), "E_UNAUTHORIZED", http.StatusUnauthorized},
		{apperr.Forbidden(""), "E_FORBIDDEN", http.StatusForbidden},
		{apperr.NotFound(""), "E_RESOURCE_NOT_FOUND", http.StatusNotFound},
		{apperr.Conflict(""), "E_RESOURCE_EXISTS", http.StatusConflict},
		{apperr.Internal(errors.New("boom")), "E_INTERNAL_SERVER", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		require.Equal(t, tc.code, tc.err.Code())
		require.Equal(t, tc.status, tc.err.Status())
		require.NotEmpty(t, tc.err.Message)
	}
}

func TestFromNormalizesUntaggedErrors(t *testing.T) {
	raw := errors.New("pgx: connection refused")
	appErr := apperr.From(raw)
	require.Equal(t, apperr.KindInternal, appErr.Kind)
	require.Equal(t, "Internal Server Error.", appErr.Message)
	require.ErrorIs(t, appErr, raw)
}

func TestFromKeepsTaggedErrorsThroughWrapping(t *testing.T) {
	tagged := apperr.Forbidden("Too many logged-in devices")
	wrapped := fmt.Errorf("generate pair: %w", tagged)

	appErr := apperr.From(wrapped)
	require.Equal(t, apperr.KindForbidden, appErr.Kind)
	require.Equal(t, "Too many logged-in devices", appErr.Message)
	require.True(t, apperr.IsKind(wrapped, apperr.KindForbidden))
}

func TestCauseStaysPrivate(t *testing.T) {
	cause := errors.New("secret detail")
	appErr := apperr.Unauthorized("Invalid or expired access token").WithCause(cause)
	require.NotContains(t, appErr.Message, "secret")
	require.ErrorIs(t, appErr, cause)
}
