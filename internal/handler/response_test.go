package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibelist/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", apperror.ValidationFailed("track_count", "out of range"), http.StatusBadRequest, "validation_error"},
		{"unauthorized", apperror.Unauthorized("no session"), http.StatusUnauthorized, "unauthorized"},
		{"not found", apperror.NotFound("playlist", "p1"), http.StatusNotFound, "not_found"},
		{"insufficient credits", apperror.InsufficientCredits(2), http.StatusForbidden, "insufficient_credits"},
		{"rate limited", apperror.RateLimited("slow down"), http.StatusTooManyRequests, "rate_limited"},
		{"generation", apperror.Generation("model returned garbage"), http.StatusBadGateway, "generation_failed"},
		{"upstream", apperror.Upstream(502, "platform down"), http.StatusBadGateway, "upstream_error"},
		{"unknown error", errors.New("sql: connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantError, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestWriteError_WrappedErrorsStillMap(t *testing.T) {
	err := fmt.Errorf("generating playlist: %w", apperror.InsufficientCredits(1))

	rec := httptest.NewRecorder()
	writeError(rec, err)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteError_AccessRevokedCarriesProviderStatus(t *testing.T) {
	for _, status := range []int{401, 403} {
		rec := httptest.NewRecorder()
		writeError(rec, apperror.AccessRevoked(status))

		assert.Equal(t, status, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "spotify_access_revoked", body.ErrorType)
	}
}

func TestWriteError_ValidationIncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.ValidationFailed("input_text", "too short"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "input_text", body.Field)
}

func TestWriteError_UnknownErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.NotContains(t, rec.Body.String(), "10.0.0.5",
		"internal details must not leak to clients")
}
