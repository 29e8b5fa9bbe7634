package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail bool
	}{
		{fmt.Errorf("approve: %w", shared.ErrNotFound), http.StatusNotFound, true},
		{fmt.Errorf("reject: %w", shared.ErrInvalidTransition), http.StatusConflict, true},
		{fmt.Errorf("%w: from after to", ErrValidation), http.StatusBadRequest, true},
		{shared.ErrCSRFTokenMismatch, http.StatusForbidden, true},
		{errors.New("db password leaked"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.status, problem.Status)
		if tc.detail {
			require.Equal(t, tc.err.Error(), problem.Detail)
		} else {
			require.Empty(t, problem.Detail)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Reason string `json:"reason"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"duplicate"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	require.Equal(t, "duplicate", dst.Reason)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"a"} {"reason":"b"}`))
	require.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.Error(t, DecodeJSON(req, &dst))
}

func TestJSONDisablesCaching(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]int{"n": 1})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"n":1}`, rr.Body.String())
}
