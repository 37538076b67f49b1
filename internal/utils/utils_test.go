package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?n=42&bad=abc", nil)

	v, err := QueryInt(r, "n", 7)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = QueryInt(r, "absent", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = QueryInt(r, "bad", 7)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
}

func TestQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?f=13.5&bad=x", nil)

	v, err := QueryFloat(r, "f", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 13.5, v, 1e-9)

	v, err = QueryFloat(r, "absent", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	_, err = QueryFloat(r, "bad", 1.0)
	require.Error(t, err)
}

func TestQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?a=true&b=1&c=false&d=oui", nil)
	assert.True(t, QueryBool(r, "a", false))
	assert.True(t, QueryBool(r, "b", false))
	assert.False(t, QueryBool(r, "c", true))
	assert.False(t, QueryBool(r, "d", true))
	assert.True(t, QueryBool(r, "absent", true))
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	var p payload
	require.NoError(t, DecodeJSON(r, &p))
	assert.Equal(t, "ok", p.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	err := DecodeJSON(r, &p)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
}

func TestUserHashSlot(t *testing.T) {
	ctx := WithUserHashSlot(context.Background())
	assert.Empty(t, UserHashFromContext(ctx))

	SetUserHash(ctx, "abcd")
	assert.Equal(t, "abcd", UserHashFromContext(ctx))

	// Sans réceptacle, pose et lecture sont des non-opérations
	SetUserHash(context.Background(), "x")
	assert.Empty(t, UserHashFromContext(context.Background()))
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProblem(t *testing.T) {
	t.Run("erreur de validation avec champs", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(WithRequestID(r.Context(), "req-42"))

		Problem(w, r, apperr.New(apperr.KindValidation, "bad limit").
			WithField("limit", "OUT_OF_RANGE", "must be >= 1"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

		var body ProblemDetails
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "VALIDATION_FAILED", body.Code)
		assert.Equal(t, "bad limit", body.Detail)
		assert.Equal(t, "req-42", body.RequestID)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "limit", body.Errors[0].Field)
	})

	t.Run("le detail interne ne fuite pas", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Problem(w, r, apperr.New(apperr.KindInternal, "sqlite: database locked at /var/db"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body ProblemDetails
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "internal server error", body.Detail)
		assert.NotContains(t, w.Body.String(), "/var/db")
	})

	t.Run("le detail de rendu ne fuite pas", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Problem(w, r, apperr.New(apperr.KindImageRender, "template /srv/tpl exploded"))

		var body ProblemDetails
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "image rendering failed", body.Detail)
	})

	t.Run("erreur non applicative", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Problem(w, r, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
