package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, map[string]string{"result": "success"}))
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "success", response.Data["result"])
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteMessage(w, "Logged out"))
	assert.JSONEq(t, `{"message":"Logged out"}`, w.Body.String())
}

func TestWriteInvalidCredentials(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteInvalidCredentials(w))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	response := decodeError(t, w)
	assert.Equal(t, "invalid_credentials", response.Error)
	assert.Equal(t, "Invalid email or password", response.Message)
}

func TestWriteDefaultMessages(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter) error
		status  int
		code    string
		message string
	}{
		{"unauthorized", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"forbidden", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found", "Resource not found"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error", "Internal server error"},
		{"throttled", func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) }, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.status, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.code, response.Error)
			assert.Equal(t, tt.message, response.Message)
		})
	}
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteBadRequest(w, "Validation failed", map[string]interface{}{"email": "email is required"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	response := decodeError(t, w)
	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "email is required", response.Details["email"])
}

func TestWriteTooManyRequests(t *testing.T) {
	t.Run("retry_after sets header", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteTooManyRequests(w, "Too many login attempts", map[string]interface{}{"retry_after": 90}))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "90", w.Header().Get("Retry-After"))

		response := decodeError(t, w)
		assert.Equal(t, float64(90), response.Details["retry_after"])
	})

	t.Run("no retry_after leaves header unset", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteTooManyRequests(w, "", map[string]interface{}{"retry_after": 0}))
		assert.Empty(t, w.Header().Get("Retry-After"))
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not_found"},
		{http.StatusConflict, "conflict"},
		{http.StatusTooManyRequests, "rate_limit_exceeded"},
		{http.StatusServiceUnavailable, "service_unavailable"},
		{http.StatusTeapot, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "msg", nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	decode := func(raw, contentType string) (body, error) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(raw))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		var dst body
		err := DecodeJSON(httptest.NewRecorder(), req, &dst)
		return dst, err
	}

	t.Run("valid object", func(t *testing.T) {
		got, err := decode(`{"email":"a@b.gov"}`, "application/json; charset=utf-8")
		require.NoError(t, err)
		assert.Equal(t, "a@b.gov", got.Email)
	})

	t.Run("missing content type is accepted", func(t *testing.T) {
		_, err := decode(`{"email":"a@b.gov"}`, "")
		assert.NoError(t, err)
	})

	t.Run("rejects form content type", func(t *testing.T) {
		_, err := decode(`email=a`, "application/x-www-form-urlencoded")
		assert.Error(t, err)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := decode(`{"email":"a@b.gov","role":"admin"}`, "application/json")
		assert.Error(t, err)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		_, err := decode(``, "application/json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		_, err := decode(`{"email":"a"}{"email":"b"}`, "application/json")
		assert.Error(t, err)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		_, err := decode(`{"email":"`+strings.Repeat("a", MaxBodyBytes)+`"}`, "application/json")
		assert.Error(t, err)
	})
}
