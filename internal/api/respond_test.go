package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func responderBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestResponderErrorAppError(t *testing.T) {
	rsp := NewResponder(slog.Default(), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	rsp.Error(rec, req, Conflict("User with this email or username already exists", map[string]any{
		"email": "a@x.com", "username": "alice",
	}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := responderBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeConflict, body["errorCode"])
	assert.Equal(t, "User with this email or username already exists", body["message"])

	details := body["details"].(map[string]any)
	assert.Equal(t, "alice", details["username"])
}

func TestResponderErrorValidation(t *testing.T) {
	rsp := NewResponder(slog.Default(), false)

	payload := struct {
		Username string `json:"username" validate:"required,min=3,max=50"`
		Email    string `json:"email" validate:"required,email"`
	}{Username: "ab", Email: "not-an-email"}

	err := ValidateStruct(payload)
	require.Error(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	rsp.Error(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := responderBody(t, rec)
	assert.Equal(t, CodeValidation, body["errorCode"])
	assert.Equal(t, "Validation failed", body["message"])

	details := body["details"].([]any)
	require.Len(t, details, 2)
	first := details[0].(map[string]any)
	// Field names come from JSON tags, not Go identifiers
	assert.Equal(t, "username", first["field"])
	assert.Contains(t, first["message"], "at least 3")
}

func TestResponderErrorDuplicateKey(t *testing.T) {
	rsp := NewResponder(slog.Default(), false)

	err := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{
			Code:    11000,
			Message: `E11000 duplicate key error collection: usersvc.users index: email_1 dup key: { email: "a@x.com" }`,
		}},
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	rsp.Error(rec, req, err)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := responderBody(t, rec)
	assert.Equal(t, CodeDuplicateKey, body["errorCode"])
	assert.Equal(t, "Duplicate key error", body["message"])

	details := body["details"].(map[string]any)
	fields := details["duplicateFields"].([]any)
	assert.Equal(t, []any{"email"}, fields)
}

func TestResponderErrorUnclassified(t *testing.T) {
	t.Run("Development mode exposes the cause", func(t *testing.T) {
		rsp := NewResponder(slog.Default(), false)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		rsp.Error(rec, req, errors.New("pool exhausted"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := responderBody(t, rec)
		assert.Equal(t, CodeInternalServer, body["errorCode"])
		assert.Equal(t, "An unexpected error occurred", body["message"])

		details := body["details"].(map[string]any)
		assert.Equal(t, "pool exhausted", details["message"])
	})

	t.Run("Production mode withholds internals", func(t *testing.T) {
		rsp := NewResponder(slog.Default(), true)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		rsp.Error(rec, req, errors.New("pool exhausted"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := responderBody(t, rec)
		details := body["details"].(map[string]any)
		assert.Empty(t, details)
	})
}

func TestNotFoundHandler(t *testing.T) {
	rsp := NewResponder(slog.Default(), false)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	rsp.NotFoundHandler()(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := responderBody(t, rec)
	assert.Equal(t, CodeNotFound, body["errorCode"])

	details := body["details"].(map[string]any)
	assert.Equal(t, "/nowhere", details["path"])
	assert.Equal(t, http.MethodGet, details["method"])
}

func TestDuplicateKeyFieldExtraction(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected []string
	}{
		{
			name:     "username index",
			message:  "E11000 duplicate key error collection: usersvc.users index: username_1 dup key: { username: \"alice\" }",
			expected: []string{"username"},
		},
		{
			name:     "no index marker",
			message:  "something else entirely",
			expected: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: tc.message}}}
			assert.Equal(t, tc.expected, duplicateKeyFields(err))
		})
	}
}
