package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pslattery/gatehouse/internal/services"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestSessionHandler_List_Success(t *testing.T) {
	service := &MockSessionService{
		ListFunc: func(ctx context.Context, userID string) ([]*services.SessionResponse, error) {
			return []*services.SessionResponse{
				{ID: "session1", Device: "Desktop", OS: "Windows 10", Browser: "Chrome 120", Location: "Dublin, Ireland", IsActive: true},
			}, nil
		},
	}
	handler := NewSessionHandler(service)

	w := httptest.NewRecorder()
	handler.List(w, authedRequest(http.MethodGet, "/users/me/sessions", nil, "user123"))

	assert.Equal(t, http.StatusOK, w.Code)

	var sessions []*services.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "session1", sessions[0].ID)
}

func TestSessionHandler_List_RequiresAuth(t *testing.T) {
	handler := NewSessionHandler(&MockSessionService{})

	r := httptest.NewRequest(http.MethodGet, "/users/me/sessions", nil)
	w := httptest.NewRecorder()
	handler.List(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionHandler_Revoke_ScopedToCaller(t *testing.T) {
	var gotUser, gotSession string
	service := &MockSessionService{
		RevokeFunc: func(ctx context.Context, userID, sessionID string) error {
			gotUser = userID
			gotSession = sessionID
			return nil
		},
	}
	handler := NewSessionHandler(service)

	r := authedRequest(http.MethodDelete, "/users/me/sessions/session456", nil, "user123")
	r = withURLParam(r, "id", "session456")
	w := httptest.NewRecorder()
	handler.Revoke(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user123", gotUser)
	assert.Equal(t, "session456", gotSession)
}

func TestSessionHandler_Revoke_UnknownSessionStillSucceeds(t *testing.T) {
	// The service layer swallows not-found, so the handler never sees it
	handler := NewSessionHandler(&MockSessionService{})

	r := authedRequest(http.MethodDelete, "/users/me/sessions/ghost", nil, "user123")
	r = withURLParam(r, "id", "ghost")
	w := httptest.NewRecorder()
	handler.Revoke(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandler_RevokeAll_Success(t *testing.T) {
	var gotUser string
	service := &MockSessionService{
		RevokeAllFunc: func(ctx context.Context, userID string) error {
			gotUser = userID
			return nil
		},
	}
	handler := NewSessionHandler(service)

	w := httptest.NewRecorder()
	handler.RevokeAll(w, authedRequest(http.MethodDelete, "/users/me/sessions", nil, "user123"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user123", gotUser)
}
