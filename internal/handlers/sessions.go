package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// SessionServiceInterface defines the interface for session management
type SessionServiceInterface interface {
	List(ctx context.Context, userID string) ([]*services.SessionResponse, error)
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// SessionHandler handles session listing and revocation HTTP requests
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// List returns the caller's sessions, newest first
// @Summary List own sessions
// @Security CookieAuth
// @Produce json
// @Success 200 {array} services.SessionResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me/sessions [get]
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	sessions, err := h.service.List(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(sessions)
}

// Revoke marks one of the caller's sessions inactive. Revoking an unknown
// session still succeeds.
// @Summary Revoke a session
// @Security CookieAuth
// @Param id path string true "Session ID"
// @Produce json
// @Success 200 {object} map[string]string
// @Router /users/me/sessions/{id} [delete]
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Missing session ID")
		return
	}

	if err := h.service.Revoke(r.Context(), claims.UserID, sessionID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Session revoked",
	})
}

// RevokeAll marks every one of the caller's sessions inactive
// @Summary Revoke all sessions
// @Security CookieAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /users/me/sessions [delete]
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.RevokeAll(r.Context(), claims.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "All sessions revoked",
	})
}
