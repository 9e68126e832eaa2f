package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// TwoFactorServiceInterface defines the interface for authenticator-app enrollment
type TwoFactorServiceInterface interface {
	Enable(ctx context.Context, userID string) (*services.TwoFASetupResponse, error)
	Confirm(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, code string) error
}

// TwoFactorHandler handles authenticator enrollment HTTP requests
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

// ConfirmTwoFARequest represents the request body for activating the factor
type ConfirmTwoFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// DisableTwoFARequest represents the request body for turning the factor off
type DisableTwoFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Enable provisions a TOTP secret and QR code for the caller
// @Summary Enable two-factor authentication
// @Security CookieAuth
// @Produce json
// @Success 200 {object} services.TwoFASetupResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me/2fa [post]
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	setup, err := h.service.Enable(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(setup)
}

// Confirm activates the factor after checking a code from the newly
// provisioned secret
// @Summary Confirm two-factor enrollment
// @Security CookieAuth
// @Accept json
// @Param request body ConfirmTwoFARequest true "Authenticator code"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me/2fa/confirm [post]
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ConfirmTwoFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Confirm(r.Context(), claims.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTwoFACode):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_2fa_code", "Invalid two-factor code")
		case errors.Is(err, models.ErrTwoFANotEnrolled):
			pkghttp.WriteBadRequest(w, "No pending two-factor enrollment")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Two-factor authentication enabled",
	})
}

// Disable turns the factor off after validating a current code
// @Summary Disable two-factor authentication
// @Security CookieAuth
// @Accept json
// @Param request body DisableTwoFARequest true "Current authenticator code"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me/2fa [delete]
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req DisableTwoFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTwoFACode):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_2fa_code", "Invalid two-factor code")
		case errors.Is(err, models.ErrTwoFANotEnrolled):
			pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Two-factor authentication disabled",
	})
}
