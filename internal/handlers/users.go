package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// UserServiceInterface defines the interface for profile operations
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*services.UserResponse, error)
	UpdateProfile(ctx context.Context, userID, name, username, avatarURL string) (*services.UserResponse, error)
	List(ctx context.Context, limit, offset int) (*services.UserListResponse, error)
}

// AccountSecurityInterface covers the credential-confirmation operations:
// deleting an account and changing a password, both gated on the current
// password.
type AccountSecurityInterface interface {
	DeleteAccount(ctx context.Context, userID, password, reason string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// UserHandler handles profile and user listing HTTP requests
type UserHandler struct {
	service  UserServiceInterface
	accounts AccountSecurityInterface
	cookies  auth.CookieConfig
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface, accounts AccountSecurityInterface, cookies auth.CookieConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		accounts: accounts,
		cookies:  cookies,
	}
}

// UpdateProfileRequest represents the request body for a profile update
type UpdateProfileRequest struct {
	Name      string `json:"name" validate:"omitempty,max=100"`
	Username  string `json:"username" validate:"omitempty,min=3,max=32"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

// DeleteAccountRequest represents the request body for account deletion.
// Both fields are mandatory: the password confirms the caller, the reason
// goes into the deletion audit record.
type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// Me returns the caller's own profile
// @Summary Get own profile
// @Security CookieAuth
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.GetProfile(r.Context(), claims.UserID)
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
	json.NewEncoder(w).Encode(user)
}

// UpdateMe updates the caller's profile fields
// @Summary Update own profile
// @Security CookieAuth
// @Accept json
// @Param request body UpdateProfileRequest true "Profile update"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /users/me [patch]
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), claims.UserID,
		strings.TrimSpace(req.Name), strings.TrimSpace(req.Username), req.AvatarURL)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username is already taken")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}

// DeleteMe removes the caller's account after password confirmation
// @Summary Delete own account
// @Security CookieAuth
// @Accept json
// @Param request body DeleteAccountRequest true "Deletion confirmation"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me [delete]
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), claims.UserID, req.Password, req.Reason); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Password confirmation failed")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.ClearTokenCookies(w, h.cookies)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Account deleted",
	})
}

// ChangePassword rewrites the caller's password after verifying the
// current one
// @Summary Change own password
// @Security CookieAuth
// @Accept json
// @Param request body ChangePasswordRequest true "Password change"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/me/password [patch]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "New password does not meet requirements")
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
		"message": "Password updated",
	})
}

// List returns one page of user summaries
// @Summary List users
// @Security CookieAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Produce json
// @Success 200 {object} services.UserListResponse
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(users)
}
