package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// SSOServiceInterface defines the interface for the OAuth/OIDC login flow
type SSOServiceInterface interface {
	GenerateState() (string, error)
	AuthCodeURL(providerName, state string) (string, error)
	HandleCallback(ctx context.Context, providerName, code, userAgent, ip string) (*services.AuthResponse, error)
	DashboardURL() string
	ErrorURL() string
}

// SSOHandler handles the browser-facing OAuth/OIDC redirects
type SSOHandler struct {
	service  SSOServiceInterface
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
}

// NewSSOHandler creates a new SSOHandler
func NewSSOHandler(service SSOServiceInterface, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig) *SSOHandler {
	return &SSOHandler{
		service:  service,
		cookies:  cookies,
		ipConfig: ipConfig,
	}
}

// Start redirects the browser to the provider's consent screen
// @Summary Start SSO login
// @Param provider path string true "Provider name"
// @Success 302
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /auth/sso/{provider} [get]
func (h *SSOHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := h.service.GenerateState()
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	authURL, err := h.service.AuthCodeURL(provider, state)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Unknown SSO provider")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetSSOStateCookie(w, state, h.cookies)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the SSO login. Every failure redirects to the error
// page; the browser never sees a bare JSON error mid-flow.
// @Summary SSO callback
// @Param provider path string true "Provider name"
// @Param code query string true "Authorization code"
// @Param state query string true "Anti-forgery state"
// @Success 302
// @Router /auth/sso/{provider}/callback [get]
func (h *SSOHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.redirectError(w, r, errCode)
		return
	}

	state := r.URL.Query().Get("state")
	cookieState, err := auth.GetCookie(r, auth.SSOStateCookie)
	auth.ClearSSOStateCookie(w, h.cookies)
	if err != nil || state == "" || state != cookieState {
		h.redirectError(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectError(w, r, "missing_code")
		return
	}

	authResp, err := h.service.HandleCallback(r.Context(), provider, code,
		r.Header.Get("User-Agent"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			h.redirectError(w, r, "unknown_provider")
		case errors.Is(err, models.ErrUnauthorized):
			h.redirectError(w, r, "authentication_failed")
		default:
			h.redirectError(w, r, "internal_error")
		}
		return
	}

	auth.SetTokenCookies(w, authResp.AccessToken, authResp.RefreshToken, h.cookies)
	http.Redirect(w, r, h.service.DashboardURL(), http.StatusFound)
}

func (h *SSOHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.service.ErrorURL() + "?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}
