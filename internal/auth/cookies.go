package auth

import (
	"net/http"
	"time"
)

// Cookie names shared by the password, magic-link and SSO flows.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	SSOStateCookie     = "sso_state"
)

// Cookie lifetimes in seconds, matching the token expiries.
const (
	AccessTokenMaxAge  = 3600
	RefreshTokenMaxAge = 604800
	SSOStateMaxAge     = 3600
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
}

// SetTokenCookies sets the access and refresh tokens in httpOnly cookies.
func SetTokenCookies(w http.ResponseWriter, accessToken, refreshToken string, config CookieConfig) {
	setCookie(w, AccessTokenCookie, accessToken, AccessTokenMaxAge, config)
	setCookie(w, RefreshTokenCookie, refreshToken, RefreshTokenMaxAge, config)
}

// SetAccessTokenCookie replaces only the access token cookie (refresh path
// without rotation).
func SetAccessTokenCookie(w http.ResponseWriter, accessToken string, config CookieConfig) {
	setCookie(w, AccessTokenCookie, accessToken, AccessTokenMaxAge, config)
}

// SetSSOStateCookie stores the anti-forgery state nonce for the OAuth flow.
func SetSSOStateCookie(w http.ResponseWriter, state string, config CookieConfig) {
	setCookie(w, SSOStateCookie, state, SSOStateMaxAge, config)
}

// ClearTokenCookies clears both token cookies (empty value, negative MaxAge).
func ClearTokenCookies(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, AccessTokenCookie, config)
	clearCookie(w, RefreshTokenCookie, config)
}

// ClearSSOStateCookie clears the transient state cookie once the callback
// has consumed it.
func ClearSSOStateCookie(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, SSOStateCookie, config)
}

// GetCookie retrieves a named cookie value from the request.
func GetCookie(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		MaxAge:   maxAge,
		HttpOnly: true, // prevents JavaScript access (XSS protection)
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
