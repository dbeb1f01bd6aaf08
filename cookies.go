package authcore

import (
	"net/http"
	"time"
)

// Cookie names set on successful authentication.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieDeviceTrust  = "device_trust"
)

const refreshCookiePath = "/api/v1/auth/refresh"

// AuthCookies renders the cookie set for a completed authentication:
// access and refresh tokens always, the device trust cookie only when a
// trust was created. All cookies are HttpOnly, Secure, SameSite=Strict.
func AuthCookies(auth *Authentication, cfg Config) []*http.Cookie {
	cookies := []*http.Cookie{
		secureCookie(CookieAccessToken, auth.AccessToken, "/", int(cfg.Token.AccessTTL/time.Second)),
		secureCookie(CookieRefreshToken, auth.RefreshToken, refreshCookiePath, int(cfg.Token.RefreshTTL/time.Second)),
	}
	if auth.DeviceTrustToken != "" {
		cookies = append(cookies,
			secureCookie(CookieDeviceTrust, auth.DeviceTrustToken, "/", int(cfg.DeviceTrust.TTL/time.Second)))
	}
	return cookies
}

// ClearAuthCookies renders expired variants for logout. The device trust
// cookie is left alone unless clearDeviceTrust is set; logout does not
// forget the device.
func ClearAuthCookies(clearDeviceTrust bool) []*http.Cookie {
	cookies := []*http.Cookie{
		expiredCookie(CookieAccessToken, "/"),
		expiredCookie(CookieRefreshToken, refreshCookiePath),
	}
	if clearDeviceTrust {
		cookies = append(cookies, expiredCookie(CookieDeviceTrust, "/"))
	}
	return cookies
}

func secureCookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
