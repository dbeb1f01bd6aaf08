package authcore

import (
	"net/http"
	"testing"
)

func TestAuthCookies(t *testing.T) {
	cfg := DefaultConfig()
	auth := &Authentication{
		AccessToken:      "access-jwt",
		RefreshToken:     "refresh-jwt",
		DeviceTrustToken: "dvt_abc",
	}

	cookies := AuthCookies(auth, cfg)
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(cookies))
	}

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[CookieAccessToken]
	if access == nil || access.Value != "access-jwt" || access.Path != "/" || access.MaxAge != 900 {
		t.Fatalf("unexpected access cookie: %+v", access)
	}

	refresh := byName[CookieRefreshToken]
	if refresh == nil || refresh.Path != "/api/v1/auth/refresh" || refresh.MaxAge != 604800 {
		t.Fatalf("unexpected refresh cookie: %+v", refresh)
	}

	trust := byName[CookieDeviceTrust]
	if trust == nil || trust.Path != "/" || trust.MaxAge != 2592000 {
		t.Fatalf("unexpected device trust cookie: %+v", trust)
	}

	for _, c := range cookies {
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s must be HttpOnly, Secure, SameSite=Strict", c.Name)
		}
	}
}

func TestAuthCookiesWithoutDeviceTrust(t *testing.T) {
	cookies := AuthCookies(&Authentication{AccessToken: "a", RefreshToken: "r"}, DefaultConfig())
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies without a trust token, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Name == CookieDeviceTrust {
			t.Fatal("device trust cookie must not be set without a trust token")
		}
	}
}

func TestClearAuthCookies(t *testing.T) {
	cookies := ClearAuthCookies(false)
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cleared cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge != -1 || c.Value != "" {
			t.Fatalf("cookie %s must be expired and empty", c.Name)
		}
	}

	withTrust := ClearAuthCookies(true)
	if len(withTrust) != 3 {
		t.Fatalf("expected 3 cleared cookies with device trust, got %d", len(withTrust))
	}
}
