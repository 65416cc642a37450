package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/testutil"
)

func newTestProvider(baseURL string) *Provider {
	return NewProvider(&types.RuntimeConfig{BaseURL: baseURL}, zerolog.Nop())
}

func TestLogin_Credentials(t *testing.T) {
	platform := testutil.NewPlatformServerT(t, testutil.WithCredentials("me@example.com", "pw"))

	sc, err := newTestProvider(platform.URL()).Login(context.Background(), Credentials{Username: "me@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, testutil.PlatformIdentity, sc.Identity())
	assert.Equal(t, testutil.PlatformSession, sc.CSRFToken())
	assert.Equal(t, "*/*", sc.Header().Get("Accept"))
	assert.NotEmpty(t, sc.Header().Get("User-Agent"))

	tok, ok := sc.Cookie("LI_AT")
	assert.True(t, ok, "cookie lookup is case-insensitive")
	assert.Equal(t, testutil.PlatformAuthTok, tok)

	assert.Equal(t, 1, platform.Hits("/login"))
	assert.Equal(t, 1, platform.Hits("/uas/login-submit"))
	assert.Equal(t, 1, platform.Hits("/learning/"))
}

func TestLogin_BadCredentials(t *testing.T) {
	platform := testutil.NewPlatformServerT(t, testutil.WithCredentials("me@example.com", "pw"))

	_, err := newTestProvider(platform.URL()).Login(context.Background(), Credentials{Username: "me@example.com", Password: "wrong"})
	require.Error(t, err)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "submit", authErr.Step)
	assert.Contains(t, err.Error(), "check your credentials")
	assert.Zero(t, platform.Hits("/learning/"), "identity step must not run after a failed login")
}

func TestLogin_SessionCookieSkipsForm(t *testing.T) {
	platform := testutil.NewPlatformServerT(t)

	sc, err := newTestProvider(platform.URL()).Login(context.Background(), Credentials{SessionCookie: "injected"})
	require.NoError(t, err)

	assert.Zero(t, platform.Hits("/login"))
	assert.Zero(t, platform.Hits("/uas/login-submit"))
	assert.Equal(t, 1, platform.Hits("/learning/"))
	assert.Equal(t, testutil.PlatformIdentity, sc.Identity())
	assert.Equal(t, testutil.PlatformSession, sc.CSRFToken())

	tok, ok := sc.Cookie("li_at")
	require.True(t, ok)
	assert.Equal(t, "injected", tok)
}

func TestLogin_MissingCSRF(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><form></form></body></html>`))
	}))

	_, err := newTestProvider(srv.URL).Login(context.Background(), Credentials{Username: "u", Password: "p"})
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "csrf", authErr.Step)
}

func TestLogin_IdentityMissing(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "ajax:1", Path: "/"})
		_, _ = w.Write([]byte(`<html><body><code>not json</code><code>{"data":{}}</code></body></html>`))
	}))

	_, err := newTestProvider(srv.URL).Login(context.Background(), Credentials{SessionCookie: "c"})
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "identity", authErr.Step)
}

func TestLogin_LandingUnauthorized(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := newTestProvider(srv.URL).Login(context.Background(), Credentials{SessionCookie: "expired"})
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "identity", authErr.Step)
	assert.Contains(t, err.Error(), "401")
}

func TestLogin_ClientWithoutJar(t *testing.T) {
	platform := testutil.NewPlatformServerT(t)

	p := newTestProvider(platform.URL())
	p.Client = &http.Client{}
	_, err := p.Login(context.Background(), Credentials{SessionCookie: "x"})
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "setup", authErr.Step)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	p.Client = &http.Client{Jar: jar}
	_, err = p.Login(context.Background(), Credentials{SessionCookie: "x"})
	assert.NoError(t, err)
}

func TestLogin_ConnectionRefused(t *testing.T) {
	_, err := newTestProvider(testutil.ClosedURL(t)).Login(context.Background(), Credentials{SessionCookie: "x"})
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "identity", authErr.Step)
}

func TestContext_NewRequestCopiesHeaders(t *testing.T) {
	platform := testutil.NewPlatformServerT(t)
	sc, err := newTestProvider(platform.URL()).Login(context.Background(), Credentials{SessionCookie: "x"})
	require.NoError(t, err)

	req, err := sc.NewRequest(context.Background(), http.MethodGet, "learning-api/detailedCourses?q=slugs", nil)
	require.NoError(t, err)
	assert.Equal(t, platform.URL()+"/learning-api/detailedCourses?q=slugs", req.URL.String())
	assert.Equal(t, testutil.PlatformIdentity, req.Header.Get(HeaderIdentity))

	// Mutating one request never leaks into the session
	req.Header.Set(HeaderIdentity, "tampered")
	assert.Equal(t, testutil.PlatformIdentity, sc.Identity())

	abs, err := sc.NewRequest(context.Background(), http.MethodGet, "https://cdn.example.com/v.mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, "cdn.example.com", abs.URL.Host)
}
