// Package session performs the platform login handshake and hands out an
// authenticated, read-only connection Context.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/utils"
)

const (
	HeaderIdentity = "x-li-identity"
	HeaderCSRF     = "Csrf-Token"

	authCookie    = "li_at"
	sessionCookie = "JSESSIONID"

	loginPath   = "login?trk=guest_homepage-basic_nav-header-signin"
	submitPath  = "uas/login-submit"
	landingPath = "learning/"
)

// Credentials selects the login mode. A non-empty SessionCookie skips the
// credential handshake.
type Credentials struct {
	Username      string
	Password      string
	SessionCookie string
}

// Provider logs in and produces session Contexts.
type Provider struct {
	Runtime *types.RuntimeConfig
	Logger  zerolog.Logger

	// Client overrides the HTTP client; it must carry a cookie jar.
	Client *http.Client
}

// NewProvider creates a provider using runtime for transport settings.
func NewProvider(runtime *types.RuntimeConfig, logger zerolog.Logger) *Provider {
	return &Provider{Runtime: runtime, Logger: logger}
}

// Login runs the handshake for creds and returns the authenticated context.
func (p *Provider) Login(ctx context.Context, creds Credentials) (*Context, error) {
	base, err := url.Parse(p.Runtime.GetBaseURL())
	if err != nil {
		return nil, &AuthenticationError{Step: "setup", Err: fmt.Errorf("parsing base url: %w", err)}
	}

	client := p.Client
	if client == nil {
		if client, err = NewHTTPClient(p.Runtime, p.Logger); err != nil {
			return nil, &AuthenticationError{Step: "setup", Err: err}
		}
	}
	if client.Jar == nil {
		return nil, &AuthenticationError{Step: "setup", Err: errors.New("http client has no cookie jar")}
	}

	header := http.Header{}
	header.Set("User-Agent", p.Runtime.GetUserAgent())
	header.Set("Accept", "*/*")
	sc := &Context{Client: client, BaseURL: base, header: header}

	if creds.SessionCookie == "" {
		p.Logger.Info().
			Str("user", utils.MaskSecret(creds.Username)).
			Msg("logging in with username and password")
		if err := p.credentialLogin(ctx, sc, creds); err != nil {
			return nil, err
		}
	} else {
		p.Logger.Info().Msg("logging in with session cookie")
		client.Jar.SetCookies(base, []*http.Cookie{{Name: authCookie, Value: creds.SessionCookie, Path: "/"}})
	}

	p.Logger.Info().Int("step", 3).Msg("login step 3: fetching identity")
	if err := p.fetchIdentity(ctx, sc); err != nil {
		return nil, err
	}
	p.Logger.Info().Msg("login complete")
	return sc, nil
}

func (p *Provider) credentialLogin(ctx context.Context, sc *Context, creds Credentials) error {
	p.Logger.Info().Int("step", 1).Msg("login step 1: fetching CSRF token")
	doc, err := p.getDocument(ctx, sc, loginPath)
	if err != nil {
		return &AuthenticationError{Step: "csrf", Err: err}
	}
	csrf, ok := doc.Find("input[name=loginCsrfParam]").First().Attr("value")
	if !ok || csrf == "" {
		return &AuthenticationError{Step: "csrf", Err: errors.New("loginCsrfParam not found on login page")}
	}
	p.Logger.Debug().Str("csrf", csrf).Msg("found CSRF token")

	p.Logger.Info().Int("step", 2).Msg("login step 2: submitting credentials")
	form := url.Values{
		"session_key":      {creds.Username},
		"session_password": {creds.Password},
		"loginCsrfParam":   {csrf},
		"isJsEnabled":      {"false"},
	}
	req, err := sc.NewRequest(ctx, http.MethodPost, submitPath, strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthenticationError{Step: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := sc.Client.Do(req)
	if err != nil {
		return &AuthenticationError{Step: "submit", Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, types.MaxResponseBody))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthenticationError{Step: "submit", Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	if _, ok := sc.Cookie(authCookie); !ok {
		return &AuthenticationError{Step: "submit", Err: errors.New("could not log in, check your credentials")}
	}
	return nil
}

type identityBlob struct {
	Data struct {
		EnterpriseProfileHash string `json:"enterpriseProfileHash"`
	} `json:"data"`
}

func (p *Provider) fetchIdentity(ctx context.Context, sc *Context) error {
	doc, err := p.getDocument(ctx, sc, landingPath)
	if err != nil {
		return &AuthenticationError{Step: "identity", Err: err}
	}

	var identity string
	doc.Find("body > code").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var blob identityBlob
		if json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &blob) != nil {
			return true
		}
		identity = blob.Data.EnterpriseProfileHash
		return identity == ""
	})
	if identity == "" {
		return &AuthenticationError{Step: "identity", Err: errors.New("enterpriseProfileHash not found on landing page")}
	}

	csrf, ok := sc.Cookie(sessionCookie)
	if !ok {
		return &AuthenticationError{Step: "identity", Err: errors.New("JSESSIONID cookie not set")}
	}

	sc.header.Set(HeaderIdentity, identity)
	sc.header.Set(HeaderCSRF, strings.Trim(csrf, `"`))
	p.Logger.Debug().Str("identity", identity).Msg("session identity resolved")
	return nil
}

func (p *Provider) getDocument(ctx context.Context, sc *Context, ref string) (*goquery.Document, error) {
	req, err := sc.NewRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := sc.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status code: %d", ref, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, types.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ref, err)
	}
	return doc, nil
}
