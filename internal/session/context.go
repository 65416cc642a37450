package session

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Context is an authenticated connection handle. It is read-only once
// Provider.Login has returned it and safe for concurrent use.
type Context struct {
	Client  *http.Client
	BaseURL *url.URL
	header  http.Header
}

// Header returns a copy of the session headers.
func (c *Context) Header() http.Header {
	return c.header.Clone()
}

// Identity returns the x-li-identity header value.
func (c *Context) Identity() string {
	return c.header.Get(HeaderIdentity)
}

// CSRFToken returns the Csrf-Token header value.
func (c *Context) CSRFToken() string {
	return c.header.Get(HeaderCSRF)
}

// Resolve turns a path relative to the base URL into an absolute URL.
func (c *Context) Resolve(ref string) string {
	u, err := url.Parse(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return ref
	}
	base := *c.BaseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(u).String()
}

// NewRequest builds a request carrying the session headers. Relative
// references are resolved against the base URL.
func (c *Context) NewRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	target := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		target = c.Resolve(ref)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header = c.header.Clone()
	return req, nil
}

// Cookie returns the value of the named cookie for the base URL,
// matching the name case-insensitively.
func (c *Context) Cookie(name string) (string, bool) {
	return findCookie(c.Client, c.BaseURL, name)
}

func findCookie(client *http.Client, u *url.URL, name string) (string, bool) {
	if client.Jar == nil {
		return "", false
	}
	for _, ck := range client.Jar.Cookies(u) {
		if strings.EqualFold(ck.Name, name) && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}
