package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"github.com/surge-downloader/coursedl/internal/engine/types"
)

// NewTransport builds the HTTP transport honouring the proxy and TLS settings.
// ProxyURL may be http(s):// or socks5://; empty falls back to the environment.
func NewTransport(runtime *types.RuntimeConfig, logger zerolog.Logger) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   types.DialTimeout,
		KeepAlive: types.KeepAliveDuration,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          types.DefaultMaxIdleConns,
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: types.DefaultResponseHeaderTimeout,
		MaxIdleConnsPerHost:   runtime.GetMaxConcurrentDownloads() * 2,
	}

	if runtime != nil && runtime.ProxyURL != "" {
		parsedURL, err := url.Parse(runtime.ProxyURL)
		if err != nil || parsedURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", runtime.ProxyURL)
		}

		if strings.HasPrefix(parsedURL.Scheme, "socks5") {
			logger.Debug().Str("proxy", parsedURL.Redacted()).Msg("using SOCKS5 proxy")
			var auth *proxy.Auth
			if parsedURL.User != nil {
				pass, _ := parsedURL.User.Password()
				auth = &proxy.Auth{User: parsedURL.User.Username(), Password: pass}
			}
			socks, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, dialer)
			if err != nil {
				return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
			}
			transport.Proxy = nil
			if cd, ok := socks.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return socks.Dial(network, addr)
				}
			}
		} else {
			logger.Debug().Str("proxy", parsedURL.Redacted()).Msg("using HTTP proxy")
			transport.Proxy = http.ProxyURL(parsedURL)
		}
	}

	if runtime != nil && runtime.SkipTLSVerification {
		logger.Warn().Msg("TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	return transport, nil
}

// NewHTTPClient returns a client with a fresh cookie jar over NewTransport.
func NewHTTPClient(runtime *types.RuntimeConfig, logger zerolog.Logger) (*http.Client, error) {
	transport, err := NewTransport(runtime, logger)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Jar: jar}, nil
}
