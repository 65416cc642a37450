package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// IncompleteSuffix is appended to files while downloading
	IncompleteSuffix = ".part"
)

// File extensions for retrieved artifacts
const (
	VideoExt    = ".mp4"
	SubtitleExt = ".srt"
)

// Transfer tuning
const (
	WorkerBuffer = 32 * KB

	// MaxResponseBody bounds JSON/HTML responses read into memory
	MaxResponseBody = 8 * MB
)

// HTTP Client Tuning
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
	MetadataTimeout              = 30 * time.Second
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

const (
	DefaultBaseURL    = "https://www.linkedin.com"
	DefaultResolution = "_720"

	DefaultMaxConcurrentDownloads = 4
)

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	BaseURL                string
	UserAgent              string
	ProxyURL               string
	SkipTLSVerification    bool
	MaxConcurrentDownloads int

	WorkerBufferSize int
	MaxFetchRetries  int
	RetryBaseDelay   time.Duration
	Resolution       string
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetBaseURL returns the configured platform URL or the default
func (r *RuntimeConfig) GetBaseURL() string {
	if r == nil || r.BaseURL == "" {
		return DefaultBaseURL
	}
	return r.BaseURL
}

// GetMaxConcurrentDownloads returns configured value or default
func (r *RuntimeConfig) GetMaxConcurrentDownloads() int {
	if r == nil || r.MaxConcurrentDownloads <= 0 {
		return DefaultMaxConcurrentDownloads
	}
	return r.MaxConcurrentDownloads
}

// GetWorkerBufferSize returns configured value or default
func (r *RuntimeConfig) GetWorkerBufferSize() int {
	if r == nil || r.WorkerBufferSize <= 0 {
		return WorkerBuffer
	}
	return r.WorkerBufferSize
}

const (
	MaxFetchRetries = 3
	RetryBaseDelay  = 200 * time.Millisecond
)

// GetMaxFetchRetries returns configured value or default
func (r *RuntimeConfig) GetMaxFetchRetries() int {
	if r == nil || r.MaxFetchRetries <= 0 {
		return MaxFetchRetries
	}
	return r.MaxFetchRetries
}

// GetRetryBaseDelay returns configured value or default.
// A negative value disables the wait between attempts.
func (r *RuntimeConfig) GetRetryBaseDelay() time.Duration {
	if r == nil || r.RetryBaseDelay == 0 {
		return RetryBaseDelay
	}
	if r.RetryBaseDelay < 0 {
		return 0
	}
	return r.RetryBaseDelay
}

// GetResolution returns the requested video resolution or the default
func (r *RuntimeConfig) GetResolution() string {
	if r == nil || r.Resolution == "" {
		return DefaultResolution
	}
	return r.Resolution
}
