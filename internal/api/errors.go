package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// FetchError is returned once every metadata attempt for a video failed.
type FetchError struct {
	CourseSlug string
	VideoSlug  string
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching metadata for %s/%s failed after %d attempt(s): %v",
		e.CourseSlug, e.VideoSlug, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer from the platform API.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Time // zero unless the server sent Retry-After
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.StatusCode)
}

// ErrNoMediaURL means the metadata carried no playable URL. Retrying does not help.
var ErrNoMediaURL = errors.New("video metadata has no progressive url")

// IsConnectionError reports whether err comes from failing to reach the
// platform or the configured proxy, as opposed to an answer from it.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
