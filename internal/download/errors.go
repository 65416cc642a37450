package download

import "fmt"

// CatalogFetchError means a course's catalog could not be retrieved and
// the course was abandoned.
type CatalogFetchError struct {
	Slug string
	Err  error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("fetching catalog for %s: %v", e.Slug, e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	return e.Err
}

// TransferError means a media stream failed. The partial file was removed.
type TransferError struct {
	URL  string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transferring %s: %v", e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ProxyOrConnectionError means the platform or the configured proxy could
// not be reached. It aborts the run once in-flight work has settled.
type ProxyOrConnectionError struct {
	Err error
}

func (e *ProxyOrConnectionError) Error() string {
	return fmt.Sprintf("cannot reach the platform (check proxy and network): %v", e.Err)
}

func (e *ProxyOrConnectionError) Unwrap() error {
	return e.Err
}
