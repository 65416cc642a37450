// Package testutil provides HTTP fixtures and file helpers for coursedl tests.
package testutil

import (
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockServer serves one media payload and records how it was asked for.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	FileSize         int64         // Size of the served file
	ContentType      string        // Content-Type header value
	RandomData       bool          // If true, serve random data; otherwise serve zeros
	Prefix           []byte        // Leading bytes of the payload (e.g. a container signature)
	Latency          time.Duration // Artificial latency per request
	FailAfterBytes   int64         // Drop the connection after this many bytes (0 = no fail)
	FailOnNthRequest int           // Fail on Nth request (0 = don't fail)
	StatusCode       int           // Status to answer with instead of 200

	// Tracking
	RequestCount   atomic.Int64
	BytesServed    atomic.Int64
	FailedRequests atomic.Int64

	mu          sync.Mutex
	reqNum      int
	lastHeaders http.Header

	data []byte
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithFileSize sets the file size to serve.
func WithFileSize(size int64) MockServerOption {
	return func(m *MockServer) { m.FileSize = size }
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) { m.ContentType = ct }
}

// WithRandomData enables serving random bytes instead of zeros.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) { m.RandomData = random }
}

// WithPrefix makes the payload start with p.
func WithPrefix(p []byte) MockServerOption {
	return func(m *MockServer) { m.Prefix = p }
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) { m.Latency = d }
}

// WithFailAfterBytes causes the connection to fail after serving N bytes.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) { m.FailAfterBytes = n }
}

// WithFailOnNthRequest causes the Nth request to fail.
func WithFailOnNthRequest(n int) MockServerOption {
	return func(m *MockServer) { m.FailOnNthRequest = n }
}

// WithStatusCode answers every request with code and no body.
func WithStatusCode(code int) MockServerOption {
	return func(m *MockServer) { m.StatusCode = code }
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		FileSize:    1024 * 1024, // 1MB default
		ContentType: "video/mp4",
	}
	for _, opt := range opts {
		opt(m)
	}

	m.data = make([]byte, m.FileSize)
	if m.RandomData {
		_, _ = rand.Read(m.data)
	}
	copy(m.data, m.Prefix)
	return m
}

// NewMockServer creates a new mock HTTP server with the given options.
func NewMockServer(opts ...MockServerOption) *MockServer {
	m := newMockServer(opts)
	m.Server = NewHTTPServer(m)
	return m
}

// NewMockServerT creates a new mock HTTP server and skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	m := newMockServer(opts)
	m.Server = NewHTTPServerT(t, m)
	return m
}

// URL returns the server's URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

// Data returns the payload a complete download must reproduce.
func (m *MockServer) Data() []byte {
	return m.data
}

// LastHeaders returns the headers of the most recent request.
func (m *MockServer) LastHeaders() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeaders.Clone()
}

// Stats returns a summary of server statistics.
func (m *MockServer) Stats() MockServerStats {
	return MockServerStats{
		TotalRequests:  m.RequestCount.Load(),
		BytesServed:    m.BytesServed.Load(),
		FailedRequests: m.FailedRequests.Load(),
	}
}

// MockServerStats contains server statistics.
type MockServerStats struct {
	TotalRequests  int64
	BytesServed    int64
	FailedRequests int64
}

func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.RequestCount.Add(1)

	m.mu.Lock()
	m.reqNum++
	reqNum := m.reqNum
	m.lastHeaders = r.Header.Clone()
	m.mu.Unlock()

	if m.FailOnNthRequest > 0 && reqNum == m.FailOnNthRequest {
		m.FailedRequests.Add(1)
		http.Error(w, "Simulated failure", http.StatusInternalServerError)
		return
	}
	if m.StatusCode != 0 && m.StatusCode != http.StatusOK {
		m.FailedRequests.Add(1)
		http.Error(w, http.StatusText(m.StatusCode), m.StatusCode)
		return
	}

	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}

	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(m.FileSize, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	ServeBytes(w, m.data, m.FailAfterBytes, &m.BytesServed, &m.FailedRequests)
}

// ServeBytes writes data in 32KB chunks, stopping early once failAfter bytes
// have gone out. A short body against the announced Content-Length surfaces
// as an unexpected EOF on the client.
func ServeBytes(w http.ResponseWriter, data []byte, failAfter int64, served, failed *atomic.Int64) {
	const chunkSize = 32 * 1024
	var written int64
	for written < int64(len(data)) {
		if failAfter > 0 && written >= failAfter {
			if failed != nil {
				failed.Add(1)
			}
			return
		}
		end := written + chunkSize
		if failAfter > 0 && end > failAfter {
			end = failAfter
		}
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		n, err := w.Write(data[written:end])
		if err != nil {
			return // Client disconnected
		}
		written += int64(n)
		if served != nil {
			served.Add(int64(n))
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// MP4Signature is the leading box of an ISO base media file.
var MP4Signature = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

// ZipSignature is the local file header magic of a zip archive.
var ZipSignature = []byte{'P', 'K', 0x03, 0x04}
