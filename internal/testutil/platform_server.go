package testutil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/surge-downloader/coursedl/internal/catalog"
	"github.com/surge-downloader/coursedl/internal/subtitle"
)

const (
	PlatformCSRF     = "csrf-token-123"
	PlatformIdentity = "identity-hash-abc"
	PlatformSession  = "ajax:4242"
	PlatformAuthTok  = "li-at-token"
)

// PlatformVideo describes how the fake platform answers for one video.
type PlatformVideo struct {
	Captions        []subtitle.CaptionEvent
	OmitTranscript  bool  // leave the transcript field out of the payload
	OmitURL         bool  // leave progressiveUrl out of the payload
	DurationSeconds int64 // defaults to 10
	Size            int64 // media size, defaults to 64KB
	MetadataFails   int   // fail this many metadata requests first (<0 = always)
	MediaFailAfter  int64 // drop the media transfer after this many bytes
	MediaStatus     int   // answer media requests with this status
}

// PlatformCourse is one course known to the fake platform. Videos is keyed by
// video slug; videos present in Raw but absent here get defaults.
type PlatformCourse struct {
	Raw          catalog.RawCourse
	Videos       map[string]PlatformVideo
	CatalogFails bool
	ExerciseSize int64
}

// PlatformServer imitates the login, identity, catalog and media endpoints
// of the learning platform.
type PlatformServer struct {
	Server *httptest.Server

	Username string
	Password string

	mu       sync.Mutex
	courses  map[string]*PlatformCourse
	attempts map[string]int
	hits     map[string]int

	Requests atomic.Int64
}

// PlatformOption configures a PlatformServer.
type PlatformOption func(*PlatformServer)

// WithCredentials sets the accepted username and password.
func WithCredentials(user, pass string) PlatformOption {
	return func(p *PlatformServer) { p.Username, p.Password = user, pass }
}

// WithCourse registers a course.
func WithCourse(c PlatformCourse) PlatformOption {
	return func(p *PlatformServer) {
		cc := c
		p.courses[c.Raw.Slug] = &cc
	}
}

// NewPlatformServerT starts the fake platform for the duration of t.
func NewPlatformServerT(t *testing.T, opts ...PlatformOption) *PlatformServer {
	t.Helper()
	p := &PlatformServer{
		Username: "learner@example.com",
		Password: "secret",
		courses:  make(map[string]*PlatformCourse),
		attempts: make(map[string]int),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Server = NewHTTPServerT(t, p)
	return p
}

// URL returns the base URL of the platform.
func (p *PlatformServer) URL() string {
	return p.Server.URL
}

// Hits returns how many requests reached path (query excluded).
func (p *PlatformServer) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// MetadataAttempts returns how many metadata requests were made for a video.
func (p *PlatformServer) MetadataAttempts(courseSlug, videoSlug string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[courseSlug+"/"+videoSlug]
}

func (p *PlatformServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.Requests.Add(1)
	p.mu.Lock()
	p.hits[r.URL.Path]++
	p.mu.Unlock()

	switch {
	case r.URL.Path == "/login":
		p.handleLoginPage(w, r)
	case r.URL.Path == "/uas/login-submit":
		p.handleLoginSubmit(w, r)
	case r.URL.Path == "/learning/":
		p.handleLanding(w, r)
	case r.URL.Path == "/learning-api/detailedCourses":
		p.handleDetailedCourses(w, r)
	case strings.HasPrefix(r.URL.Path, "/media/"):
		p.handleMedia(w, r)
	case strings.HasPrefix(r.URL.Path, "/exercise/"):
		p.handleExercise(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *PlatformServer) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body><form action="/uas/login-submit" method="post">
<input type="hidden" name="loginCsrfParam" value="%s">
<input name="session_key"><input name="session_password" type="password">
</form></body></html>`, PlatformCSRF)
}

func (p *PlatformServer) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("loginCsrfParam") != PlatformCSRF ||
		r.PostForm.Get("session_key") != p.Username ||
		r.PostForm.Get("session_password") != p.Password {
		// The real site answers 200 with an error page and no session cookie
		w.WriteHeader(http.StatusOK)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "li_at", Value: PlatformAuthTok, Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (p *PlatformServer) handleLanding(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("li_at"); err != nil || c.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: PlatformSession, Path: "/"})
	blob, _ := json.Marshal(map[string]any{
		"data": map[string]any{"enterpriseProfileHash": PlatformIdentity},
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body><code>{"unrelated":true}</code><code>%s</code></body></html>`,
		html.EscapeString(string(blob)))
}

func (p *PlatformServer) authorized(r *http.Request) bool {
	return r.Header.Get("x-li-identity") == PlatformIdentity &&
		r.Header.Get("Csrf-Token") == PlatformSession
}

func (p *PlatformServer) handleDetailedCourses(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	slug := q.Get("courseSlug")

	p.mu.Lock()
	course, ok := p.courses[slug]
	p.mu.Unlock()
	if !ok {
		http.Error(w, "unknown course", http.StatusNotFound)
		return
	}

	switch q.Get("fields") {
	case "videos":
		if course.CatalogFails {
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
		raw := course.Raw
		if course.ExerciseSize > 0 && len(raw.ExerciseFiles) > 0 {
			files := append([]catalog.RawExerciseFile(nil), raw.ExerciseFiles...)
			files[0].URL = p.URL() + "/exercise/" + slug
			files[0].SizeInBytes = course.ExerciseSize
			raw.ExerciseFiles = files
		}
		writeJSON(w, map[string]any{"elements": []any{raw}})
	case "selectedVideo":
		p.serveVideoMetadata(w, course, q.Get("videoSlug"))
	default:
		http.Error(w, "unsupported fields", http.StatusBadRequest)
	}
}

func (p *PlatformServer) serveVideoMetadata(w http.ResponseWriter, course *PlatformCourse, videoSlug string) {
	key := course.Raw.Slug + "/" + videoSlug
	v := course.Videos[videoSlug]

	p.mu.Lock()
	p.attempts[key]++
	attempt := p.attempts[key]
	p.mu.Unlock()

	if v.MetadataFails < 0 || attempt <= v.MetadataFails {
		http.Error(w, "metadata unavailable", http.StatusInternalServerError)
		return
	}

	duration := v.DurationSeconds
	if duration == 0 {
		duration = 10
	}
	selected := map[string]any{"durationInSeconds": duration}
	if !v.OmitURL {
		selected["url"] = map[string]any{
			"progressiveUrl": fmt.Sprintf("%s/media/%s/%s.mp4", p.URL(), course.Raw.Slug, videoSlug),
		}
	}
	if !v.OmitTranscript {
		lines := make([]map[string]any, 0, len(v.Captions))
		for _, c := range v.Captions {
			lines = append(lines, map[string]any{"transcriptStartAt": c.StartMs, "caption": c.Text})
		}
		selected["transcript"] = map[string]any{"lines": lines}
	}
	writeJSON(w, map[string]any{"elements": []any{map[string]any{"selectedVideo": selected}}})
}

func (p *PlatformServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/media/")
	courseSlug, file, ok := strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	videoSlug := strings.TrimSuffix(file, ".mp4")

	p.mu.Lock()
	course, ok := p.courses[courseSlug]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	v := course.Videos[videoSlug]
	if v.MediaStatus != 0 {
		http.Error(w, http.StatusText(v.MediaStatus), v.MediaStatus)
		return
	}
	size := v.Size
	if size == 0 {
		size = 64 * 1024
	}
	data := make([]byte, size)
	copy(data, MP4Signature)

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	ServeBytes(w, data, v.MediaFailAfter, nil, nil)
}

func (p *PlatformServer) handleExercise(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/exercise/")
	p.mu.Lock()
	course, ok := p.courses[slug]
	p.mu.Unlock()
	if !ok || course.ExerciseSize == 0 {
		http.NotFound(w, r)
		return
	}
	data := make([]byte, course.ExerciseSize)
	copy(data, ZipSignature)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.FormatInt(course.ExerciseSize, 10))
	w.WriteHeader(http.StatusOK)
	ServeBytes(w, data, 0, nil, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
