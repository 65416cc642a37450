package download

import (
	"sync"

	"github.com/surge-downloader/coursedl/internal/engine/types"
)

// Failure is one abandoned unit or course.
type Failure struct {
	CourseSlug string
	Kind       types.ItemKind
	Title      string
	Path       string
	Err        error
}

// Counts summarises a run.
type Counts struct {
	Completed      int
	Skipped        int
	Failed         int
	Bytes          int64
	CoursesDone    int
	CoursesSkipped int
	CoursesAborted int
}

// Report collects outcomes from concurrent units.
type Report struct {
	mu       sync.Mutex
	counts   Counts
	failures []Failure
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) addCompleted(bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.Completed++
	r.counts.Bytes += bytes
}

func (r *Report) addSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.Skipped++
}

func (r *Report) addFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.Failed++
	r.failures = append(r.failures, f)
}

func (r *Report) courseDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.CoursesDone++
}

func (r *Report) courseSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.CoursesSkipped++
}

func (r *Report) courseAborted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.CoursesAborted++
}

// Counts returns a snapshot of the totals.
func (r *Report) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

// Failures returns a copy of the recorded failures in arrival order.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.failures...)
}

// HasFailures reports whether any unit or course failed.
func (r *Report) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures) > 0
}
