package types

// ItemKind identifies what a retrieval unit produces
type ItemKind string

const (
	KindVideo    ItemKind = "video"
	KindExercise ItemKind = "exercise"

	// KindCourse marks failures that abandoned a whole course
	KindCourse ItemKind = "course"
)

// DownloadEntry represents a completed artifact in the history ledger
type DownloadEntry struct {
	ID          string   `json:"id"`
	CourseSlug  string   `json:"course_slug"`
	Kind        ItemKind `json:"kind"`
	Title       string   `json:"title"`
	DestPath    string   `json:"dest_path"`
	Bytes       int64    `json:"bytes"`        // Bytes written (0 when only subtitles were refreshed)
	CompletedAt int64    `json:"completed_at"` // Unix timestamp when completed
	TimeTaken   int64    `json:"time_taken"`   // Duration in milliseconds
}
