package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/surge-downloader/coursedl/internal/engine/types"
)

// ItemRef identifies one retrieval unit in every item message
type ItemRef struct {
	ID           string
	CourseSlug   string
	Kind         types.ItemKind
	Title        string
	ChapterIndex int // 0 for exercise bundles
	VideoIndex   int // 0 for exercise bundles
	DestPath     string
}

// RunStartedMsg is sent once the session is ready and courses are dispatched
type RunStartedMsg struct {
	Courses []string
	Started time.Time
}

// CourseStartedMsg is sent after the catalog was fetched and directories exist
type CourseStartedMsg struct {
	CourseSlug  string
	CourseName  string
	Chapters    int
	Videos      int
	HasExercise bool
}

// CourseSkippedMsg is sent when a course is considered already retrieved
type CourseSkippedMsg struct {
	CourseSlug string
	Dir        string
}

// CourseCompleteMsg signals every unit of a course has settled
type CourseCompleteMsg struct {
	CourseSlug string
	CourseName string
	Elapsed    time.Duration
	Failed     int
}

// ItemStartedMsg is sent when a unit begins network work
type ItemStartedMsg struct {
	ItemRef
}

// ItemSkippedMsg is sent when every artifact of a unit already exists
type ItemSkippedMsg struct {
	ItemRef
}

// ItemCompleteMsg signals that the unit finished successfully
type ItemCompleteMsg struct {
	ItemRef
	Bytes   int64 // 0 when only the subtitle track was refreshed
	Elapsed time.Duration
}

// ItemErrorMsg signals that a unit was abandoned
type ItemErrorMsg struct {
	ItemRef
	Err error
}

func (m ItemErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		ItemRef
		Err string `json:"Err,omitempty"`
	}

	out := encoded{ItemRef: m.ItemRef}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *ItemErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		ItemRef
		Err json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.ItemRef = aux.ItemRef
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}).
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// Send delivers msg on ch unless ctx ends first. A nil channel drops msg.
func Send(ctx context.Context, ch chan<- any, msg any) {
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}
