package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/surge-downloader/coursedl/internal/engine/events"
	"github.com/surge-downloader/coursedl/internal/engine/state"
	"github.com/surge-downloader/coursedl/internal/engine/types"
)

// StartEventConsumer prints progress lines to out and records completed
// items in the history ledger. The returned channel closes once ch is
// closed and drained.
func StartEventConsumer(ch <-chan any, out io.Writer, logger zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			handleEvent(msg, out, logger)
		}
	}()
	return done
}

func handleEvent(msg any, out io.Writer, logger zerolog.Logger) {
	switch m := msg.(type) {
	case events.CourseStartedMsg:
		fmt.Fprintf(out, "Course: %s (%d chapters, %d videos)\n", m.CourseName, m.Chapters, m.Videos)
	case events.CourseSkippedMsg:
		fmt.Fprintf(out, "Skipped course: %s (found %s)\n", m.CourseSlug, m.Dir)
	case events.ItemCompleteMsg:
		fmt.Fprintf(out, "Completed: %s [%s] (in %s)\n", m.Title, shortID(m.ID), m.Elapsed.Round(time.Millisecond))
		entry := types.DownloadEntry{
			ID:          m.ID,
			CourseSlug:  m.CourseSlug,
			Kind:        m.Kind,
			Title:       m.Title,
			DestPath:    m.DestPath,
			Bytes:       m.Bytes,
			CompletedAt: time.Now().Unix(),
			TimeTaken:   m.Elapsed.Milliseconds(),
		}
		if err := state.RecordCompleted(entry); err != nil {
			logger.Warn().Err(err).Str("path", m.DestPath).Msg("could not record download history")
		}
	case events.ItemErrorMsg:
		fmt.Fprintf(out, "Error: %s [%s]: %v\n", m.Title, shortID(m.ID), m.Err)
	case events.CourseCompleteMsg:
		if m.Failed > 0 {
			fmt.Fprintf(out, "Finished course: %s with %d failure(s)\n", m.CourseSlug, m.Failed)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
