package download

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/h2non/filetype"

	"github.com/surge-downloader/coursedl/internal/engine/events"
	"github.com/surge-downloader/coursedl/internal/paths"
	"github.com/surge-downloader/coursedl/internal/utils"
)

func (s *Scheduler) fetchExercise(ctx context.Context, u *unit) error {
	dest := u.ref.DestPath
	log := s.log.With().Str("course", u.course.Slug).Str("path", dest).Logger()

	if paths.Exists(dest) {
		log.Debug().Msg("exercise files already present")
		s.report.addSkipped()
		events.Send(ctx, s.opts.Events, events.ItemSkippedMsg{ItemRef: u.ref})
		return nil
	}

	start := time.Now()
	events.Send(ctx, s.opts.Events, events.ItemStartedMsg{ItemRef: u.ref})
	log.Info().
		Str("name", u.exercise.Name).
		Str("size", utils.ConvertBytesToHumanReadable(u.exercise.Size)).
		Msg("downloading exercise files")

	written, err := s.opts.Downloader.Download(ctx, u.exercise.URL, dest)
	if err != nil {
		return &TransferError{URL: u.exercise.URL, Path: dest, Err: err}
	}
	if kind, ok, err := sniff(dest, filetype.IsArchive); err == nil && !ok {
		log.Debug().Str("mime", kind).Msg("exercise bundle is not a recognised archive")
	}

	elapsed := time.Since(start)
	log.Info().Int64("bytes", written).Dur("elapsed", elapsed).Msg("exercise files retrieved")
	s.report.addCompleted(written)
	events.Send(ctx, s.opts.Events, events.ItemCompleteMsg{ItemRef: u.ref, Bytes: written, Elapsed: elapsed})
	return nil
}

// sniff reads the head of path and reports its detected MIME type and
// whether match accepts it.
func sniff(path string, match func([]byte) bool) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", false, err
	}
	head = head[:n]

	kind, _ := filetype.Match(head)
	return kind.MIME.Value, match(head), nil
}
