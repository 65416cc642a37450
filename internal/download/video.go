package download

import (
	"context"
	"fmt"
	"time"

	"github.com/h2non/filetype"

	"github.com/surge-downloader/coursedl/internal/engine/events"
	"github.com/surge-downloader/coursedl/internal/paths"
	"github.com/surge-downloader/coursedl/internal/subtitle"
)

// fetchVideo retrieves one video and its subtitle track. Existing files are
// never fetched again; the subtitle track is rewritten whenever metadata
// was fetched.
func (s *Scheduler) fetchVideo(ctx context.Context, u *unit) error {
	videoPath := u.ref.DestPath
	subPath := s.opts.Resolver.SubtitlePath(u.course, u.chapter, u.video)
	log := s.log.With().
		Str("course", u.course.Slug).
		Int("chapter", u.chapter.Index).
		Str("video", u.video.Slug).
		Logger()

	videoExists := paths.Exists(videoPath)
	if videoExists && paths.Exists(subPath) {
		log.Debug().Str("path", videoPath).Msg("video already present")
		s.report.addSkipped()
		events.Send(ctx, s.opts.Events, events.ItemSkippedMsg{ItemRef: u.ref})
		return nil
	}

	start := time.Now()
	events.Send(ctx, s.opts.Events, events.ItemStartedMsg{ItemRef: u.ref})

	asset, err := s.opts.API.FetchVideo(ctx, u.course.Slug, u.video.Slug)
	if err != nil {
		return err
	}

	var written int64
	if !videoExists {
		log.Info().Str("path", videoPath).Msg("downloading video")
		written, err = s.opts.Downloader.Download(ctx, asset.URL, videoPath)
		if err != nil {
			return &TransferError{URL: asset.URL, Path: videoPath, Err: err}
		}
		if kind, ok, err := sniff(videoPath, filetype.IsVideo); err != nil {
			log.Debug().Err(err).Msg("could not inspect downloaded file")
		} else if !ok {
			log.Warn().Str("path", videoPath).Str("mime", kind).Msg("downloaded file does not look like a video")
		}
	}

	if err := subtitle.WriteFile(subPath, asset.Captions, asset.DurationMs); err != nil {
		return fmt.Errorf("writing subtitles: %w", err)
	}

	elapsed := time.Since(start)
	log.Info().
		Str("path", videoPath).
		Int64("bytes", written).
		Int("captions", len(asset.Captions)).
		Dur("elapsed", elapsed).
		Msg("video retrieved")
	s.report.addCompleted(written)
	events.Send(ctx, s.opts.Events, events.ItemCompleteMsg{ItemRef: u.ref, Bytes: written, Elapsed: elapsed})
	return nil
}
