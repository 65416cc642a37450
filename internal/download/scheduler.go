// Package download schedules the retrieval of whole courses: catalog
// fetch, directory layout, and a bounded pool of per-item fetchers.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surge-downloader/coursedl/internal/api"
	"github.com/surge-downloader/coursedl/internal/catalog"
	"github.com/surge-downloader/coursedl/internal/engine/events"
	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/paths"
)

// MetadataSource provides course catalogs and video assets.
type MetadataSource interface {
	FetchCourse(ctx context.Context, slug string) (*catalog.RawCourse, error)
	FetchVideo(ctx context.Context, courseSlug, videoSlug string) (*api.VideoAsset, error)
}

// Transferer streams a URL to a file, leaving nothing behind on failure.
type Transferer interface {
	Download(ctx context.Context, rawurl, destPath string) (int64, error)
}

// Options wires a Scheduler.
type Options struct {
	API        MetadataSource
	Downloader Transferer
	Resolver   paths.Resolver
	Runtime    *types.RuntimeConfig
	Events     chan<- any // optional
	Logger     zerolog.Logger

	// RecheckExisting disables the whole-course skip; files are still
	// skipped one by one.
	RecheckExisting bool
}

// Scheduler retrieves a batch of courses.
type Scheduler struct {
	opts Options
	log  zerolog.Logger

	report *Report

	abortOnce sync.Once
	aborted   atomic.Bool
	abortErr  error
}

func NewScheduler(opts Options) *Scheduler {
	return &Scheduler{opts: opts, log: opts.Logger}
}

// Run retrieves every course in slugs and returns once all dispatched work
// has settled. Per-item failures are collected in the Report; the error is
// non-nil only when the run was aborted.
func (s *Scheduler) Run(ctx context.Context, slugs []string) (*Report, error) {
	s.report = NewReport()
	slugs = uniqueSlugs(slugs)
	start := time.Now()

	events.Send(ctx, s.opts.Events, events.RunStartedMsg{Courses: slugs, Started: start})

	workers := s.opts.Runtime.GetMaxConcurrentDownloads()
	pool := NewWorkerPool(ctx, workers, s.process)
	s.log.Debug().Int("workers", workers).Int("courses", len(slugs)).Msg("starting retrieval")

	var wg sync.WaitGroup
	for _, slug := range slugs {
		wg.Add(1)
		go func(slug string) {
			defer wg.Done()
			s.runCourse(ctx, pool, slug)
		}(slug)
	}
	wg.Wait()
	pool.Close()

	c := s.report.Counts()
	s.log.Info().
		Dur("elapsed", time.Since(start)).
		Int("completed", c.Completed).
		Int("skipped", c.Skipped).
		Int("failed", c.Failed).
		Msg("retrieval finished")

	if s.aborted.Load() {
		return s.report, s.abortErr
	}
	return s.report, nil
}

func (s *Scheduler) abort(err error) {
	s.abortOnce.Do(func() {
		s.abortErr = &ProxyOrConnectionError{Err: err}
		s.aborted.Store(true)
	})
}

func (s *Scheduler) runCourse(ctx context.Context, pool *WorkerPool, slug string) {
	log := s.log.With().Str("course", slug).Logger()
	if s.aborted.Load() {
		s.report.courseAborted()
		return
	}

	if !s.opts.RecheckExisting {
		dir, done, err := s.opts.Resolver.AlreadyRetrieved(slug)
		if err != nil {
			log.Warn().Err(err).Msg("could not check for an existing course directory")
		}
		if done {
			log.Info().Str("path", dir).Msg("course already retrieved, skipping")
			s.report.courseSkipped()
			events.Send(ctx, s.opts.Events, events.CourseSkippedMsg{CourseSlug: slug, Dir: dir})
			return
		}
	}

	start := time.Now()
	log.Info().Msg("fetching course catalog")
	raw, err := s.fetchCourse(ctx, pool, slug)
	if err != nil {
		if api.IsConnectionError(err) {
			s.abort(err)
		}
		s.failCourse(ctx, slug, &CatalogFetchError{Slug: slug, Err: err})
		return
	}
	course := catalog.Build(*raw)
	if course.Slug == "" {
		course.Slug = slug
	}

	if s.aborted.Load() {
		log.Warn().Msg("run aborted, not dispatching course")
		s.report.courseAborted()
		return
	}

	if err := s.prepareDirs(course); err != nil {
		s.failCourse(ctx, slug, err)
		return
	}

	units := s.plan(course)
	log.Info().
		Str("name", course.Name).
		Int("chapters", len(course.Chapters)).
		Int("videos", course.VideoCount()).
		Bool("exercise", course.Exercise != nil).
		Msg("course catalog ready")
	events.Send(ctx, s.opts.Events, events.CourseStartedMsg{
		CourseSlug:  slug,
		CourseName:  course.Name,
		Chapters:    len(course.Chapters),
		Videos:      course.VideoCount(),
		HasExercise: course.Exercise != nil,
	})

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	wg.Add(len(units))
	for _, u := range units {
		u.settle = func(f bool) {
			if f {
				failed.Add(1)
			}
			wg.Done()
		}
		pool.Add(u)
	}
	wg.Wait()

	// Only a complete course is marked; anything else is retried next run.
	if failed.Load() == 0 && ctx.Err() == nil {
		if err := paths.WriteMarker(s.opts.Resolver.CourseDir(course), course.Slug); err != nil {
			log.Warn().Err(err).Msg("could not mark course as retrieved")
		}
	}

	s.report.courseDone()
	elapsed := time.Since(start)
	log.Info().Dur("elapsed", elapsed).Int32("failed", failed.Load()).Msg("course finished")
	events.Send(ctx, s.opts.Events, events.CourseCompleteMsg{
		CourseSlug: slug,
		CourseName: course.Name,
		Elapsed:    elapsed,
		Failed:     int(failed.Load()),
	})
}

// fetchCourse holds a pool slot for the duration of the catalog request.
func (s *Scheduler) fetchCourse(ctx context.Context, pool *WorkerPool, slug string) (*catalog.RawCourse, error) {
	if err := pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer pool.Release()
	return s.opts.API.FetchCourse(ctx, slug)
}

func (s *Scheduler) failCourse(ctx context.Context, slug string, err error) {
	s.log.Error().Err(err).Str("course", slug).Msg("course abandoned")
	s.report.addFailure(Failure{CourseSlug: slug, Kind: types.KindCourse, Title: slug, Err: err})
	events.Send(ctx, s.opts.Events, events.CourseCompleteMsg{CourseSlug: slug, Failed: 1})
}

// prepareDirs creates the course and chapter directories before any unit
// is dispatched.
func (s *Scheduler) prepareDirs(course catalog.Course) error {
	if err := os.MkdirAll(s.opts.Resolver.CourseDir(course), 0o755); err != nil {
		return fmt.Errorf("creating course directory: %w", err)
	}
	for _, ch := range course.Chapters {
		if err := os.MkdirAll(s.opts.Resolver.ChapterDir(course, ch), 0o755); err != nil {
			return fmt.Errorf("creating chapter directory: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) plan(course catalog.Course) []*unit {
	units := make([]*unit, 0, course.VideoCount()+1)
	for _, ch := range course.Chapters {
		for _, v := range ch.Videos {
			units = append(units, &unit{
				ref: events.ItemRef{
					ID:           uuid.NewString(),
					CourseSlug:   course.Slug,
					Kind:         types.KindVideo,
					Title:        v.Name,
					ChapterIndex: ch.Index,
					VideoIndex:   v.Index,
					DestPath:     s.opts.Resolver.VideoPath(course, ch, v),
				},
				course:  course,
				chapter: ch,
				video:   v,
			})
		}
	}
	if ex := course.Exercise; ex != nil {
		units = append(units, &unit{
			ref: events.ItemRef{
				ID:         uuid.NewString(),
				CourseSlug: course.Slug,
				Kind:       types.KindExercise,
				Title:      ex.Name,
				DestPath:   s.opts.Resolver.ExercisePath(course, *ex),
			},
			course:   course,
			exercise: ex,
		})
	}
	return units
}

// process runs one unit on a pool worker and records its outcome.
func (s *Scheduler) process(ctx context.Context, u *unit) error {
	var err error
	if ctx.Err() != nil {
		err = ctx.Err()
	} else if u.ref.Kind == types.KindExercise {
		err = s.fetchExercise(ctx, u)
	} else {
		err = s.fetchVideo(ctx, u)
	}
	if err == nil {
		return nil
	}

	ev := s.log.Error()
	if errors.Is(err, context.Canceled) {
		ev = s.log.Warn()
	}
	ev.Err(err).
		Str("course", u.ref.CourseSlug).
		Str("item", u.ref.Title).
		Str("path", u.ref.DestPath).
		Msg("item failed")

	s.report.addFailure(Failure{
		CourseSlug: u.ref.CourseSlug,
		Kind:       u.ref.Kind,
		Title:      u.ref.Title,
		Path:       u.ref.DestPath,
		Err:        err,
	})
	events.Send(ctx, s.opts.Events, events.ItemErrorMsg{ItemRef: u.ref, Err: err})
	return err
}

func uniqueSlugs(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}
