// Package api talks to the learning platform's JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/vfaronov/httpheader"

	"github.com/surge-downloader/coursedl/internal/catalog"
	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/session"
	"github.com/surge-downloader/coursedl/internal/subtitle"
)

const (
	detailedCoursesPath = "learning-api/detailedCourses"

	// maxRetryAfter caps how long a server may ask us to back off.
	maxRetryAfter = 30 * time.Second
)

// VideoAsset is the playable media of one video.
type VideoAsset struct {
	URL        string
	Captions   []subtitle.CaptionEvent
	DurationMs int64
}

// Client issues authenticated API requests over a session.
type Client struct {
	Session *session.Context
	Runtime *types.RuntimeConfig
	Logger  zerolog.Logger
}

// NewClient creates an API client for sc.
func NewClient(sc *session.Context, runtime *types.RuntimeConfig, logger zerolog.Logger) *Client {
	return &Client{Session: sc, Runtime: runtime, Logger: logger}
}

type courseResponse struct {
	Elements []catalog.RawCourse `json:"elements"`
}

// FetchCourse requests the detailed catalog of one course.
func (c *Client) FetchCourse(ctx context.Context, slug string) (*catalog.RawCourse, error) {
	q := url.Values{
		"fields":                    {"videos"},
		"addParagraphsToTranscript": {"true"},
		"courseSlug":                {slug},
		"q":                         {"slugs"},
	}

	var resp courseResponse
	if err := c.getJSON(ctx, detailedCoursesPath+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Elements) == 0 {
		return nil, fmt.Errorf("course %s: response has no elements", slug)
	}
	return &resp.Elements[0], nil
}

type videoResponse struct {
	Elements []struct {
		SelectedVideo *struct {
			URL *struct {
				ProgressiveURL string `json:"progressiveUrl"`
			} `json:"url"`
			Transcript *struct {
				Lines []struct {
					TranscriptStartAt int64  `json:"transcriptStartAt"`
					Caption           string `json:"caption"`
				} `json:"lines"`
			} `json:"transcript"`
			DurationInSeconds float64 `json:"durationInSeconds"`
		} `json:"selectedVideo"`
	} `json:"elements"`
}

// FetchVideo requests the playable asset of one video, retrying up to
// Runtime.GetMaxFetchRetries attempts. Exhaustion returns a *FetchError.
func (c *Client) FetchVideo(ctx context.Context, courseSlug, videoSlug string) (*VideoAsset, error) {
	attempts := c.Runtime.GetMaxFetchRetries()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		asset, err := c.fetchVideoOnce(ctx, courseSlug, videoSlug)
		if err == nil {
			return asset, nil
		}
		lastErr = err

		if errors.Is(err, ErrNoMediaURL) || ctx.Err() != nil {
			return nil, &FetchError{CourseSlug: courseSlug, VideoSlug: videoSlug, Attempts: attempt, Err: err}
		}

		c.Logger.Debug().
			Err(err).
			Str("course", courseSlug).
			Str("video", videoSlug).
			Int("attempt", attempt).
			Msg("metadata request failed")

		if attempt < attempts {
			if werr := sleepCtx(ctx, c.backoff(attempt, err)); werr != nil {
				return nil, &FetchError{CourseSlug: courseSlug, VideoSlug: videoSlug, Attempts: attempt, Err: werr}
			}
		}
	}

	return nil, &FetchError{CourseSlug: courseSlug, VideoSlug: videoSlug, Attempts: attempts, Err: lastErr}
}

func (c *Client) fetchVideoOnce(ctx context.Context, courseSlug, videoSlug string) (*VideoAsset, error) {
	q := url.Values{
		"fields":                    {"selectedVideo"},
		"addParagraphsToTranscript": {"false"},
		"courseSlug":                {courseSlug},
		"q":                         {"slugs"},
		"resolution":                {c.Runtime.GetResolution()},
		"videoSlug":                 {videoSlug},
	}

	var resp videoResponse
	if err := c.getJSON(ctx, detailedCoursesPath+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Elements) == 0 || resp.Elements[0].SelectedVideo == nil {
		return nil, errors.New("response has no selected video")
	}

	sv := resp.Elements[0].SelectedVideo
	if sv.URL == nil || sv.URL.ProgressiveURL == "" {
		return nil, ErrNoMediaURL
	}

	asset := &VideoAsset{
		URL:        sv.URL.ProgressiveURL,
		DurationMs: int64(sv.DurationInSeconds * 1000),
	}
	if sv.Transcript != nil {
		asset.Captions = make([]subtitle.CaptionEvent, 0, len(sv.Transcript.Lines))
		for _, l := range sv.Transcript.Lines {
			asset.Captions = append(asset.Captions, subtitle.CaptionEvent{StartMs: l.TranscriptStartAt, Text: l.Caption})
		}
	}
	return asset, nil
}

// backoff waits RetryBaseDelay*attempt, or until the server's Retry-After.
func (c *Client) backoff(attempt int, err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && !se.RetryAfter.IsZero() {
		d := time.Until(se.RetryAfter)
		if d < 0 {
			d = 0
		}
		return min(d, maxRetryAfter)
	}
	return c.Runtime.GetRetryBaseDelay() * time.Duration(attempt)
}

func (c *Client) getJSON(ctx context.Context, ref string, v any) (err error) {
	req, err := c.Session.NewRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return fmt.Errorf("preparing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	rsp, err := c.Session.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, rsp.Body.Close())
	}()

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(rsp.Body, types.MaxResponseBody))
		return &StatusError{
			URL:        req.URL.Path,
			StatusCode: rsp.StatusCode,
			RetryAfter: httpheader.RetryAfter(rsp.Header),
		}
	}

	if err := json.NewDecoder(io.LimitReader(rsp.Body, types.MaxResponseBody)).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", req.URL.Path, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
