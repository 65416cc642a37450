package single

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/utils"
)

// Downloader streams one URL to one file through a working copy.
// Partial transfers cannot be resumed; an interrupted file is discarded.
type Downloader struct {
	Client  *http.Client
	Header  http.Header // Session headers copied onto every request
	Runtime *types.RuntimeConfig
	Logger  zerolog.Logger
}

// NewDownloader creates a downloader sharing client and header.
func NewDownloader(client *http.Client, header http.Header, runtime *types.RuntimeConfig, logger zerolog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		Client:  client,
		Header:  header,
		Runtime: runtime,
		Logger:  logger,
	}
}

// Download writes the body of rawurl to destPath and returns the bytes written.
// On failure neither the working file nor destPath is left behind.
func (d *Downloader) Download(ctx context.Context, rawurl, destPath string) (written int64, err error) {
	workingPath := destPath + types.IncompleteSuffix

	// Track whether we completed successfully for cleanup
	success := false
	defer func() {
		if !success {
			_ = os.Remove(workingPath)
			_ = os.Remove(destPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return 0, err
	}
	for key, vals := range d.Header {
		req.Header[key] = append([]string(nil), vals...)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.Logger.Debug().Err(cerr).Msg("closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	outFile, err := os.Create(workingPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = outFile.Close()
	}()

	start := time.Now()
	buf := make([]byte, d.Runtime.GetWorkerBufferSize())

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := outFile.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if writeErr != nil {
				return written, fmt.Errorf("write error: %w", writeErr)
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return written, fmt.Errorf("read error: %w", readErr)
		}
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return written, fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}

	if err := outFile.Sync(); err != nil {
		return written, fmt.Errorf("sync error: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return written, fmt.Errorf("close error: %w", err)
	}

	if err := os.Rename(workingPath, destPath); err != nil {
		// Fallback: copy if rename fails (cross-device)
		if copyErr := copyFile(workingPath, destPath); copyErr != nil {
			return written, fmt.Errorf("failed to finalize file: %w", copyErr)
		}
		_ = os.Remove(workingPath)
	}

	success = true

	elapsed := time.Since(start)
	speed := float64(written) / max(elapsed.Seconds(), 0.001)
	d.Logger.Debug().
		Str("path", destPath).
		Dur("elapsed", elapsed.Round(time.Millisecond)).
		Str("speed", utils.ConvertBytesToHumanReadable(int64(speed))+"/s").
		Msg("download finished")

	return written, nil
}

// copyFile copies a file from src to dst (fallback when rename fails)
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Sync()
}
