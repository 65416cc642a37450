package single

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/testutil"
)

func newTestDownloader(header http.Header) *Downloader {
	return NewDownloader(&http.Client{Timeout: 30 * time.Second}, header, &types.RuntimeConfig{}, zerolog.Nop())
}

func TestCopyFile(t *testing.T) {
	tmpDir := t.TempDir()

	srcPath, err := testutil.CreateTestFile(tmpDir, "src.bin", 128*types.KB, true)
	require.NoError(t, err)
	dstPath := filepath.Join(tmpDir, "dst.bin")

	require.NoError(t, copyFile(srcPath, dstPath))

	match, err := testutil.CompareFiles(srcPath, dstPath)
	require.NoError(t, err)
	assert.True(t, match, "File contents don't match")
}

func TestCopyFile_SourceNotExists(t *testing.T) {
	tmpDir := t.TempDir()
	err := copyFile(filepath.Join(tmpDir, "nonexistent.bin"), filepath.Join(tmpDir, "dst.bin"))
	assert.Error(t, err)
}

func TestCopyFile_InvalidDestination(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath, err := testutil.CreateTestFile(tmpDir, "src.bin", 100, false)
	require.NoError(t, err)

	err = copyFile(srcPath, filepath.Join(tmpDir, "nonexistent", "subdir", "dst.bin"))
	assert.Error(t, err)
}

func TestCopyFile_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath, err := testutil.CreateTestFile(tmpDir, "empty.bin", 0, false)
	require.NoError(t, err)
	dstPath := filepath.Join(tmpDir, "empty_copy.bin")

	require.NoError(t, copyFile(srcPath, dstPath))
	assert.NoError(t, testutil.VerifyFileSize(dstPath, 0))
}

func TestDownloader_Success(t *testing.T) {
	fileSize := int64(512 * types.KB)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithRandomData(true),
	)

	destPath := filepath.Join(t.TempDir(), "01 - Welcome.mp4")
	written, err := newTestDownloader(nil).Download(context.Background(), server.URL(), destPath)
	require.NoError(t, err)

	assert.Equal(t, fileSize, written)
	require.NoError(t, testutil.VerifyFileSize(destPath, fileSize))
	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, server.Data(), data)
	assert.False(t, testutil.FileExists(destPath+types.IncompleteSuffix), "working file should be renamed away")
}

func TestDownloader_SendsSessionHeaders(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(1024))

	header := http.Header{}
	header.Set("Csrf-Token", "ajax:99")
	header.Set("x-li-identity", "hash")
	header.Set("User-Agent", "coursedl-test")

	_, err := newTestDownloader(header).Download(context.Background(), server.URL(), filepath.Join(t.TempDir(), "f.mp4"))
	require.NoError(t, err)

	got := server.LastHeaders()
	assert.Equal(t, "ajax:99", got.Get("Csrf-Token"))
	assert.Equal(t, "hash", got.Get("x-li-identity"))
	assert.Equal(t, "coursedl-test", got.Get("User-Agent"))
}

func TestDownloader_DefaultUserAgent(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(16))

	_, err := newTestDownloader(nil).Download(context.Background(), server.URL(), filepath.Join(t.TempDir(), "f.mp4"))
	require.NoError(t, err)
	assert.Equal(t, (&types.RuntimeConfig{}).GetUserAgent(), server.LastHeaders().Get("User-Agent"))
}

func TestDownloader_FailAfterBytes_LeavesNoFile(t *testing.T) {
	fileSize := int64(256 * types.KB)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithFailAfterBytes(50*types.KB),
	)

	dir := t.TempDir()
	destPath := filepath.Join(dir, "failafter.mp4")

	written, err := newTestDownloader(nil).Download(context.Background(), server.URL(), destPath)
	require.Error(t, err)
	assert.Less(t, written, fileSize)

	assert.False(t, testutil.FileExists(destPath), "no file may remain at the destination")
	assert.False(t, testutil.FileExists(destPath+types.IncompleteSuffix), "working file must be removed")
	assert.GreaterOrEqual(t, server.Stats().BytesServed, int64(50*types.KB))
}

func TestDownloader_ServerError(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithStatusCode(http.StatusInternalServerError))

	destPath := filepath.Join(t.TempDir(), "error.mp4")
	_, err := newTestDownloader(nil).Download(context.Background(), server.URL(), destPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.False(t, testutil.FileExists(destPath))
}

func TestDownloader_Cancellation(t *testing.T) {
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(1*types.MB),
		testutil.WithLatency(500*time.Millisecond),
	)

	destPath := filepath.Join(t.TempDir(), "cancel.mp4")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestDownloader(nil).Download(ctx, server.URL(), destPath)
	require.Error(t, err)
	assert.False(t, testutil.FileExists(destPath))
	assert.False(t, testutil.FileExists(destPath+types.IncompleteSuffix))
}

func TestDownloader_ConnectionRefused(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "refused.mp4")
	_, err := newTestDownloader(nil).Download(context.Background(), testutil.ClosedURL(t)+"/x.mp4", destPath)
	require.Error(t, err)
	assert.False(t, testutil.FileExists(destPath))
}

func TestDownloader_MissingDirectory(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(1024))

	destPath := filepath.Join(t.TempDir(), "no-such-dir", "f.mp4")
	_, err := newTestDownloader(nil).Download(context.Background(), server.URL(), destPath)
	assert.Error(t, err)
}

func TestDownloader_SmallBuffer(t *testing.T) {
	fileSize := int64(10*types.KB + 7)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithRandomData(true),
	)

	d := NewDownloader(nil, nil, &types.RuntimeConfig{WorkerBufferSize: 1024}, zerolog.Nop())
	destPath := filepath.Join(t.TempDir(), "small.bin")
	written, err := d.Download(context.Background(), server.URL(), destPath)
	require.NoError(t, err)
	assert.Equal(t, fileSize, written)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, server.Data(), data)
}
