package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/StorRi/internal/blob"
	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/transport"
)

// fastRetry keeps resume pauses out of the test runtime.
var fastRetry = blob.RetryOptions{
	MaxRetries:     5,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

func seedBlob(t *testing.T, client *blob.Client, size int) ([]byte, *blob.BlobClient) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, client.CreateContainer(ctx, "data"))

	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	b := client.Container("data").Blob("payload.bin")
	_, err := b.Upload(ctx, bytes.NewReader(content), int64(size), nil)
	require.NoError(t, err)
	return content, b
}

func TestDownloadRange(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	content, b := seedBlob(t, client, 8192)

	var sink bytes.Buffer
	res, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Range: blob.Range{Offset: 1000, Count: blob.Count(4000)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(4000), res.BytesWritten)
	require.Equal(t, content[1000:5000], sink.Bytes())

	// Properties carry the total blob size even for a partial response.
	require.Equal(t, int64(8192), res.Properties.ContentLength)
}

func TestDownloadOpenEndedRange(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	content, b := seedBlob(t, client, 4096)

	var sink bytes.Buffer
	res, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Range: blob.Range{Offset: 4000},
	})
	require.NoError(t, err)
	require.Equal(t, int64(96), res.BytesWritten)
	require.Equal(t, content[4000:], sink.Bytes())
}

func TestDownloadRejectsInvalidRange(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	_, b := seedBlob(t, client, 64)

	var sink bytes.Buffer
	_, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Range: blob.Range{Offset: 0, Count: blob.Count(0)},
	})
	require.Error(t, err)
	require.True(t, errs.IsInvalidInput(err))
	require.Zero(t, sink.Len())

	_, err = b.Download(ctx, &sink, &blob.DownloadOptions{
		Range: blob.Range{Offset: -1},
	})
	require.True(t, errs.IsInvalidInput(err))
}

func TestDownloadResumesAfterStreamFailure(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	content, b := seedBlob(t, client, 8192)

	// The first attempt dies 1500 bytes into the requested range; the
	// engine must re-request from byte 2500 and deliver the window exactly
	// once, with no duplicated or missing bytes.
	srv.TruncateDownloads(1500, 1)

	var sink bytes.Buffer
	res, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Range: blob.Range{Offset: 1000, Count: blob.Count(4000)},
		Retry: fastRetry,
	})
	require.NoError(t, err)
	require.Equal(t, int64(4000), res.BytesWritten)
	require.Equal(t, 1, res.Resumes)
	require.Equal(t, content[1000:5000], sink.Bytes())
}

func TestDownloadResumeVerifiesWholeContentMD5(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	content, b := seedBlob(t, client, 8192)

	// Two interruptions across a whole-blob download: the hash must cover
	// every byte written across all attempts and still match.
	srv.TruncateDownloads(2000, 2)

	var sink bytes.Buffer
	res, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Retry:            fastRetry,
		VerifyContentMD5: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Resumes)
	require.Equal(t, content, sink.Bytes())
}

func TestDownloadRetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	_, b := seedBlob(t, client, 8192)

	srv.TruncateDownloads(100, 100)

	var sink bytes.Buffer
	_, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Retry: blob.RetryOptions{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	})
	require.Error(t, err)
	require.True(t, errs.IsIOFailed(err))

	// Each attempt delivered its 100 bytes before dying; the sink holds a
	// clean prefix of the blob.
	require.Equal(t, 300, sink.Len())
}

func TestDownloadResumptionDisabled(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	_, b := seedBlob(t, client, 8192)

	srv.TruncateDownloads(100, 1)

	var sink bytes.Buffer
	_, err := b.Download(ctx, &sink, &blob.DownloadOptions{
		Retry: blob.RetryOptions{MaxRetries: -1},
	})
	require.Error(t, err)
	require.True(t, errs.IsIOFailed(err))
}

// interceptTransport runs a hook before the n-th GET goes out, letting a
// test mutate server state between download attempts.
type interceptTransport struct {
	tr    transport.Transport
	onGet int
	hook  func()
	gets  int
	fired bool
}

func (it *interceptTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Method == http.MethodGet {
		it.gets++
		if it.gets == it.onGet && !it.fired {
			it.fired = true
			it.hook()
		}
	}
	return it.tr.Do(ctx, req)
}

func TestDownloadResumeDetectsOverwrite(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	_, b := seedBlob(t, client, 8192)

	// Replace the blob's content just before the resume request. The
	// resume carries the first response's ETag as If-Match, so the engine
	// must surface a precondition failure rather than splice versions or
	// report a generic I/O failure.
	it := &interceptTransport{
		tr:    transport.NewClient(nil),
		onGet: 2,
		hook: func() {
			repl := bytes.Repeat([]byte{0xAB}, 8192)
			_, err := b.Upload(ctx, bytes.NewReader(repl), int64(len(repl)), nil)
			require.NoError(t, err)
		},
	}
	fenced, err := blob.NewClient(srv.BlobEndpoint(), &blob.ClientOptions{Transport: it})
	require.NoError(t, err)

	srv.TruncateDownloads(1000, 1)

	var sink bytes.Buffer
	_, err = fenced.Container("data").Blob("payload.bin").Download(ctx, &sink, &blob.DownloadOptions{
		Retry: fastRetry,
	})
	require.Error(t, err)
	require.True(t, errs.IsPreconditionFailed(err))
	require.False(t, errs.IsIOFailed(err))
	require.Contains(t, err.Error(), "resume request failed after")
}

func TestDownloadMD5Mismatch(t *testing.T) {
	ctx := context.Background()
	client, srv := newBlobClient(t)
	_, b := seedBlob(t, client, 1024)

	srv.CorruptContentMD5("data", "payload.bin")

	var sink bytes.Buffer
	_, err := b.Download(ctx, &sink, &blob.DownloadOptions{VerifyContentMD5: true})
	require.Error(t, err)
	require.True(t, errs.IsIntegrityMismatch(err))
}

// flakyWriter fails its first write after accepting a prefix, then behaves.
type flakyWriter struct {
	buf    bytes.Buffer
	failed bool
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		n := len(p) / 2
		w.buf.Write(p[:n])
		return n, errors.New("sink hiccup")
	}
	return w.buf.Write(p)
}

func TestDownloadResumesAfterSinkFailure(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	content, b := seedBlob(t, client, 8192)

	sink := &flakyWriter{}
	res, err := b.Download(ctx, sink, &blob.DownloadOptions{Retry: fastRetry})
	require.NoError(t, err)
	require.Equal(t, 1, res.Resumes)
	require.Equal(t, int64(len(content)), res.BytesWritten)
	require.Equal(t, content, sink.buf.Bytes())
}

func TestDownloadFile(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	content, b := seedBlob(t, client, 2048)

	path := filepath.Join(t.TempDir(), "out.bin")
	res, err := b.DownloadFile(ctx, path, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2048), res.BytesWritten)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)

	// Existing file is refused without Overwrite, accepted with it.
	_, err = b.DownloadFile(ctx, path, nil)
	require.Error(t, err)
	require.True(t, errs.IsInvalidInput(err))

	_, err = b.DownloadFile(ctx, path, &blob.DownloadFileOptions{Overwrite: true})
	require.NoError(t, err)
}

func TestDownloadNotFound(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient(t)
	require.NoError(t, client.CreateContainer(ctx, "data"))

	_, err := client.Container("data").Blob("missing").Download(ctx, io.Discard, nil)
	require.Error(t, err)
	require.True(t, errs.IsNotFound(err))
}
