package blob

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/koustreak/StorRi/internal/conditions"
	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/transport"
)

// Range selects the byte window to download. Offset must be non-negative.
// Count nil means "from Offset to the end"; when set it must be positive.
type Range struct {
	Offset int64
	Count  *int64
}

// Count is a convenience for building a Range count in place.
func Count(n int64) *int64 { return &n }

// header renders the range for the wire. A zero Range means "whole blob"
// and sends no header.
func (r Range) header() string {
	if r.Offset == 0 && r.Count == nil {
		return ""
	}
	if r.Count == nil {
		return fmt.Sprintf("bytes=%d-", r.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+*r.Count-1)
}

func (r Range) validate() error {
	if r.Offset < 0 {
		return errs.New(errs.ErrKindInvalidInput, "blob.Download", "", "range offset must be non-negative")
	}
	if r.Count != nil && *r.Count <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "blob.Download", "", "range count must be positive when set")
	}
	return nil
}

// RetryOptions bounds the download engine's range resumption. These retries
// cover only failures while consuming the response body; failures before
// the first byte of an attempt surface immediately.
type RetryOptions struct {
	// MaxRetries is the resume budget for one Download call. 0 uses
	// DefaultMaxRetries; negative disables resumption.
	MaxRetries int

	// InitialBackoff is the first pause before a resume attempt.
	// 0 uses DefaultInitialBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth. 0 uses DefaultMaxBackoff.
	MaxBackoff time.Duration
}

const (
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
)

func (o RetryOptions) maxRetries() int {
	if o.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		return 0
	}
	return o.MaxRetries
}

func (o RetryOptions) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialBackoff
	if o.InitialBackoff > 0 {
		b.InitialInterval = o.InitialBackoff
	}
	b.MaxInterval = DefaultMaxBackoff
	if o.MaxBackoff > 0 {
		b.MaxInterval = o.MaxBackoff
	}
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not wall clock
	b.Reset()
	return b
}

// DownloadOptions controls one Download call.
type DownloadOptions struct {
	// Range selects a byte window. Zero value downloads the whole blob.
	Range Range

	// Conditions gate the download server-side. When IfMatch is unset the
	// engine pins the first response's ETag for resume requests, so a blob
	// overwritten mid-download fails instead of splicing versions.
	Conditions *conditions.RequestConditions

	// Retry bounds range resumption.
	Retry RetryOptions

	// VerifyContentMD5 requests the content hash and, when the service
	// returns one, verifies it against every byte written to the sink.
	// A mismatch is reported via errs.IsIntegrityMismatch.
	VerifyContentMD5 bool
}

// DownloadResult reports a completed download.
type DownloadResult struct {
	// Properties of the blob, taken from the first response.
	Properties Properties

	// BytesWritten is the total number of bytes delivered to the sink.
	BytesWritten int64

	// Resumes is how many ranged re-requests were needed.
	Resumes int
}

// downloadSession is the mutable state of one Download call. It exists for
// the duration of the call only and is single-owner.
type downloadSession struct {
	wanted       Range
	bytesWritten int64
	retriesUsed  int
	maxRetries   int
	etag         string // pinned from the first response
}

// remaining computes the resume range: original offset advanced by what the
// sink has acknowledged, count shrunk accordingly.
func (s *downloadSession) remaining() Range {
	r := Range{Offset: s.wanted.Offset + s.bytesWritten}
	if s.wanted.Count != nil {
		left := *s.wanted.Count - s.bytesWritten
		r.Count = &left
	}
	return r
}

// Download streams the blob (or the requested range) into dst. On an I/O
// failure while consuming the body it re-issues a ranged request from the
// last byte the sink acknowledged, up to the retry budget. dst is owned by
// the engine only for the duration of the call; on failure it holds a
// well-defined prefix of the requested range, and the returned error
// reports how many bytes were written.
func (b *BlobClient) Download(ctx context.Context, dst io.Writer, o *DownloadOptions) (*DownloadResult, error) {
	const op = "blob.Download"
	if o == nil {
		o = &DownloadOptions{}
	}
	if err := o.Range.validate(); err != nil {
		return nil, errs.WithOp(err, op, b.resource())
	}

	session := &downloadSession{
		wanted:     o.Range,
		maxRetries: o.Retry.maxRetries(),
	}
	bo := o.Retry.newBackOff()
	log := b.svc.log.With().Str("blob", b.resource()).Logger()

	var (
		hash  = md5.New()
		props Properties
	)

	for {
		first := session.bytesWritten == 0 && session.retriesUsed == 0

		resp, err := b.downloadAttempt(ctx, session, o, first)
		if err != nil {
			// Failures before the first byte of an attempt are not part of
			// the resume budget: surface them. Bytes already written in
			// earlier attempts are reported, and the inner kind is kept —
			// a 412 from the pinned ETag must stay a precondition failure,
			// not become an I/O failure.
			if session.bytesWritten > 0 {
				return nil, annotateResumeFailure(err, session.bytesWritten)
			}
			return nil, err
		}

		if first {
			props = propertiesFromHeaders(resp.Header)
			session.etag = resp.ETag()
		}

		n, copyErr := copyBody(ctx, dst, resp.Body, hash)
		session.bytesWritten += n
		resp.Body.Close()

		if copyErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, errs.New(errs.ErrKindTimeout, op, b.resource(),
				fmt.Sprintf("cancelled after %d bytes", session.bytesWritten))
		}
		if session.retriesUsed >= session.maxRetries {
			return nil, errs.New(errs.ErrKindIOFailed, op, b.resource(),
				fmt.Sprintf("stream failed after %d bytes, %d resume(s) exhausted: %v",
					session.bytesWritten, session.retriesUsed, copyErr))
		}
		session.retriesUsed++

		log.With().
			Int64("bytes_written", session.bytesWritten).
			Int("resume", session.retriesUsed).
			Err(copyErr).
			Logger().
			Debug("download interrupted, resuming")

		if err := sleepBackoff(ctx, bo); err != nil {
			return nil, errs.New(errs.ErrKindTimeout, op, b.resource(),
				fmt.Sprintf("cancelled after %d bytes", session.bytesWritten))
		}
	}

	if o.VerifyContentMD5 && props.ContentMD5 != "" {
		got := base64.StdEncoding.EncodeToString(hash.Sum(nil))
		if got != props.ContentMD5 {
			return nil, errs.New(errs.ErrKindIntegrityMismatch, op, b.resource(),
				fmt.Sprintf("content MD5 mismatch: got %s, want %s", got, props.ContentMD5))
		}
	}

	return &DownloadResult{
		Properties:   props,
		BytesWritten: session.bytesWritten,
		Resumes:      session.retriesUsed,
	}, nil
}

// downloadAttempt issues one ranged GET. Resume attempts carry the pinned
// ETag as If-Match unless the caller supplied their own.
func (b *BlobClient) downloadAttempt(ctx context.Context, s *downloadSession, o *DownloadOptions, first bool) (*transport.Response, error) {
	const op = "blob.Download"

	h := make(http.Header)
	o.Conditions.Apply(h)
	if !first && h.Get("If-Match") == "" && s.etag != "" {
		h.Set("If-Match", s.etag)
	}

	r := s.wanted
	if !first {
		r = s.remaining()
	}
	if v := r.header(); v != "" {
		h.Set("x-ms-range", v)
	}
	if first && o.VerifyContentMD5 {
		h.Set("x-ms-range-get-content-md5", "true")
	}

	resp, err := b.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    b.url(nil),
		Header: h,
	})
	if err != nil {
		return nil, errs.WithOp(err, op, b.resource())
	}
	if err := transport.CheckResponse(resp, op, b.resource()); err != nil {
		return nil, err
	}
	return resp, nil
}

// annotateResumeFailure extends a failed resume request's error with the
// byte count delivered so far, preserving its kind and cause chain.
func annotateResumeFailure(err error, bytesWritten int64) error {
	var e *errs.Error
	if errors.As(err, &e) {
		cp := *e
		cp.Message = fmt.Sprintf("resume request failed after %d bytes: %s", bytesWritten, cp.Message)
		return &cp
	}
	return errs.Wrap(errs.ErrKindIOFailed,
		fmt.Sprintf("resume request failed after %d bytes", bytesWritten), err)
}

// copyBody streams body into dst, teeing into hash, and returns the number
// of bytes the sink acknowledged. Both read and write failures count as
// stream failures; short writes are never attributed to the sink.
func copyBody(ctx context.Context, dst io.Writer, body io.Reader, hash io.Writer) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := body.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw > 0 {
				hash.Write(buf[:nw])
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func sleepBackoff(ctx context.Context, bo backoff.BackOff) error {
	t := time.NewTimer(bo.NextBackOff())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DownloadFileOptions controls DownloadFile.
type DownloadFileOptions struct {
	DownloadOptions

	// Overwrite allows replacing an existing file. When false an existing
	// path is an error and no network call is made.
	Overwrite bool
}

// DownloadFile materialises the blob (or range) at path. On failure the
// file is left holding the bytes written so far, so a caller may inspect
// or resume; it is not removed.
func (b *BlobClient) DownloadFile(ctx context.Context, path string, o *DownloadFileOptions) (*DownloadResult, error) {
	const op = "blob.DownloadFile"
	if o == nil {
		o = &DownloadFileOptions{}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !o.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errs.New(errs.ErrKindInvalidInput, op, path, "file exists and Overwrite is false")
		}
		return nil, errs.Wrap(errs.ErrKindIOFailed, "opening destination file", err)
	}

	res, dlErr := b.Download(ctx, f, &o.DownloadOptions)
	if closeErr := f.Close(); dlErr == nil && closeErr != nil {
		return nil, errs.Wrap(errs.ErrKindIOFailed, "closing destination file", closeErr)
	}
	if dlErr != nil {
		return nil, dlErr
	}
	return res, nil
}
