// Package transport is the request pipeline shared by the blob and queue
// clients. It owns exactly one concern: turning a Request into a Response
// over HTTP, with per-round-trip timeout, cancellation, request identity,
// and mapping of service error codes into the errs taxonomy.
//
// The transport never retries. Whole-operation retry policy belongs to the
// caller; the only data-aware retry in StorRi is the blob download engine's
// range resumption.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/logger"
)

// APIVersion is the service protocol version sent with every request.
const APIVersion = "2023-11-03"

// Request is one storage service call. Body may be nil for bodiless
// methods. Header may be nil; the pipeline allocates it on demand.
type Request struct {
	Method        string
	URL           *url.URL
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// Response is the raw service answer. Body is never nil on success and
// must be closed by the consumer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ETag returns the entity tag of the response, if any.
func (r *Response) ETag() string {
	return r.Header.Get("ETag")
}

// Transport performs one cancellable round trip. Implementations must not
// retry and must honour ctx cancellation mid-body (closing the body aborts
// the read without corrupting caller state beyond bytes already consumed).
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Options configures the default HTTP transport.
type Options struct {
	// TryTimeout bounds a single round trip including body consumption.
	// Zero means no per-try deadline; the caller's ctx still applies.
	TryTimeout time.Duration

	// HTTPClient overrides the underlying client. nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Credential injects authorization onto each request. nil means anonymous.
	Credential Credential

	// Logger receives debug-level round-trip logs. nil disables logging.
	Logger *logger.Logger
}

// Client is the default Transport over net/http.
type Client struct {
	httpc *http.Client
	cred  Credential
	try   time.Duration
	log   *logger.Logger
}

// NewClient creates a Client from opts. A nil opts uses defaults.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	cred := opts.Credential
	if cred == nil {
		cred = AnonymousCredential{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{httpc: httpc, cred: cred, try: opts.TryTimeout, log: log}
}

// Do performs one round trip. The per-try deadline covers header receipt
// and body consumption: the returned Body carries the deadline's cancel,
// released when the body is closed.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	cancel := context.CancelFunc(func() {})
	if c.try > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.try)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelReadCloser{rc: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if err := c.cred.Apply(req); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "applying credential", err)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "building request", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if req.ContentLength > 0 {
		hr.ContentLength = req.ContentLength
	}

	reqID := uuid.NewString()
	hr.Header.Set("x-ms-client-request-id", reqID)
	hr.Header.Set("x-ms-version", APIVersion)
	hr.Header.Set("x-ms-date", time.Now().UTC().Format(http.TimeFormat))

	start := time.Now()
	resp, err := c.httpc.Do(hr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "round trip cancelled", err)
		}
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "round trip failed", err)
	}

	c.log.With().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Logger().
		Debug("round trip")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// cancelReadCloser ties a context cancel to the response body lifetime.
type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}

// --- Response checking ---

// Service error codes carried in the x-ms-error-code header.
const (
	codePopReceiptMismatch = "PopReceiptMismatch"
	codeLeaseIDMismatch    = "LeaseIdMismatchWithBlobOperation"
	codeLeaseLost          = "LeaseLost"
)

// CheckResponse maps a non-2xx response to an *errs.Error and consumes the
// body. On 2xx it returns nil and leaves the body untouched.
func CheckResponse(resp *Response, op, resource string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// The body is only the error payload here; drain it so the connection
	// can be reused, and close the per-try timer with it.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	code := resp.Header.Get("x-ms-error-code")
	kind := kindForStatus(resp.StatusCode, code)

	msg := "service returned " + strconv.Itoa(resp.StatusCode)
	if code != "" {
		msg += " (" + code + ")"
	}
	return errs.New(kind, op, resource, msg)
}

func kindForStatus(status int, code string) errs.ErrKind {
	switch status {
	case http.StatusNotFound:
		return errs.ErrKindNotFound
	case http.StatusPreconditionFailed, http.StatusNotModified:
		return errs.ErrKindPreconditionFailed
	case http.StatusConflict:
		switch code {
		case codeLeaseIDMismatch, codeLeaseLost:
			return errs.ErrKindPreconditionFailed
		}
		return errs.ErrKindAlreadyExists
	case http.StatusBadRequest:
		if code == codePopReceiptMismatch {
			return errs.ErrKindReceiptMismatch
		}
		return errs.ErrKindInvalidInput
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.ErrKindPermissionDenied
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return errs.ErrKindThrottled
	default:
		return errs.ErrKindUnknown
	}
}
