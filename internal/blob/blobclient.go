package blob

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/transport"
	"github.com/koustreak/StorRi/internal/wire"
)

// BlobClient operates on one blob.
type BlobClient struct {
	svc       *Client
	container string
	name      string
}

// Name returns the blob key within its container.
func (b *BlobClient) Name() string { return b.name }

func (b *BlobClient) resource() string {
	return b.container + "/" + b.name
}

func (b *BlobClient) url(query url.Values) *url.URL {
	return b.svc.url([]string{b.container, b.name}, query)
}

// Upload writes a block blob from r. size must be the exact byte length of
// r's content. An existing blob with the same name is overwritten unless
// o.Conditions forbid it.
func (b *BlobClient) Upload(ctx context.Context, r io.Reader, size int64, o *UploadOptions) (*UploadResult, error) {
	const op = "blob.Upload"
	if o == nil {
		o = &UploadOptions{}
	}
	if size < 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, op, b.resource(), "size must be non-negative")
	}

	h := make(http.Header)
	h.Set("x-ms-blob-type", "BlockBlob")
	if o.ContentType != "" {
		h.Set("Content-Type", o.ContentType)
	}
	wire.SetMetadataHeaders(h, o.Metadata)
	o.Conditions.Apply(h)

	resp, err := b.svc.tr.Do(ctx, &transport.Request{
		Method:        http.MethodPut,
		URL:           b.url(nil),
		Header:        h,
		Body:          r,
		ContentLength: size,
	})
	if err != nil {
		return nil, errs.WithOp(err, op, b.resource())
	}
	if err := transport.CheckResponse(resp, op, b.resource()); err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	b.svc.log.With().
		Str("blob", b.resource()).
		Int64("size", size).
		Logger().
		Debug("blob uploaded")

	return &UploadResult{
		ETag:         resp.ETag(),
		LastModified: lastModified(resp.Header),
	}, nil
}

// Delete removes the blob.
func (b *BlobClient) Delete(ctx context.Context, o *AccessOptions) error {
	const op = "blob.Delete"
	h := make(http.Header)
	if o != nil {
		o.Conditions.Apply(h)
	}

	resp, err := b.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		URL:    b.url(nil),
		Header: h,
	})
	if err != nil {
		return errs.WithOp(err, op, b.resource())
	}
	if err := transport.CheckResponse(resp, op, b.resource()); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// GetProperties fetches the blob's system properties and user metadata
// without downloading content.
func (b *BlobClient) GetProperties(ctx context.Context, o *AccessOptions) (*Properties, error) {
	const op = "blob.GetProperties"
	h := make(http.Header)
	if o != nil {
		o.Conditions.Apply(h)
	}

	resp, err := b.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodHead,
		URL:    b.url(nil),
		Header: h,
	})
	if err != nil {
		return nil, errs.WithOp(err, op, b.resource())
	}
	if err := transport.CheckResponse(resp, op, b.resource()); err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	props := propertiesFromHeaders(resp.Header)
	return &props, nil
}

// SetMetadata replaces the blob's user metadata wholesale.
func (b *BlobClient) SetMetadata(ctx context.Context, metadata map[string]string, o *AccessOptions) error {
	const op = "blob.SetMetadata"
	h := make(http.Header)
	wire.SetMetadataHeaders(h, metadata)
	if o != nil {
		o.Conditions.Apply(h)
	}

	resp, err := b.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodPut,
		URL:    b.url(url.Values{"comp": {"metadata"}}),
		Header: h,
	})
	if err != nil {
		return errs.WithOp(err, op, b.resource())
	}
	if err := transport.CheckResponse(resp, op, b.resource()); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// --- header mapping ---

func lastModified(h http.Header) time.Time {
	if s := h.Get("Last-Modified"); s != "" {
		if parsed, err := http.ParseTime(s); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// propertiesFromHeaders builds Properties from a HEAD or GET response.
// ContentLength is the total blob size: for a 206 it comes from the
// Content-Range total, not the range length.
func propertiesFromHeaders(h http.Header) Properties {
	p := Properties{
		ETag:         h.Get("ETag"),
		ContentType:  h.Get("Content-Type"),
		ContentMD5:   h.Get("Content-MD5"),
		LastModified: lastModified(h),
		Metadata:     wire.MetadataFromHeaders(h),
	}

	if cr := h.Get("Content-Range"); cr != "" {
		// "bytes <start>-<end>/<total>"
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if total, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				p.ContentLength = total
				return p
			}
		}
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			p.ContentLength = n
		}
	}
	return p
}
