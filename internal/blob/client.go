// Package blob implements the blob half of the StorRi client: container
// management, segmented (marker-paginated) listing, uploads, and the
// resumable ranged download engine.
//
// Usage:
//
//	client, err := blob.NewClient("https://acct.example.net", nil)
//	if err != nil { ... }
//
//	pager := client.Container("photos").ListBlobs(&blob.ListBlobsOptions{Prefix: "2025/"})
//	for pager.Next(ctx) {
//	    fmt.Println(pager.Item().Name)
//	}
//	if err := pager.Err(); err != nil { ... }
package blob

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/logger"
	"github.com/koustreak/StorRi/internal/paging"
	"github.com/koustreak/StorRi/internal/transport"
	"github.com/koustreak/StorRi/internal/wire"
)

// ClientOptions configures a blob service client.
type ClientOptions struct {
	// Transport overrides the request pipeline. nil uses the default
	// net/http transport with no credential.
	Transport transport.Transport

	// Logger receives structured client logs. nil disables logging.
	Logger *logger.Logger
}

// Client is the service-level blob client. It is stateless and safe for
// concurrent use; pagers and download calls it produces are single-owner.
type Client struct {
	endpoint *url.URL
	tr       transport.Transport
	log      *logger.Logger
}

// NewClient creates a service client for the storage endpoint, e.g.
// "https://account.blob.example.net".
func NewClient(endpoint string, opts *ClientOptions) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "blob.NewClient", endpoint, "endpoint must be an absolute URL")
	}
	if opts == nil {
		opts = &ClientOptions{}
	}
	tr := opts.Transport
	if tr == nil {
		tr = transport.NewClient(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{endpoint: u, tr: tr, log: log}, nil
}

// url builds a resource URL below the endpoint. Slashes inside segments
// are path separators on the wire (blob keys address virtual directories),
// so segments are joined verbatim rather than percent-encoded.
func (c *Client) url(segments []string, query url.Values) *url.URL {
	u := *c.endpoint
	p := strings.TrimSuffix(u.Path, "/")
	for _, s := range segments {
		p += "/" + s
	}
	u.Path = p
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return &u
}

// Container returns a client scoped to one container. No network call.
func (c *Client) Container(name string) *ContainerClient {
	return &ContainerClient{svc: c, name: name}
}

// CreateContainer creates a container. A container that already exists is
// reported via errs.IsAlreadyExists.
func (c *Client) CreateContainer(ctx context.Context, name string) error {
	q := url.Values{"restype": {"container"}}
	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPut,
		URL:    c.url([]string{name}, q),
	})
	if err != nil {
		return errs.WithOp(err, "blob.CreateContainer", name)
	}
	if err := transport.CheckResponse(resp, "blob.CreateContainer", name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	c.log.With().Str("container", name).Logger().Debug("container created")
	return nil
}

// DeleteContainer deletes a container and all blobs in it.
func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	q := url.Values{"restype": {"container"}}
	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		URL:    c.url([]string{name}, q),
	})
	if err != nil {
		return errs.WithOp(err, "blob.DeleteContainer", name)
	}
	if err := transport.CheckResponse(resp, "blob.DeleteContainer", name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// ListContainers returns a lazy pager over containers. Each advance past
// the current page performs one list round trip.
func (c *Client) ListContainers(o *ListContainersOptions) *paging.Pager[ContainerInfo] {
	if o == nil {
		o = &ListContainersOptions{}
	}
	fetch := func(ctx context.Context, marker string) (paging.Page[ContainerInfo], error) {
		q := url.Values{"comp": {"list"}}
		if o.Prefix != "" {
			q.Set("prefix", o.Prefix)
		}
		if o.MaxResults > 0 {
			q.Set("maxresults", strconv.Itoa(o.MaxResults))
		}
		if marker != "" {
			q.Set("marker", marker)
		}

		resp, err := c.tr.Do(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    c.url(nil, q),
		})
		if err != nil {
			return paging.Page[ContainerInfo]{}, errs.WithOp(err, "blob.ListContainers", "")
		}
		if err := transport.CheckResponse(resp, "blob.ListContainers", ""); err != nil {
			return paging.Page[ContainerInfo]{}, err
		}
		defer resp.Body.Close()

		list, err := wire.DecodeContainerList(resp.Body)
		if err != nil {
			return paging.Page[ContainerInfo]{}, errs.WithOp(err, "blob.ListContainers", "")
		}

		items := make([]ContainerInfo, len(list.Containers))
		for i, it := range list.Containers {
			items[i] = ContainerInfo{
				Name:         it.Name,
				ETag:         it.Properties.ETag,
				LastModified: it.Properties.LastModified.Time,
			}
		}
		return paging.Page[ContainerInfo]{Items: items, NextMarker: list.NextMarker}, nil
	}
	return paging.New(fetch, o.Marker)
}

// ContainerClient operates on one container.
type ContainerClient struct {
	svc  *Client
	name string
}

// Name returns the container name.
func (c *ContainerClient) Name() string { return c.name }

// Blob returns a client scoped to one blob. No network call.
func (c *ContainerClient) Blob(name string) *BlobClient {
	return &BlobClient{svc: c.svc, container: c.name, name: name}
}

// ListBlobs returns a lazy pager over a flat listing: every blob under the
// prefix, no virtual directory grouping, in lexicographic order.
func (c *ContainerClient) ListBlobs(o *ListBlobsOptions) *paging.Pager[BlobInfo] {
	return c.list(o, "")
}

// ListBlobsHierarchy returns a lazy pager over a hierarchical listing:
// keys containing the delimiter past the prefix are folded into a single
// prefix entry (IsPrefix true). Entries are in lexicographic order.
func (c *ContainerClient) ListBlobsHierarchy(delimiter string, o *ListBlobsOptions) *paging.Pager[BlobInfo] {
	return c.list(o, delimiter)
}

func (c *ContainerClient) list(o *ListBlobsOptions, delimiter string) *paging.Pager[BlobInfo] {
	if o == nil {
		o = &ListBlobsOptions{}
	}
	op := "blob.ListBlobs"
	fetch := func(ctx context.Context, marker string) (paging.Page[BlobInfo], error) {
		q := url.Values{"restype": {"container"}, "comp": {"list"}}
		if o.Prefix != "" {
			q.Set("prefix", o.Prefix)
		}
		if o.MaxResults > 0 {
			q.Set("maxresults", strconv.Itoa(o.MaxResults))
		}
		if delimiter != "" {
			q.Set("delimiter", delimiter)
		}
		if marker != "" {
			q.Set("marker", marker)
		}

		resp, err := c.svc.tr.Do(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    c.svc.url([]string{c.name}, q),
		})
		if err != nil {
			return paging.Page[BlobInfo]{}, errs.WithOp(err, op, c.name)
		}
		if err := transport.CheckResponse(resp, op, c.name); err != nil {
			return paging.Page[BlobInfo]{}, err
		}
		defer resp.Body.Close()

		list, err := wire.DecodeBlobList(resp.Body)
		if err != nil {
			return paging.Page[BlobInfo]{}, errs.WithOp(err, op, c.name)
		}
		return paging.Page[BlobInfo]{Items: mergeListing(list), NextMarker: list.NextMarker}, nil
	}
	return paging.New(fetch, o.Marker)
}

// mergeListing restores the service's lexicographic order across blob and
// prefix entries, which the XML decoding split into two slices.
func mergeListing(list *wire.BlobList) []BlobInfo {
	items := make([]BlobInfo, 0, len(list.Blobs)+len(list.Prefixes))
	for _, b := range list.Blobs {
		items = append(items, BlobInfo{
			Name:         b.Name,
			Size:         b.Properties.ContentLength,
			ContentType:  b.Properties.ContentType,
			ETag:         b.Properties.ETag,
			ContentMD5:   b.Properties.ContentMD5,
			LastModified: b.Properties.LastModified.Time,
		})
	}
	for _, p := range list.Prefixes {
		items = append(items, BlobInfo{Name: p.Name, IsPrefix: true})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// drainAndClose finishes a response whose body content is not needed.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
