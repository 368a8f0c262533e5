// Package queue implements the queue half of the StorRi client: queue
// management and at-least-once message delivery with pop-receipt fencing.
//
// Every successful receive or update of a message issues a fresh opaque
// pop receipt and invalidates the previous one. Updating or deleting with
// a stale receipt fails with errs.IsReceiptMismatch — never a silent no-op
// — so competing consumers can detect that a message was re-delivered.
//
// Usage:
//
//	client, err := queue.NewClient("https://acct.example.net", nil)
//	q := client.Queue("tasks")
//
//	sent, err := q.Send(ctx, "hello", nil)
//	msgs, err := q.Receive(ctx, &queue.ReceiveOptions{VisibilityTimeout: 30 * time.Second})
//	for _, m := range msgs {
//	    ...
//	    err = q.DeleteMessage(ctx, m.MessageID, m.PopReceipt)
//	}
package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/logger"
	"github.com/koustreak/StorRi/internal/paging"
	"github.com/koustreak/StorRi/internal/transport"
	"github.com/koustreak/StorRi/internal/wire"
)

// ClientOptions configures a queue service client.
type ClientOptions struct {
	// Transport overrides the request pipeline. nil uses the default
	// net/http transport with no credential.
	Transport transport.Transport

	// Logger receives structured client logs. nil disables logging.
	Logger *logger.Logger
}

// Client is the service-level queue client. It is stateless and safe for
// concurrent use.
type Client struct {
	endpoint *url.URL
	tr       transport.Transport
	log      *logger.Logger
}

// NewClient creates a service client for the storage endpoint, e.g.
// "https://account.queue.example.net".
func NewClient(endpoint string, opts *ClientOptions) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "queue.NewClient", endpoint, "endpoint must be an absolute URL")
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

// Queue returns a client scoped to one queue. No network call.
func (c *Client) Queue(name string) *QueueClient {
	return &QueueClient{svc: c, name: name}
}

// Create creates a queue. An existing queue is reported via
// errs.IsAlreadyExists.
func (c *Client) Create(ctx context.Context, name string, metadata map[string]string) error {
	const op = "queue.Create"
	h := make(http.Header)
	wire.SetMetadataHeaders(h, metadata)

	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPut,
		URL:    c.url([]string{name}, nil),
		Header: h,
	})
	if err != nil {
		return errs.WithOp(err, op, name)
	}
	if err := transport.CheckResponse(resp, op, name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// Delete deletes a queue and all messages in it.
func (c *Client) Delete(ctx context.Context, name string) error {
	const op = "queue.Delete"
	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		URL:    c.url([]string{name}, nil),
	})
	if err != nil {
		return errs.WithOp(err, op, name)
	}
	if err := transport.CheckResponse(resp, op, name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// ListQueues returns a lazy pager over queues.
func (c *Client) ListQueues(o *ListQueuesOptions) *paging.Pager[QueueInfo] {
	if o == nil {
		o = &ListQueuesOptions{}
	}
	fetch := func(ctx context.Context, marker string) (paging.Page[QueueInfo], error) {
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
			return paging.Page[QueueInfo]{}, errs.WithOp(err, "queue.ListQueues", "")
		}
		if err := transport.CheckResponse(resp, "queue.ListQueues", ""); err != nil {
			return paging.Page[QueueInfo]{}, err
		}
		defer resp.Body.Close()

		list, err := wire.DecodeQueueList(resp.Body)
		if err != nil {
			return paging.Page[QueueInfo]{}, errs.WithOp(err, "queue.ListQueues", "")
		}

		items := make([]QueueInfo, len(list.Queues))
		for i, it := range list.Queues {
			items[i] = QueueInfo{Name: it.Name}
		}
		return paging.Page[QueueInfo]{Items: items, NextMarker: list.NextMarker}, nil
	}
	return paging.New(fetch, o.Marker)
}

// QueueClient operates on one queue.
type QueueClient struct {
	svc  *Client
	name string
}

// Name returns the queue name.
func (q *QueueClient) Name() string { return q.name }

// GetProperties returns the queue's user metadata and approximate depth.
func (q *QueueClient) GetProperties(ctx context.Context) (*Properties, error) {
	const op = "queue.GetProperties"
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    q.svc.url([]string{q.name}, url.Values{"comp": {"metadata"}}),
	})
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return nil, err
	}
	drainAndClose(resp.Body)

	count, _ := strconv.ParseInt(resp.Header.Get("x-ms-approximate-messages-count"), 10, 64)
	return &Properties{
		ApproximateMessageCount: count,
		Metadata:                wire.MetadataFromHeaders(resp.Header),
	}, nil
}

// SetMetadata replaces the queue's user metadata wholesale.
func (q *QueueClient) SetMetadata(ctx context.Context, metadata map[string]string) error {
	const op = "queue.SetMetadata"
	h := make(http.Header)
	wire.SetMetadataHeaders(h, metadata)

	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodPut,
		URL:    q.svc.url([]string{q.name}, url.Values{"comp": {"metadata"}}),
		Header: h,
	})
	if err != nil {
		return errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// Send enqueues a message. The returned handle carries the message's first
// pop receipt.
func (q *QueueClient) Send(ctx context.Context, text string, o *SendOptions) (*SentMessage, error) {
	const op = "queue.Send"
	if o == nil {
		o = &SendOptions{}
	}
	if err := validateVisibility(op, q.name, o.VisibilityDelay); err != nil {
		return nil, err
	}
	ttl := o.TimeToLive
	if ttl == 0 {
		ttl = DefaultTimeToLive
	}
	if ttl != TTLNever && (ttl < 0 || ttl > MaxTimeToLive) {
		return nil, errs.New(errs.ErrKindInvalidInput, op, q.name,
			fmt.Sprintf("time-to-live %v out of bounds (TTLNever or 0 < ttl <= %v)", ttl, MaxTimeToLive))
	}

	body, err := wire.EncodeQueueMessage(text)
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}

	query := url.Values{}
	if o.VisibilityDelay > 0 {
		query.Set("visibilitytimeout", seconds(o.VisibilityDelay))
	}
	query.Set("messagettl", seconds(ttl))

	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method:        http.MethodPost,
		URL:           q.svc.url([]string{q.name, "messages"}, query),
		Body:          bytes.NewReader(body),
		ContentLength: int64(len(body)),
	})
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	list, err := wire.DecodeMessageList(resp.Body)
	if err != nil || len(list.Messages) != 1 {
		return nil, errs.New(errs.ErrKindUnknown, op, q.name, "service did not return the enqueued message")
	}
	m := list.Messages[0]

	q.svc.log.With().Str("queue", q.name).Str("message_id", m.MessageID).Logger().Debug("message sent")

	return &SentMessage{
		MessageID:     m.MessageID,
		PopReceipt:    m.PopReceipt,
		InsertedAt:    m.InsertionTime.Time,
		ExpiresAt:     m.ExpirationTime.Time,
		NextVisibleAt: m.TimeNextVisible.Time,
	}, nil
}

// Receive dequeues up to o.MaxMessages currently visible messages in one
// round trip. It is a one-shot batch fetch, not a subscription: an empty
// queue returns an empty slice, never blocks. Each returned message is
// invisible until its NextVisibleAt and carries a fresh pop receipt.
func (q *QueueClient) Receive(ctx context.Context, o *ReceiveOptions) ([]ReceivedMessage, error) {
	const op = "queue.Receive"
	if o == nil {
		o = &ReceiveOptions{}
	}
	max := o.MaxMessages
	if max == 0 {
		max = 1
	}
	if max < 1 || max > MaxReceiveBatch {
		return nil, errs.New(errs.ErrKindInvalidInput, op, q.name,
			fmt.Sprintf("max messages %d out of bounds [1, %d]", max, MaxReceiveBatch))
	}
	visibility := o.VisibilityTimeout
	if visibility == 0 {
		visibility = DefaultVisibilityTimeout
	}
	if err := validateVisibility(op, q.name, visibility); err != nil {
		return nil, err
	}

	query := url.Values{
		"numofmessages":     {strconv.Itoa(max)},
		"visibilitytimeout": {seconds(visibility)},
	}
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    q.svc.url([]string{q.name, "messages"}, query),
	})
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	list, err := wire.DecodeMessageList(resp.Body)
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}

	msgs := make([]ReceivedMessage, len(list.Messages))
	for i, m := range list.Messages {
		msgs[i] = ReceivedMessage{
			MessageID:     m.MessageID,
			PopReceipt:    m.PopReceipt,
			Text:          m.MessageText,
			InsertedAt:    m.InsertionTime.Time,
			ExpiresAt:     m.ExpirationTime.Time,
			NextVisibleAt: m.TimeNextVisible.Time,
			DequeueCount:  m.DequeueCount,
		}
	}
	return msgs, nil
}

// Peek returns up to max visible messages without dequeuing them: no
// receipt is issued and visibility is unchanged.
func (q *QueueClient) Peek(ctx context.Context, max int) ([]PeekedMessage, error) {
	const op = "queue.Peek"
	if max == 0 {
		max = 1
	}
	if max < 1 || max > MaxReceiveBatch {
		return nil, errs.New(errs.ErrKindInvalidInput, op, q.name,
			fmt.Sprintf("max messages %d out of bounds [1, %d]", max, MaxReceiveBatch))
	}

	query := url.Values{
		"peekonly":      {"true"},
		"numofmessages": {strconv.Itoa(max)},
	}
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    q.svc.url([]string{q.name, "messages"}, query),
	})
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	list, err := wire.DecodeMessageList(resp.Body)
	if err != nil {
		return nil, errs.WithOp(err, op, q.name)
	}

	msgs := make([]PeekedMessage, len(list.Messages))
	for i, m := range list.Messages {
		msgs[i] = PeekedMessage{
			MessageID:    m.MessageID,
			Text:         m.MessageText,
			InsertedAt:   m.InsertionTime.Time,
			ExpiresAt:    m.ExpirationTime.Time,
			DequeueCount: m.DequeueCount,
		}
	}
	return msgs, nil
}

// Update replaces a message's text and resets its visibility window. It
// requires the receipt of the most recent receive or update; on success
// that receipt is dead and the returned one takes its place. A stale
// receipt fails with errs.IsReceiptMismatch.
func (q *QueueClient) Update(ctx context.Context, messageID, popReceipt, text string, visibility time.Duration) (*UpdateResult, error) {
	const op = "queue.UpdateMessage"
	res := q.name + "/" + messageID
	if popReceipt == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, op, res, "pop receipt is required")
	}
	if err := validateVisibility(op, res, visibility); err != nil {
		return nil, err
	}

	body, err := wire.EncodeQueueMessage(text)
	if err != nil {
		return nil, errs.WithOp(err, op, res)
	}

	query := url.Values{
		"popreceipt":        {popReceipt},
		"visibilitytimeout": {seconds(visibility)},
	}
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method:        http.MethodPut,
		URL:           q.svc.url([]string{q.name, "messages", messageID}, query),
		Body:          bytes.NewReader(body),
		ContentLength: int64(len(body)),
	})
	if err != nil {
		return nil, errs.WithOp(err, op, res)
	}
	if err := transport.CheckResponse(resp, op, res); err != nil {
		return nil, err
	}
	drainAndClose(resp.Body)

	next, _ := time.Parse(http.TimeFormat, resp.Header.Get("x-ms-time-next-visible"))
	return &UpdateResult{
		PopReceipt:    resp.Header.Get("x-ms-popreceipt"),
		NextVisibleAt: next,
	}, nil
}

// DeleteMessage removes a message. It requires the receipt of the most
// recent receive or update; a stale receipt fails with
// errs.IsReceiptMismatch, a missing message with errs.IsNotFound.
func (q *QueueClient) DeleteMessage(ctx context.Context, messageID, popReceipt string) error {
	const op = "queue.DeleteMessage"
	res := q.name + "/" + messageID
	if popReceipt == "" {
		return errs.New(errs.ErrKindInvalidInput, op, res, "pop receipt is required")
	}

	query := url.Values{"popreceipt": {popReceipt}}
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		URL:    q.svc.url([]string{q.name, "messages", messageID}, query),
	})
	if err != nil {
		return errs.WithOp(err, op, res)
	}
	if err := transport.CheckResponse(resp, op, res); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// Clear deletes every message in the queue.
func (q *QueueClient) Clear(ctx context.Context) error {
	const op = "queue.Clear"
	resp, err := q.svc.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		URL:    q.svc.url([]string{q.name, "messages"}, nil),
	})
	if err != nil {
		return errs.WithOp(err, op, q.name)
	}
	if err := transport.CheckResponse(resp, op, q.name); err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// drainAndClose finishes a response whose body content is not needed, so
// the underlying connection can be reused.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}

// --- validation helpers ---

func validateVisibility(op, resource string, d time.Duration) error {
	if d < 0 || d > MaxVisibilityTimeout {
		return errs.New(errs.ErrKindInvalidInput, op, resource,
			fmt.Sprintf("visibility timeout %v out of bounds [0, %v]", d, MaxVisibilityTimeout))
	}
	return nil
}

// seconds renders a duration as the whole seconds the wire expects.
// TTLNever becomes -1.
func seconds(d time.Duration) string {
	if d == TTLNever {
		return "-1"
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}
