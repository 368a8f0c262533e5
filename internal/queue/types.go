package queue

import "time"

// Service policy constants. Values outside these bounds are rejected
// client-side, before any network call.
const (
	// MaxVisibilityTimeout is the longest a message may stay invisible.
	MaxVisibilityTimeout = 7 * 24 * time.Hour

	// MaxTimeToLive is the longest a message may stay in the queue.
	MaxTimeToLive = 7 * 24 * time.Hour

	// DefaultTimeToLive applies when SendOptions leaves TimeToLive zero.
	DefaultTimeToLive = 7 * 24 * time.Hour

	// TTLNever marks a message that does not expire.
	TTLNever = time.Duration(-1)

	// MaxReceiveBatch is the largest batch one Receive call may request.
	MaxReceiveBatch = 32

	// DefaultVisibilityTimeout applies when ReceiveOptions leaves
	// VisibilityTimeout zero.
	DefaultVisibilityTimeout = 30 * time.Second
)

// QueueInfo describes a queue in a listing.
type QueueInfo struct {
	Name string
}

// Properties is the queue's metadata and approximate depth.
type Properties struct {
	// ApproximateMessageCount is the service's estimate of the number of
	// messages in the queue, including invisible ones.
	ApproximateMessageCount int64

	// Metadata is the queue's user metadata, lowercased keys.
	Metadata map[string]string
}

// SentMessage is the handle returned by Send. PopReceipt is opaque and
// single-use; it is superseded by the receipt of any later receive or
// update of the same message.
type SentMessage struct {
	MessageID     string
	PopReceipt    string
	InsertedAt    time.Time
	ExpiresAt     time.Time
	NextVisibleAt time.Time
}

// ReceivedMessage is one dequeued message. The message stays invisible
// until NextVisibleAt; update or delete it before then using PopReceipt.
type ReceivedMessage struct {
	MessageID     string
	PopReceipt    string
	Text          string
	InsertedAt    time.Time
	ExpiresAt     time.Time
	NextVisibleAt time.Time
	DequeueCount  int64
}

// PeekedMessage is a message observed without dequeuing: no pop receipt is
// issued and visibility is unchanged.
type PeekedMessage struct {
	MessageID    string
	Text         string
	InsertedAt   time.Time
	ExpiresAt    time.Time
	DequeueCount int64
}

// UpdateResult carries the fresh receipt issued by a successful update.
// The receipt passed to Update is invalid from this point on.
type UpdateResult struct {
	PopReceipt    string
	NextVisibleAt time.Time
}

// SendOptions controls Send.
type SendOptions struct {
	// VisibilityDelay hides the message for this long after insertion.
	// Zero means immediately visible. Bounds: [0, MaxVisibilityTimeout].
	VisibilityDelay time.Duration

	// TimeToLive is how long the message stays in the queue. Zero means
	// DefaultTimeToLive; TTLNever means no expiry. Otherwise bounds:
	// (0, MaxTimeToLive].
	TimeToLive time.Duration
}

// ReceiveOptions controls Receive.
type ReceiveOptions struct {
	// MaxMessages is the batch size ceiling, 1 to MaxReceiveBatch.
	// Zero means 1. Fewer messages may be returned, including none.
	MaxMessages int

	// VisibilityTimeout is how long received messages stay invisible.
	// Zero means DefaultVisibilityTimeout. Bounds: [0, MaxVisibilityTimeout].
	VisibilityTimeout time.Duration
}

// ListQueuesOptions controls ListQueues.
type ListQueuesOptions struct {
	// Prefix restricts results to queues whose name starts with it.
	Prefix string

	// MaxResults caps the page size. 0 uses the service default.
	MaxResults int

	// Marker resumes the listing from a previously persisted continuation
	// marker. "" starts from the beginning.
	Marker string
}
