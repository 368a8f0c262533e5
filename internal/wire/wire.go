// Package wire holds the XML payload shapes spoken by the storage service
// and decodes them into the SDK's data model. Element names (NextMarker,
// Blob, BlobPrefix, PopReceipt, TimeNextVisible, …) are part of the service
// contract and must be preserved bit-exactly.
//
// The clients consume only the decoded structs; the emulator in stortest
// marshals the same structs, so both directions of the contract are pinned
// by one set of types.
package wire

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koustreak/StorRi/internal/errs"
)

// TimeRFC1123 marshals timestamps the way the service does.
type TimeRFC1123 struct {
	time.Time
}

func (t TimeRFC1123) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if t.IsZero() {
		return nil
	}
	return e.EncodeElement(t.UTC().Format(http.TimeFormat), start)
}

func (t *TimeRFC1123) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(http.TimeFormat, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// --- User metadata headers ---

// MetadataPrefix marks user metadata headers on the wire.
const MetadataPrefix = "x-ms-meta-"

// SetMetadataHeaders writes user metadata onto h.
func SetMetadataHeaders(h http.Header, metadata map[string]string) {
	for k, v := range metadata {
		h.Set(MetadataPrefix+k, v)
	}
}

// MetadataFromHeaders extracts user metadata from response headers, with
// lowercased keys. Returns nil when there is none.
func MetadataFromHeaders(h http.Header) map[string]string {
	var md map[string]string
	for k, vs := range h {
		if len(vs) == 0 || len(k) < len(MetadataPrefix) {
			continue
		}
		if strings.EqualFold(k[:len(MetadataPrefix)], MetadataPrefix) {
			if md == nil {
				md = make(map[string]string)
			}
			md[strings.ToLower(k[len(MetadataPrefix):])] = vs[0]
		}
	}
	return md
}

// --- Container listing ---

type ContainerProperties struct {
	LastModified TimeRFC1123 `xml:"Last-Modified"`
	ETag         string      `xml:"Etag"`
}

type ContainerItem struct {
	Name       string              `xml:"Name"`
	Properties ContainerProperties `xml:"Properties"`
}

type ContainerList struct {
	XMLName    xml.Name        `xml:"EnumerationResults"`
	Prefix     string          `xml:"Prefix,omitempty"`
	Marker     string          `xml:"Marker,omitempty"`
	MaxResults int             `xml:"MaxResults,omitempty"`
	Containers []ContainerItem `xml:"Containers>Container"`
	NextMarker string          `xml:"NextMarker"`
}

// DecodeContainerList parses a container listing page.
func DecodeContainerList(r io.Reader) (*ContainerList, error) {
	var out ContainerList
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "decoding container list", err)
	}
	return &out, nil
}

// --- Blob listing ---

type BlobProperties struct {
	LastModified  TimeRFC1123 `xml:"Last-Modified"`
	ETag          string      `xml:"Etag"`
	ContentLength int64       `xml:"Content-Length"`
	ContentType   string      `xml:"Content-Type,omitempty"`
	ContentMD5    string      `xml:"Content-MD5,omitempty"`
}

type BlobItem struct {
	Name       string         `xml:"Name"`
	Properties BlobProperties `xml:"Properties"`
}

type BlobPrefix struct {
	Name string `xml:"Name"`
}

// BlobList is one page of a flat or hierarchical blob listing. In
// hierarchical listings the service interleaves Blob and BlobPrefix
// elements in lexicographic order; encoding/xml splits them into the two
// slices, each internally ordered. The blob client re-merges them.
type BlobList struct {
	XMLName    xml.Name     `xml:"EnumerationResults"`
	Prefix     string       `xml:"Prefix,omitempty"`
	Marker     string       `xml:"Marker,omitempty"`
	MaxResults int          `xml:"MaxResults,omitempty"`
	Delimiter  string       `xml:"Delimiter,omitempty"`
	Blobs      []BlobItem   `xml:"Blobs>Blob"`
	Prefixes   []BlobPrefix `xml:"Blobs>BlobPrefix"`
	NextMarker string       `xml:"NextMarker"`
}

// DecodeBlobList parses a blob listing page.
func DecodeBlobList(r io.Reader) (*BlobList, error) {
	var out BlobList
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "decoding blob list", err)
	}
	return &out, nil
}

// --- Queue listing ---

type QueueItem struct {
	Name string `xml:"Name"`
}

type QueueList struct {
	XMLName    xml.Name    `xml:"EnumerationResults"`
	Prefix     string      `xml:"Prefix,omitempty"`
	Marker     string      `xml:"Marker,omitempty"`
	MaxResults int         `xml:"MaxResults,omitempty"`
	Queues     []QueueItem `xml:"Queues>Queue"`
	NextMarker string      `xml:"NextMarker"`
}

// DecodeQueueList parses a queue listing page.
func DecodeQueueList(r io.Reader) (*QueueList, error) {
	var out QueueList
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "decoding queue list", err)
	}
	return &out, nil
}

// --- Queue messages ---

// Message is one QueueMessage element. Which fields the service populates
// depends on the operation: send returns identity and receipt, receive adds
// the text and dequeue count, peek omits the receipt.
type Message struct {
	MessageID       string      `xml:"MessageId"`
	InsertionTime   TimeRFC1123 `xml:"InsertionTime"`
	ExpirationTime  TimeRFC1123 `xml:"ExpirationTime"`
	PopReceipt      string      `xml:"PopReceipt,omitempty"`
	TimeNextVisible TimeRFC1123 `xml:"TimeNextVisible"`
	DequeueCount    int64       `xml:"DequeueCount,omitempty"`
	MessageText     string      `xml:"MessageText"`
}

type MessageList struct {
	XMLName  xml.Name  `xml:"QueueMessagesList"`
	Messages []Message `xml:"QueueMessage"`
}

// DecodeMessageList parses a send/receive/peek response.
func DecodeMessageList(r io.Reader) (*MessageList, error) {
	var out MessageList
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "decoding message list", err)
	}
	return &out, nil
}

// queueMessageBody is the request payload for send and update.
type queueMessageBody struct {
	XMLName     xml.Name `xml:"QueueMessage"`
	MessageText string   `xml:"MessageText"`
}

// EncodeQueueMessage builds the request body carrying message text.
func EncodeQueueMessage(text string) ([]byte, error) {
	b, err := xml.Marshal(queueMessageBody{MessageText: text})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "encoding queue message", err)
	}
	return b, nil
}

// DecodeQueueMessageBody parses a send/update request payload. Used by the
// emulator; clients never decode this shape.
func DecodeQueueMessageBody(r io.Reader) (string, error) {
	var body queueMessageBody
	if err := xml.NewDecoder(r).Decode(&body); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "decoding queue message body", err)
	}
	return body.MessageText, nil
}
