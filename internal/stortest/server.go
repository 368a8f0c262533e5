// Package stortest runs an in-memory storage service speaking the same
// wire protocol as the real one, for exercising the StorRi clients in
// tests without a network. It implements container/blob CRUD, marker
// pagination with prefix and delimiter, ranged downloads with precondition
// evaluation, and queue messaging with visibility windows and pop-receipt
// fencing.
//
// The server's clock is settable so visibility-window scenarios run
// without sleeping, and response bodies can be truncated on demand to
// exercise the download engine's range resumption.
package stortest

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/koustreak/StorRi/internal/wire"
)

const defaultPageSize = 5000

// Server is one in-memory storage account. Create it with New, point the
// blob client at BlobEndpoint() and the queue client at QueueEndpoint(),
// and Close it when done.
type Server struct {
	mu sync.Mutex

	now        func() time.Time
	containers map[string]*containerState
	queues     map[string]*queueState
	etagSeq    int

	// fault injection for download-resume tests
	truncateAt    int64
	truncateTimes int

	srv *httptest.Server
}

// New starts an emulator listening on a local port.
func New() *Server {
	s := &Server{
		now:        time.Now,
		containers: make(map[string]*containerState),
		queues:     make(map[string]*queueState),
	}

	r := chi.NewRouter()
	r.Route("/blob", func(r chi.Router) {
		r.Get("/", s.listContainers)
		r.Put("/{container}", s.createContainer)
		r.Delete("/{container}", s.deleteContainer)
		r.Get("/{container}", s.listBlobs) // restype=container&comp=list
		r.Put("/{container}/*", s.putBlob)
		r.Get("/{container}/*", s.getBlob)
		r.Head("/{container}/*", s.headBlob)
		r.Delete("/{container}/*", s.deleteBlob)
	})
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", s.listQueues)
		r.Put("/{queue}", s.putQueue) // create or comp=metadata
		r.Delete("/{queue}", s.deleteQueue)
		r.Get("/{queue}", s.getQueueMetadata)
		r.Post("/{queue}/messages", s.postMessage)
		r.Get("/{queue}/messages", s.getMessages)
		r.Delete("/{queue}/messages", s.clearMessages)
		r.Put("/{queue}/messages/{id}", s.updateMessage)
		r.Delete("/{queue}/messages/{id}", s.deleteMessage)
	})

	s.srv = httptest.NewServer(r)
	return s
}

// Close shuts the emulator down.
func (s *Server) Close() { s.srv.Close() }

// BlobEndpoint is the service URL for blob.NewClient.
func (s *Server) BlobEndpoint() string { return s.srv.URL + "/blob" }

// QueueEndpoint is the service URL for queue.NewClient.
func (s *Server) QueueEndpoint() string { return s.srv.URL + "/queue" }

// SetNow replaces the emulator's clock. Visibility windows and expiries
// are evaluated against it on every request.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TruncateDownloads makes the next `times` blob downloads deliver only the
// first n bytes of the selected range and then drop the connection,
// simulating a mid-stream transport failure.
func (s *Server) TruncateDownloads(n int64, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncateAt = n
	s.truncateTimes = times
}

// CorruptContentMD5 overwrites a blob's stored content hash so that a
// verifying download sees a mismatch.
func (s *Server) CorruptContentMD5(container, blob string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.containers[container]; ok {
		if b, ok := c.blobs[blob]; ok {
			b.contentMD5 = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
		}
	}
}

func (s *Server) nextETag() string {
	s.etagSeq++
	return fmt.Sprintf("\"0x%X\"", s.etagSeq)
}

// --- error payloads ---

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<Error><Code>%s</Code></Error>", code)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	xml.NewEncoder(w).Encode(v)
}

// --- blob state ---

type blobState struct {
	data         []byte
	contentType  string
	etag         string
	lastModified time.Time
	contentMD5   string // base64
	metadata     map[string]string
}

type containerState struct {
	blobs        map[string]*blobState
	etag         string
	lastModified time.Time
}

func (s *Server) createContainer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "container")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; ok {
		writeError(w, http.StatusConflict, "ContainerAlreadyExists")
		return
	}
	s.containers[name] = &containerState{
		blobs:        make(map[string]*blobState),
		etag:         s.nextETag(),
		lastModified: s.now(),
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteContainer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "container")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; !ok {
		writeError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	delete(s.containers, name)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listContainers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("comp") != "list" {
		writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}
	prefix, marker := q.Get("prefix"), q.Get("marker")
	limit := pageLimit(q)

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		if strings.HasPrefix(name, prefix) && name >= marker {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := wire.ContainerList{}
	for i, name := range names {
		if i == limit {
			out.NextMarker = name
			break
		}
		c := s.containers[name]
		out.Containers = append(out.Containers, wire.ContainerItem{
			Name: name,
			Properties: wire.ContainerProperties{
				ETag:         c.etag,
				LastModified: wire.TimeRFC1123{Time: c.lastModified},
			},
		})
	}
	writeXML(w, http.StatusOK, out)
}

// listEntry is one row of a blob listing before pagination.
type listEntry struct {
	name     string
	isPrefix bool
	blob     *blobState
}

func (s *Server) listBlobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("restype") != "container" || q.Get("comp") != "list" {
		writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}
	name := chi.URLParam(r, "container")
	prefix, delimiter, marker := q.Get("prefix"), q.Get("delimiter"), q.Get("marker")
	limit := pageLimit(q)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}

	keys := make([]string, 0, len(c.blobs))
	for k := range c.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Fold keys into blob and common-prefix entries, already sorted.
	var entries []listEntry
	for _, k := range keys {
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				p := k[:len(prefix)+i+len(delimiter)]
				if n := len(entries); n > 0 && entries[n-1].isPrefix && entries[n-1].name == p {
					continue
				}
				entries = append(entries, listEntry{name: p, isPrefix: true})
				continue
			}
		}
		entries = append(entries, listEntry{name: k, blob: c.blobs[k]})
	}

	out := wire.BlobList{Prefix: prefix, Delimiter: delimiter}
	served := 0
	for _, e := range entries {
		if e.name < marker {
			continue
		}
		if served == limit {
			out.NextMarker = e.name
			break
		}
		served++
		if e.isPrefix {
			out.Prefixes = append(out.Prefixes, wire.BlobPrefix{Name: e.name})
			continue
		}
		out.Blobs = append(out.Blobs, wire.BlobItem{
			Name: e.name,
			Properties: wire.BlobProperties{
				ETag:          e.blob.etag,
				LastModified:  wire.TimeRFC1123{Time: e.blob.lastModified},
				ContentLength: int64(len(e.blob.data)),
				ContentType:   e.blob.contentType,
				ContentMD5:    e.blob.contentMD5,
			},
		})
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) putBlob(w http.ResponseWriter, r *http.Request) {
	cname := chi.URLParam(r, "container")
	bname := chi.URLParam(r, "*")

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[cname]
	if !ok {
		writeError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	existing := c.blobs[bname]

	if status, code := s.checkConditions(r, existing); code != "" {
		writeError(w, status, code)
		return
	}

	// comp=metadata replaces user metadata on an existing blob.
	if r.URL.Query().Get("comp") == "metadata" {
		if existing == nil {
			writeError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		existing.metadata = wire.MetadataFromHeaders(r.Header)
		existing.etag = s.nextETag()
		existing.lastModified = s.now()
		w.Header().Set("ETag", existing.etag)
		w.WriteHeader(http.StatusOK)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidInput")
		return
	}
	sum := md5.Sum(data)
	b := &blobState{
		data:         data,
		contentType:  r.Header.Get("Content-Type"),
		etag:         s.nextETag(),
		lastModified: s.now(),
		contentMD5:   base64.StdEncoding.EncodeToString(sum[:]),
		metadata:     wire.MetadataFromHeaders(r.Header),
	}
	c.blobs[bname] = b

	w.Header().Set("ETag", b.etag)
	w.Header().Set("Last-Modified", b.lastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) lookupBlob(r *http.Request) (*blobState, string) {
	c, ok := s.containers[chi.URLParam(r, "container")]
	if !ok {
		return nil, "ContainerNotFound"
	}
	b, ok := c.blobs[chi.URLParam(r, "*")]
	if !ok {
		return nil, "BlobNotFound"
	}
	return b, ""
}

// checkConditions evaluates precondition headers against the blob's state.
// A zero code means the request may proceed.
func (s *Server) checkConditions(r *http.Request, b *blobState) (int, string) {
	etag, modified := "", time.Time{}
	if b != nil {
		etag, modified = b.etag, b.lastModified
	}

	if v := r.Header.Get("If-Match"); v != "" {
		if b == nil || (v != "*" && v != etag) {
			return http.StatusPreconditionFailed, "ConditionNotMet"
		}
	}
	if v := r.Header.Get("If-None-Match"); v != "" && b != nil {
		if v == "*" || v == etag {
			return http.StatusPreconditionFailed, "ConditionNotMet"
		}
	}
	if v := r.Header.Get("If-Unmodified-Since"); v != "" && b != nil {
		if t, err := http.ParseTime(v); err == nil && modified.After(t) {
			return http.StatusPreconditionFailed, "ConditionNotMet"
		}
	}
	if v := r.Header.Get("If-Modified-Since"); v != "" && b != nil {
		if t, err := http.ParseTime(v); err == nil && !modified.After(t) {
			return http.StatusNotModified, "ConditionNotMet"
		}
	}
	return 0, ""
}

func (s *Server) blobHeaders(w http.ResponseWriter, b *blobState) {
	w.Header().Set("ETag", b.etag)
	w.Header().Set("Last-Modified", b.lastModified.UTC().Format(http.TimeFormat))
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	for k, v := range b.metadata {
		w.Header().Set(wire.MetadataPrefix+k, v)
	}
}

func (s *Server) headBlob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, code := s.lookupBlob(r)
	if code != "" {
		writeError(w, http.StatusNotFound, code)
		return
	}
	if status, code := s.checkConditions(r, b); code != "" {
		writeError(w, status, code)
		return
	}
	s.blobHeaders(w, b)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	w.Header().Set("Content-MD5", b.contentMD5)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getBlob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	b, code := s.lookupBlob(r)
	if code != "" {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, code)
		return
	}
	if status, code := s.checkConditions(r, b); code != "" {
		s.mu.Unlock()
		writeError(w, status, code)
		return
	}

	total := int64(len(b.data))
	start, end := int64(0), total-1 // inclusive
	ranged := false

	rangeHeader := r.Header.Get("x-ms-range")
	if rangeHeader == "" {
		rangeHeader = r.Header.Get("Range")
	}
	if rangeHeader != "" {
		var ok bool
		start, end, ok = parseRange(rangeHeader, total)
		if !ok {
			s.mu.Unlock()
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "InvalidRange")
			return
		}
		ranged = true
	}
	body := b.data[start : end+1]

	truncate := int64(-1)
	if s.truncateTimes > 0 && s.truncateAt < int64(len(body)) {
		s.truncateTimes--
		truncate = s.truncateAt
	}

	s.blobHeaders(w, b)
	if !ranged || (start == 0 && end == total-1) {
		// Full content: the service includes the stored content hash.
		w.Header().Set("Content-MD5", b.contentMD5)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(body)), 10))
	s.mu.Unlock()

	if ranged {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if truncate >= 0 {
		w.Write(body[:truncate])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Drop the connection so the client sees a mid-body failure.
		panic(http.ErrAbortHandler)
	}
	w.Write(body)
}

// parseRange understands "bytes=a-b" and "bytes=a-". end is clamped to the
// content size, mirroring the service's behaviour for over-long ranges.
func parseRange(v string, total int64) (start, end int64, ok bool) {
	v, found := strings.CutPrefix(v, "bytes=")
	if !found {
		return 0, 0, false
	}
	lo, hi, found := strings.Cut(v, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(lo, 10, 64)
	if err != nil || start < 0 || start >= total {
		return 0, 0, false
	}
	end = total - 1
	if hi != "" {
		end, err = strconv.ParseInt(hi, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > total-1 {
			end = total - 1
		}
	}
	return start, end, true
}

func (s *Server) deleteBlob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, code := s.lookupBlob(r)
	if code != "" {
		writeError(w, http.StatusNotFound, code)
		return
	}
	if status, code := s.checkConditions(r, b); code != "" {
		writeError(w, status, code)
		return
	}
	delete(s.containers[chi.URLParam(r, "container")].blobs, chi.URLParam(r, "*"))
	w.WriteHeader(http.StatusAccepted)
}

func pageLimit(q map[string][]string) int {
	if vs := q["maxresults"]; len(vs) > 0 {
		if n, err := strconv.Atoi(vs[0]); err == nil && n > 0 {
			return n
		}
	}
	return defaultPageSize
}

// --- queue state ---

type messageState struct {
	id           string
	text         string
	popReceipt   string
	inserted     time.Time
	expires      time.Time
	nextVisible  time.Time
	dequeueCount int64
}

type queueState struct {
	messages []*messageState
	metadata map[string]string
}

func (s *Server) putQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Query().Get("comp") == "metadata" {
		q, ok := s.queues[name]
		if !ok {
			writeError(w, http.StatusNotFound, "QueueNotFound")
			return
		}
		q.metadata = wire.MetadataFromHeaders(r.Header)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, ok := s.queues[name]; ok {
		writeError(w, http.StatusConflict, "QueueAlreadyExists")
		return
	}
	s.queues[name] = &queueState{metadata: wire.MetadataFromHeaders(r.Header)}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[name]; !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}
	delete(s.queues, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("comp") != "list" {
		writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}
	prefix, marker := q.Get("prefix"), q.Get("marker")
	limit := pageLimit(q)

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		if strings.HasPrefix(name, prefix) && name >= marker {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := wire.QueueList{}
	for i, name := range names {
		if i == limit {
			out.NextMarker = name
			break
		}
		out.Queues = append(out.Queues, wire.QueueItem{Name: name})
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) getQueueMetadata(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("comp") != "metadata" {
		writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}
	name := chi.URLParam(r, "queue")

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}

	now := s.now()
	count := 0
	for _, m := range q.messages {
		if m.expires.After(now) {
			count++
		}
	}
	w.Header().Set("x-ms-approximate-messages-count", strconv.Itoa(count))
	for k, v := range q.metadata {
		w.Header().Set(wire.MetadataPrefix+k, v)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}

	text, err := wire.DecodeQueueMessageBody(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidXmlDocument")
		return
	}

	now := s.now()
	delay := querySeconds(query, "visibilitytimeout", 0)
	ttl := querySeconds(query, "messagettl", int64(7*24*time.Hour/time.Second))

	m := &messageState{
		id:          uuid.NewString(),
		text:        text,
		popReceipt:  uuid.NewString(),
		inserted:    now,
		nextVisible: now.Add(time.Duration(delay) * time.Second),
	}
	if ttl < 0 {
		m.expires = now.AddDate(100, 0, 0) // effectively never
	} else {
		m.expires = now.Add(time.Duration(ttl) * time.Second)
	}
	q.messages = append(q.messages, m)

	writeXML(w, http.StatusCreated, wire.MessageList{Messages: []wire.Message{{
		MessageID:       m.id,
		PopReceipt:      m.popReceipt,
		InsertionTime:   wire.TimeRFC1123{Time: m.inserted},
		ExpirationTime:  wire.TimeRFC1123{Time: m.expires},
		TimeNextVisible: wire.TimeRFC1123{Time: m.nextVisible},
	}}})
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	query := r.URL.Query()
	peek := query.Get("peekonly") == "true"
	n := int(querySeconds(query, "numofmessages", 1))
	visibility := querySeconds(query, "visibilitytimeout", 30)

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}

	now := s.now()
	out := wire.MessageList{}
	for _, m := range q.messages {
		if len(out.Messages) == n {
			break
		}
		if m.nextVisible.After(now) || !m.expires.After(now) {
			continue
		}
		wm := wire.Message{
			MessageID:       m.id,
			MessageText:     m.text,
			InsertionTime:   wire.TimeRFC1123{Time: m.inserted},
			ExpirationTime:  wire.TimeRFC1123{Time: m.expires},
			DequeueCount:    m.dequeueCount,
			TimeNextVisible: wire.TimeRFC1123{Time: m.nextVisible},
		}
		if !peek {
			// Dequeue: hide the message and fence it with a fresh receipt.
			m.dequeueCount++
			m.nextVisible = now.Add(time.Duration(visibility) * time.Second)
			m.popReceipt = uuid.NewString()
			wm.DequeueCount = m.dequeueCount
			wm.TimeNextVisible = wire.TimeRFC1123{Time: m.nextVisible}
			wm.PopReceipt = m.popReceipt
		}
		out.Messages = append(out.Messages, wm)
	}
	writeXML(w, http.StatusOK, out)
}

// findMessage resolves id within the queue, distinguishing a missing
// message from a stale receipt.
func findMessage(q *queueState, id, receipt string) (*messageState, int, string) {
	for _, m := range q.messages {
		if m.id == id {
			if m.popReceipt != receipt {
				return nil, http.StatusBadRequest, "PopReceiptMismatch"
			}
			return m, 0, ""
		}
	}
	return nil, http.StatusNotFound, "MessageNotFound"
}

func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}
	m, status, code := findMessage(q, id, query.Get("popreceipt"))
	if code != "" {
		writeError(w, status, code)
		return
	}

	if text, err := wire.DecodeQueueMessageBody(r.Body); err == nil {
		m.text = text
	}
	visibility := querySeconds(query, "visibilitytimeout", 0)
	m.nextVisible = s.now().Add(time.Duration(visibility) * time.Second)
	m.popReceipt = uuid.NewString()

	w.Header().Set("x-ms-popreceipt", m.popReceipt)
	w.Header().Set("x-ms-time-next-visible", m.nextVisible.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}
	if _, status, code := findMessage(q, id, r.URL.Query().Get("popreceipt")); code != "" {
		writeError(w, status, code)
		return
	}
	for i, m := range q.messages {
		if m.id == id {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearMessages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "QueueNotFound")
		return
	}
	q.messages = nil
	w.WriteHeader(http.StatusNoContent)
}

func querySeconds(q map[string][]string, key string, def int64) int64 {
	if vs := q[key]; len(vs) > 0 {
		if n, err := strconv.ParseInt(vs[0], 10, 64); err == nil {
			return n
		}
	}
	return def
}
