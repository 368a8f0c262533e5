// Package paging implements the segmented listing protocol shared by all
// StorRi list operations: containers, blobs, queues.
//
// The service returns results one page at a time, each page carrying an
// opaque continuation marker issued by the server. Pager turns the
// page-at-a-time protocol into a lazy forward-only sequence, fetching the
// next page only when the current one is exhausted.
//
// Usage:
//
//	pager := paging.New(fetchPage, "")
//	for pager.Next(ctx) {
//	    item := pager.Item()
//	    ...
//	}
//	if err := pager.Err(); err != nil { ... }
package paging

import "context"

// Page is one server round trip's worth of results. NextMarker is the
// opaque continuation marker for the following page; an empty marker means
// the sequence is complete.
type Page[T any] struct {
	Items      []T
	NextMarker string
}

// FetchFunc performs one idempotent list call. marker is "" for the first
// page, otherwise the NextMarker of the previous page.
type FetchFunc[T any] func(ctx context.Context, marker string) (Page[T], error)

// Pager is a lazy iterator over a paginated listing. It preserves server
// order, never deduplicates, and performs exactly one fetch per page.
//
// A Pager is single-owner: it must not be advanced concurrently from
// multiple goroutines. Independent Pagers over the same resource are safe
// to run concurrently.
type Pager[T any] struct {
	fetch  FetchFunc[T]
	marker string
	items  []T
	pos    int
	item   T
	err    error
	// started distinguishes "first page not yet fetched" from "empty
	// marker at end of sequence".
	started bool
	done    bool
}

// New creates a Pager over fetch. marker resumes the sequence from a
// previously observed continuation marker (see the checkpoint package);
// pass "" to start from the beginning.
func New[T any](fetch FetchFunc[T], marker string) *Pager[T] {
	return &Pager[T]{fetch: fetch, marker: marker}
}

// Next advances the sequence. It returns true when an item is available via
// Item. It returns false when the sequence is complete or a fetch failed;
// callers must then check Err. A fetch failure is terminal, but items
// yielded before the failure remain valid.
func (p *Pager[T]) Next(ctx context.Context) bool {
	if p.done {
		return false
	}

	for p.pos >= len(p.items) {
		// Current page exhausted. An empty marker after the first fetch is
		// the definitive end of the sequence.
		if p.started && p.marker == "" {
			p.done = true
			return false
		}

		page, err := p.fetch(ctx, p.marker)
		if err != nil {
			p.err = err
			p.done = true
			return false
		}
		p.started = true
		p.items = page.Items
		p.pos = 0
		p.marker = page.NextMarker
	}

	p.item = p.items[p.pos]
	p.pos++
	return true
}

// Item returns the item made available by the last successful Next.
func (p *Pager[T]) Item() T {
	return p.item
}

// Err returns the terminal error of the sequence, if any.
func (p *Pager[T]) Err() error {
	return p.err
}

// Marker returns the continuation marker for the page following the one
// currently being consumed. Persist it externally to resume a long listing
// after a restart; the items of the current page are re-listed on resume.
func (p *Pager[T]) Marker() string {
	return p.marker
}

// NextPage fetches and returns one whole page, for callers that want
// page-granular control instead of item iteration. ok is false when the
// sequence is complete. Mixing NextPage and Next on the same Pager is not
// supported.
func (p *Pager[T]) NextPage(ctx context.Context) (Page[T], bool, error) {
	if p.done || (p.started && p.marker == "") {
		p.done = true
		return Page[T]{}, false, p.err
	}

	page, err := p.fetch(ctx, p.marker)
	if err != nil {
		p.err = err
		p.done = true
		return Page[T]{}, false, err
	}
	p.started = true
	p.marker = page.NextMarker
	return page, true, nil
}
