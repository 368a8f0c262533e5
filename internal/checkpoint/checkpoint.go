// Package checkpoint persists listing continuation markers so that a
// restarted process can resume a long enumeration where it left off
// instead of starting over.
//
// A marker saved under a name is the NextMarker of the last page the
// consumer fully processed; passing it as ListOptions.Marker on the next
// run continues the listing. Stores treat the marker as an opaque string.
//
// An empty marker is meaningful: the service returns an empty NextMarker
// on the final page, so a saved empty marker records that the listing
// completed. Callers must check for it before resuming — an empty string
// passed as ListOptions.Marker starts the listing over from the top.
//
// The in-memory store lives here; durable implementations are in the
// postgres and mysql subpackages.
package checkpoint

import (
	"context"
	"sync"

	"github.com/koustreak/StorRi/internal/errs"
)

// Store persists continuation markers by name.
type Store interface {
	// Save records the marker under name, replacing any previous value.
	// An empty marker is valid: it records that the listing completed.
	Save(ctx context.Context, name, marker string) error

	// Load returns the marker saved under name. A name never saved is
	// reported via errs.IsNotFound. A loaded empty marker means the
	// listing completed; do not pass it to ListOptions.Marker, which
	// would restart the enumeration from the beginning.
	Load(ctx context.Context, name string) (string, error)

	// Delete forgets the checkpoint. Deleting a missing name is a no-op.
	Delete(ctx context.Context, name string) error
}

// MemoryStore is a process-local Store, suitable for tests and for
// single-run tools that only need resume-within-process.
type MemoryStore struct {
	mu      sync.RWMutex
	markers map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]string)}
}

func (s *MemoryStore) Save(_ context.Context, name, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[name] = marker
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marker, ok := s.markers[name]
	if !ok {
		return "", errs.New(errs.ErrKindNotFound, "checkpoint.Load", name, "no checkpoint saved under this name")
	}
	return marker, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, name)
	return nil
}
