package costcache

import (
	"context"
	"slices"
	"sync"
)

// Journal is the append-only write-ahead log of sealed sections. Records
// are appended in index order; Load returns them in the same order.
type Journal interface {
	Load(ctx context.Context) ([]Section, error)
	Append(ctx context.Context, s Section) error
	Reset(ctx context.Context) error
	Close() error
}

// MemoryJournal keeps sections in process memory. It backs runs that do not
// persist the cache, and tests.
type MemoryJournal struct {
	mu       sync.Mutex
	sections []Section
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Load(ctx context.Context) ([]Section, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.sections), nil
}

func (j *MemoryJournal) Append(ctx context.Context, s Section) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sections = append(j.sections, s)
	return nil
}

func (j *MemoryJournal) Reset(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sections = nil
	return nil
}

func (j *MemoryJournal) Close() error { return nil }
