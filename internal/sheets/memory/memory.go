// Package memory provides an in-process upload journal.
package memory

import (
	"context"
	"sync"

	"findash/internal/core"
)

// DefaultCapacity bounds the journal when no capacity is given.
const DefaultCapacity = 200

// Journal keeps the most recent upload records in a ring.
type Journal struct {
	mu    sync.Mutex
	cap   int
	items []core.UploadRecord
	next  int
	full  bool
}

func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{cap: capacity, items: make([]core.UploadRecord, capacity)}
}

// Record stores rec, overwriting the oldest record when full.
func (j *Journal) Record(_ context.Context, rec core.UploadRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items[j.next] = rec
	j.next = (j.next + 1) % j.cap
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(_ context.Context, limit int) ([]core.UploadRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := j.next
	if j.full {
		n = j.cap
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.UploadRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, j.items[(j.next-i+j.cap)%j.cap])
	}
	return out, nil
}
