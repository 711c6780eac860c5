package tracing

import (
	"sort"
	"sync"
)

// CountTracer counts records per kind.
type CountTracer struct {
	lock   sync.Mutex
	counts map[string]uint64
}

// NewCountTracer creates a CountTracer with all counts at 0.
func NewCountTracer() *CountTracer {
	return &CountTracer{counts: make(map[string]uint64)}
}

// Trace counts the record.
func (t *CountTracer) Trace(r Record) {
	t.lock.Lock()
	t.counts[r.Kind]++
	t.lock.Unlock()
}

// Count returns how many records of a kind have been seen.
func (t *CountTracer) Count(kind string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[kind]
}

// Kinds returns the kinds seen so far, sorted.
func (t *CountTracer) Kinds() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	kinds := make([]string, 0, len(t.counts))
	for k := range t.counts {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	return kinds
}
