// Package cache memoizes title resolutions for a bounded time.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is used when New is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Entry is a stored resolution. A nil Value records that the lookup ran and
// found nothing, which is replayed like any other value.
type Entry[V any] struct {
	Value      *V
	RecordedAt time.Time
}

// Stats reports cache effectiveness since creation or the last Clear.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Option configures a Lookup.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Lookup is a TTL map from normalized keys to resolved values. Expired
// entries are ignored by reads and replaced by the next write; nothing is
// evicted in the background.
type Lookup[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// New creates an empty Lookup with the given ttl.
func New[V any](ttl time.Duration, opts ...Option) *Lookup[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lookup[V]{
		entries: make(map[string]Entry[V]),
		ttl:     ttl,
		now:     o.now,
	}
}

// TTL returns the configured time to live.
func (l *Lookup[V]) TTL() time.Duration {
	return l.ttl
}

// Get returns the stored value for key when it was recorded less than TTL
// ago. value may be nil even when ok is true.
func (l *Lookup[V]) Get(key string) (value *V, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(key)
}

// Set records value for key, replacing whatever was there.
func (l *Lookup[V]) Set(key string, value *V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = Entry[V]{Value: value, RecordedAt: l.now()}
}

// GetOrResolve returns the fresh value for key or calls resolve to produce
// one. The lock is not held while resolve runs, so concurrent misses on the
// same key may resolve more than once; the last write wins. Errors from
// resolve are returned and never stored.
func (l *Lookup[V]) GetOrResolve(ctx context.Context, key string, resolve func(context.Context) (*V, error)) (*V, error) {
	l.mu.Lock()
	value, ok := l.lookupLocked(key)
	l.mu.Unlock()
	if ok {
		return value, nil
	}

	value, err := resolve(ctx)
	if err != nil {
		return nil, err
	}

	l.Set(key, value)
	return value, nil
}

// Clear drops every entry and resets the counters.
func (l *Lookup[V]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]Entry[V])
	l.hits = 0
	l.misses = 0
}

// Len counts stored entries, expired ones included.
func (l *Lookup[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats returns a snapshot of the counters.
func (l *Lookup[V]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Entries: len(l.entries), Hits: l.hits, Misses: l.misses}
}

func (l *Lookup[V]) lookupLocked(key string) (*V, bool) {
	entry, ok := l.entries[key]
	if !ok || l.now().Sub(entry.RecordedAt) >= l.ttl {
		l.misses++
		return nil, false
	}
	l.hits++
	return entry.Value, true
}
