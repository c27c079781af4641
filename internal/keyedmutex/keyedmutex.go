// Package keyedmutex provides mutual exclusion per string key.
//
// Holders of different keys never block each other. Entries are reference
// counted and dropped once no goroutine holds or waits on the key, so the
// map stays proportional to the number of keys currently in use.
package keyedmutex

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{} // buffered(1): a token in the channel means locked
	refs int
}

// Map is a set of mutexes indexed by key. The zero value is ready to use.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Lock blocks until key is held by the caller or ctx is done. On success the
// returned func releases the key and must be called exactly once.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	e := m.acquireRef(key)

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			m.releaseRef(key, e)
		}, nil
	case <-ctx.Done():
		m.releaseRef(key, e)
		return nil, ctx.Err()
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Map) acquireRef(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	e, ok := m.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Map) releaseRef(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
