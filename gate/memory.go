// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryFlags keeps one atomic flag per case for the life of the process.
// Flags are never removed; deleting one could let two holders coexist.
type MemoryFlags struct {
	flags sync.Map // caseID -> *atomic.Bool
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{}
}

func (m *MemoryFlags) Acquire(_ context.Context, caseID string) (func(), error) {
	v, _ := m.flags.LoadOrStore(caseID, new(atomic.Bool))
	flag := v.(*atomic.Bool)
	if !flag.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInFlight
	}
	var once sync.Once
	return func() { once.Do(func() { flag.Store(false) }) }, nil
}

type resultKey struct {
	caseID string
	token  string
}

type storedResult struct {
	completion Completion
	expiresAt  time.Time
}

// MemoryResults is a process-local completed-request cache. Entries expire
// after ttl; a zero ttl keeps them forever.
type MemoryResults struct {
	mu      sync.Mutex
	entries map[resultKey]storedResult
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryResults(ttl time.Duration) *MemoryResults {
	return &MemoryResults{
		entries: make(map[resultKey]storedResult),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryResults) Lookup(_ context.Context, caseID, token string) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := resultKey{caseID, token}
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	c := entry.completion
	return &c, nil
}

func (m *MemoryResults) Remember(_ context.Context, caseID, token string, c Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	m.entries[resultKey{caseID, token}] = storedResult{completion: c, expiresAt: expires}
	return nil
}

// Len reports how many entries are held, expired or not.
func (m *MemoryResults) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
