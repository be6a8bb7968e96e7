// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HistoryStore persists conversation histories keyed by scope. A history is
// created lazily on first reference to an unseen scope and grows append-only;
// the store owns all concurrency discipline and any eviction policy.
//
// Implementations must guarantee that a read following an append for the same
// scope observes a consistent, uncorrupted history (read-your-writes).
type HistoryStore interface {
	// Messages returns the scope's history in chronological order.
	Messages(ctx context.Context, scope ScopeKey) ([]Message, error)

	// Append adds messages to the end of the scope's history.
	Append(ctx context.Context, scope ScopeKey, msgs ...Message) error
}

// History is a handle binding a [HistoryStore] to a single scope.
type History struct {
	store HistoryStore
	scope ScopeKey
}

// NewHistory binds store to scope.
func NewHistory(store HistoryStore, scope ScopeKey) History {
	return History{store: store, scope: scope}
}

// Scope returns the scope this handle is bound to.
func (h History) Scope() ScopeKey { return h.scope }

// Messages returns the history in chronological order.
func (h History) Messages(ctx context.Context) ([]Message, error) {
	return h.store.Messages(ctx, h.scope)
}

// Append adds messages to the end of the history.
func (h History) Append(ctx context.Context, msgs ...Message) error {
	return h.store.Append(ctx, h.scope, msgs...)
}

// MemoryStore is an in-process [HistoryStore]. State is scoped to the
// instance; create one per test or per process component and tear it down
// with [MemoryStore.Reset] rather than sharing an ambient global.
type MemoryStore struct {
	mu        sync.Mutex
	histories map[string][]Message
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{histories: make(map[string][]Message)}
}

func (s *MemoryStore) Messages(_ context.Context, scope ScopeKey) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.histories[scope.String()]
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return cp, nil
}

func (s *MemoryStore) Append(_ context.Context, scope ScopeKey, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.String()
	s.histories[key] = append(s.histories[key], msgs...)
	return nil
}

// Scopes returns the number of histories currently held.
func (s *MemoryStore) Scopes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories)
}

// Reset discards all histories.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[string][]Message)
}

// LRUStore is an in-process [HistoryStore] that retains at most maxScopes
// histories, evicting whole least-recently-used scopes. It bounds the number
// of conversations held in memory, never the length of any one history.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []Message]
}

// NewLRUStore creates an [LRUStore] retaining at most maxScopes histories.
func NewLRUStore(maxScopes int) (*LRUStore, error) {
	cache, err := lru.New[string, []Message](maxScopes)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: cache}, nil
}

func (s *LRUStore) Messages(_ context.Context, scope ScopeKey) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, _ := s.cache.Get(scope.String())
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return cp, nil
}

func (s *LRUStore) Append(_ context.Context, scope ScopeKey, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.String()
	existing, _ := s.cache.Get(key)
	s.cache.Add(key, append(existing, msgs...))
	return nil
}

// Scopes returns the number of histories currently retained.
func (s *LRUStore) Scopes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Reset discards all histories.
func (s *LRUStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

var (
	_ HistoryStore = (*MemoryStore)(nil)
	_ HistoryStore = (*LRUStore)(nil)
)
