// Copyright (c) The Threadline Authors. All rights reserved.

// Package redisstore provides a Redis-backed history store. It speaks to
// Redis through a narrow [Client] interface so any driver (go-redis, rueidis,
// a cluster client) can back it with a few lines of adapter code.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tl "github.com/threadline-ai/threadline"
)

// Client is the minimal Redis surface the store needs.
type Client interface {
	// Get returns the value at key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Store is a [tl.HistoryStore] that keeps each scope's history as a JSON
// array under a single key. Read-modify-write appends assume one writer per
// scope, which holds for the sequential invocation pattern.
type Store struct {
	client Client
	prefix string
	ttl    time.Duration
}

var _ tl.HistoryStore = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithPrefix sets the key prefix. Defaults to "threadline:history:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL sets a per-scope expiry, refreshed on every append. Zero (the
// default) keeps histories forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New creates a Store on top of client.
func New(client Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", tl.ErrConfig)
	}
	s := &Store{
		client: client,
		prefix: "threadline:history:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) key(scope tl.ScopeKey) string {
	return s.prefix + scope.String()
}

// Messages returns the scope's history in chronological order.
func (s *Store) Messages(ctx context.Context, scope tl.ScopeKey) ([]tl.Message, error) {
	raw, found, err := s.client.Get(ctx, s.key(scope))
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if !found {
		return nil, nil
	}
	var msgs []tl.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("decode stored history: %w", err)
	}
	return msgs, nil
}

// Append adds messages to the end of the scope's history.
func (s *Store) Append(ctx context.Context, scope tl.ScopeKey, msgs ...tl.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	existing, err := s.Messages(ctx, scope)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(append(existing, msgs...))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.client.Set(ctx, s.key(scope), string(raw), s.ttl); err != nil {
		return fmt.Errorf("set history: %w", err)
	}
	return nil
}
