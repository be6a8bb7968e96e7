// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"context"
	"fmt"
	"log/slog"
)

// ChatClient is the interface for interacting with an LLM backend.
// Provider packages (e.g., openai) implement this interface.
type ChatClient interface {
	// Response sends messages to the model and returns a complete response.
	Response(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)

	// StreamResponse sends messages and returns a stream of incremental updates.
	StreamResponse(ctx context.Context, messages []Message, opts *ChatOptions) (*ResponseStream[ChatResponseUpdate], error)
}

// ChatOptions configures a single chat request. Pointer fields use nil to
// represent "unset" (use provider default). ConversationID and Metadata are
// also the out-of-band channel [HistoryClient] reads scope fields from.
type ChatOptions struct {
	ModelID          string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	Stop             []string
	Seed             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Metadata         map[string]string
	User             string
	Instructions     string
	ConversationID   string

	// Extra holds provider-specific options not covered by standard fields.
	Extra map[string]any
}

// MergeChatOptions produces a new ChatOptions by overlaying override values
// onto base. Nil or zero-value fields in override do not overwrite base.
// Metadata is merged (override keys win). Instructions are concatenated.
func MergeChatOptions(base, override *ChatOptions) *ChatOptions {
	if base == nil {
		if override == nil {
			return &ChatOptions{}
		}
		cp := *override
		return &cp
	}
	if override == nil {
		cp := *base
		return &cp
	}

	merged := *base

	if override.ModelID != "" {
		merged.ModelID = override.ModelID
	}
	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = override.Stop
	}
	if override.Seed != nil {
		merged.Seed = override.Seed
	}
	if override.FrequencyPenalty != nil {
		merged.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		merged.PresencePenalty = override.PresencePenalty
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.ConversationID != "" {
		merged.ConversationID = override.ConversationID
	}

	// Instructions: concatenate
	if override.Instructions != "" {
		if merged.Instructions != "" {
			merged.Instructions += "\n" + override.Instructions
		} else {
			merged.Instructions = override.Instructions
		}
	}

	// Metadata: merge maps
	if len(override.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]string, len(override.Metadata))
		}
		for k, v := range override.Metadata {
			merged.Metadata[k] = v
		}
	}

	// Extra: merge maps
	if len(override.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(override.Extra))
		}
		for k, v := range override.Extra {
			merged.Extra[k] = v
		}
	}

	return &merged
}

// HistoryClient wraps a [ChatClient] so every request carries the scope's
// prior messages and every round-trip is appended back to the store. The
// wrapped client needs no history logic of its own.
//
// Scope fields are read per call from [ChatOptions]: the [DefaultScopeField]
// maps to ConversationID, every other field name to a Metadata entry.
type HistoryClient struct {
	inner     ChatClient
	store     HistoryStore
	keyFields []KeyField
	logger    *slog.Logger
}

// Verify interface compliance at compile time.
var _ ChatClient = (*HistoryClient)(nil)

// ClientOption configures a [HistoryClient].
type ClientOption func(*HistoryClient)

// WithClientScopeFields sets the ordered fields forming the scope key.
func WithClientScopeFields(fields ...KeyField) ClientOption {
	return func(c *HistoryClient) { c.keyFields = fields }
}

// WithClientLogger sets the logger used for diagnostics.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *HistoryClient) { c.logger = logger }
}

// NewHistoryClient wraps inner with history resolved through store.
func NewHistoryClient(inner ChatClient, store HistoryStore, opts ...ClientOption) (*HistoryClient, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner chat client is required", ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: history store is required", ErrConfig)
	}
	c := &HistoryClient{
		inner:     inner,
		store:     store,
		keyFields: []KeyField{Field(DefaultScopeField)},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := validateKeyFields(c.keyFields); err != nil {
		return nil, err
	}
	return c, nil
}

// History resolves the history handle a request with opts would use.
func (c *HistoryClient) History(opts *ChatOptions) (History, error) {
	scope, err := scopeFromOptions(c.keyFields, opts)
	if err != nil {
		return History{}, err
	}
	return NewHistory(c.store, scope), nil
}

// Response sends the scope's history plus messages to the wrapped client and
// appends the round-trip on success. A failed append still returns the
// response, alongside a [*PersistError].
func (c *HistoryClient) Response(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
	scope, prior, err := c.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	all := make([]Message, 0, len(prior)+len(messages))
	all = append(all, prior...)
	all = append(all, messages...)

	resp, err := c.inner.Response(ctx, all, opts)
	if err != nil {
		return nil, err
	}

	round := append(append([]Message{}, messages...), resp.Messages...)
	if err := c.store.Append(ctx, scope, round...); err != nil {
		perr := newPersistError(scope, err)
		c.logger.WarnContext(ctx, "history append failed",
			"scope", scope.String(),
			"error", perr,
		)
		return resp, perr
	}
	return resp, nil
}

// StreamResponse streams from the wrapped client with history injected. When
// the stream is exhausted the merged updates are appended to the history; an
// append failure surfaces as the stream's terminal error, after every update
// has already been delivered.
func (c *HistoryClient) StreamResponse(ctx context.Context, messages []Message, opts *ChatOptions) (*ResponseStream[ChatResponseUpdate], error) {
	scope, prior, err := c.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	all := make([]Message, 0, len(prior)+len(messages))
	all = append(all, prior...)
	all = append(all, messages...)

	inner, err := c.inner.StreamResponse(ctx, all, opts)
	if err != nil {
		return nil, err
	}

	return NewResponseStream(ctx, func(ctx context.Context, ch chan<- ChatResponseUpdate) error {
		defer inner.Close()
		var updates []ChatResponseUpdate
		for {
			u, ok, err := inner.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			updates = append(updates, u)
			select {
			case ch <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp := ChatResponseFromUpdates(updates)
		round := append(append([]Message{}, messages...), resp.Messages...)
		if err := c.store.Append(ctx, scope, round...); err != nil {
			perr := newPersistError(scope, err)
			c.logger.WarnContext(ctx, "history append failed",
				"scope", scope.String(),
				"error", perr,
			)
			return perr
		}
		return nil
	}), nil
}

func (c *HistoryClient) load(ctx context.Context, opts *ChatOptions) (ScopeKey, []Message, error) {
	scope, err := scopeFromOptions(c.keyFields, opts)
	if err != nil {
		return ScopeKey{}, nil, err
	}
	prior, err := c.store.Messages(ctx, scope)
	if err != nil {
		return ScopeKey{}, nil, wrapUnavailable(err)
	}
	c.logger.DebugContext(ctx, "history loaded",
		"scope", scope.String(),
		"prior_messages", len(prior),
	)
	return scope, prior, nil
}

// scopeFromOptions maps scope fields onto the chat request's out-of-band
// channel: DefaultScopeField reads ConversationID, other names read Metadata.
func scopeFromOptions(fields []KeyField, opts *ChatOptions) (ScopeKey, error) {
	cfg := make(Config, len(fields))
	if opts != nil {
		for _, f := range fields {
			if f.Name == DefaultScopeField && opts.ConversationID != "" {
				cfg[f.Name] = opts.ConversationID
				continue
			}
			if v, ok := opts.Metadata[f.Name]; ok {
				cfg[f.Name] = v
			}
		}
	}
	return scopeFromConfig(fields, cfg)
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
}
