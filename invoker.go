// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler is the inner request/response transform wrapped by an [Invoker].
// It receives the history-augmented input and needs no history logic of its
// own. Input and output shapes are described on [Invoker].
type Handler func(ctx context.Context, input any) (any, error)

// InvokeFunc is the full invocation signature, including the out-of-band
// per-call [Config]. Middleware wraps this.
type InvokeFunc func(ctx context.Context, input any, cfg Config) (any, error)

// Middleware wraps an [InvokeFunc] to add cross-cutting behavior. Middleware
// should call next to continue the chain, or return early to short-circuit.
type Middleware func(next InvokeFunc) InvokeFunc

// Invoker wraps an inner [Handler] so every invocation reads the scope's
// history before the call and appends the round-trip after it.
//
// Inputs take one of two shapes:
//
//   - flat: a string, [Message], or []Message. The augmented input is the
//     prior history concatenated with the newest messages, as []Message.
//   - mapping: a [Values] whose configured input key holds the newest
//     message(s). The configured history key receives the prior messages;
//     every other field passes through untouched.
//
// Outputs are coerced symmetrically: a [*ChatResponse], a bare string
// (treated as an assistant reply), a [Message] or []Message, or a [Values]
// whose configured output key holds the produced message(s).
type Invoker struct {
	inner      Handler
	store      HistoryStore
	inputKey   string
	historyKey string
	outputKey  string
	keyFields  []KeyField
	logger     *slog.Logger
	invoke     InvokeFunc
}

// Option configures an [Invoker] via [NewInvoker].
type Option func(*Invoker)

// WithInputKey names the mapping field that holds the newest message(s).
// Required before mapping-shaped inputs are accepted.
func WithInputKey(key string) Option {
	return func(iv *Invoker) { iv.inputKey = key }
}

// WithHistoryKey names the mapping field that receives the prior messages.
// When omitted, prior messages are prepended into the input key instead.
func WithHistoryKey(key string) Option {
	return func(iv *Invoker) { iv.historyKey = key }
}

// WithOutputKey names the mapping field of the output that holds the
// message(s) to append. When omitted, the whole output is coerced.
func WithOutputKey(key string) Option {
	return func(iv *Invoker) { iv.outputKey = key }
}

// WithScopeFields sets the ordered fields forming the scope key.
// The default is a single required [DefaultScopeField].
func WithScopeFields(fields ...KeyField) Option {
	return func(iv *Invoker) { iv.keyFields = fields }
}

// WithLogger sets the logger used for invocation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(iv *Invoker) { iv.logger = logger }
}

// WithMiddleware adds [Middleware] around the invocation
// (first in list = outermost wrapper).
func WithMiddleware(mws ...Middleware) Option {
	return func(iv *Invoker) {
		iv.invoke = chainMiddleware(iv.invoke, mws...)
	}
}

// NewInvoker creates an [Invoker] wrapping inner with history resolved
// through store. All configuration is validated here, not at call time.
func NewInvoker(inner Handler, store HistoryStore, opts ...Option) (*Invoker, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner transform is required", ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: history store is required", ErrConfig)
	}
	iv := &Invoker{
		inner:     inner,
		store:     store,
		keyFields: []KeyField{Field(DefaultScopeField)},
		logger:    slog.Default(),
	}
	iv.invoke = iv.run
	for _, opt := range opts {
		opt(iv)
	}
	if err := validateKeyFields(iv.keyFields); err != nil {
		return nil, err
	}
	if iv.historyKey != "" && iv.inputKey == "" {
		return nil, fmt.Errorf("%w: history key requires an input key", ErrConfig)
	}
	if iv.historyKey != "" && iv.historyKey == iv.inputKey {
		return nil, fmt.Errorf("%w: history key and input key must differ", ErrConfig)
	}
	return iv, nil
}

// Invoke runs one history-augmented call. See [Invoker] for shapes and the
// package documentation for error semantics. Invoking twice with the same
// scope appends the round-trip twice; nothing is deduplicated or retried.
func (iv *Invoker) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return iv.invoke(ctx, input, cfg)
}

// History resolves the history handle a call with cfg would read and append.
func (iv *Invoker) History(cfg Config) (History, error) {
	scope, err := scopeFromConfig(iv.keyFields, cfg)
	if err != nil {
		return History{}, err
	}
	return NewHistory(iv.store, scope), nil
}

// run is the base invocation called by the middleware chain. The call path
// is strictly sequential: scope extraction, history read, inner invocation,
// append. No step is retried.
func (iv *Invoker) run(ctx context.Context, input any, cfg Config) (any, error) {
	scope, err := scopeFromConfig(iv.keyFields, cfg)
	if err != nil {
		return nil, err
	}

	prior, err := iv.store.Messages(ctx, scope)
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	newest, augmented, err := iv.augment(input, prior)
	if err != nil {
		return nil, err
	}

	iv.logger.DebugContext(ctx, "history-scoped invoke",
		"scope", scope.String(),
		"prior_messages", len(prior),
		"new_messages", len(newest),
	)

	// Inner transform errors propagate verbatim.
	out, err := iv.inner(ctx, augmented)
	if err != nil {
		return nil, err
	}

	produced := iv.produced(out)
	if err := iv.store.Append(ctx, scope, append(newest, produced...)...); err != nil {
		perr := newPersistError(scope, err)
		iv.logger.WarnContext(ctx, "history append failed",
			"scope", scope.String(),
			"error", perr,
		)
		return out, perr
	}

	return out, nil
}

// augment splits the newest messages out of input and builds the
// history-injected input for the inner transform.
func (iv *Invoker) augment(input any, prior []Message) (newest []Message, augmented any, err error) {
	if vals, ok := input.(Values); ok {
		if iv.inputKey == "" {
			return nil, nil, fmt.Errorf("%w: mapping input requires an input messages key", ErrConfig)
		}
		newest = inputMessages(vals[iv.inputKey])
		out := vals.Clone()
		if iv.historyKey != "" {
			// Prior history lands in its own field; the newest messages
			// stay where the caller put them.
			hist := prior
			if hist == nil {
				hist = []Message{}
			}
			out[iv.historyKey] = hist
		} else {
			out[iv.inputKey] = append(append([]Message{}, prior...), newest...)
		}
		return newest, out, nil
	}

	newest = inputMessages(input)
	if len(newest) == 0 && input != nil {
		return nil, nil, fmt.Errorf("%w: unsupported input type %T", ErrConfig, input)
	}
	flat := make([]Message, 0, len(prior)+len(newest))
	flat = append(flat, prior...)
	flat = append(flat, newest...)
	return newest, flat, nil
}

// produced extracts the output message(s) to append to history.
func (iv *Invoker) produced(out any) []Message {
	if vals, ok := out.(Values); ok && iv.outputKey != "" {
		return outputMessages(vals[iv.outputKey])
	}
	return outputMessages(out)
}

// chainMiddleware applies middleware in order (first in list = outermost wrapper).
func chainMiddleware(fn InvokeFunc, mws ...Middleware) InvokeFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](fn)
	}
	return fn
}
