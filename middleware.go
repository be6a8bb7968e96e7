// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import "context"

// ChatHandler is the function signature for processing a chat request.
type ChatHandler func(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)

// ChatMiddleware wraps a [ChatHandler] to add cross-cutting behavior.
// Middleware should call next to continue the chain, or return early to
// short-circuit.
type ChatMiddleware func(next ChatHandler) ChatHandler

// ChainChatMiddleware applies middleware in order (first in list = outermost
// wrapper).
func ChainChatMiddleware(handler ChatHandler, mws ...ChatMiddleware) ChatHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// WithHistory returns a [ChatMiddleware] that layers history injection and
// append into an existing chat pipeline. Scope fields are read from the
// request's [ChatOptions] the same way [HistoryClient] reads them.
//
// A failed append surfaces as a [*PersistError] alongside the (still valid)
// response, matching [Invoker.Invoke].
func WithHistory(store HistoryStore, fields ...KeyField) ChatMiddleware {
	if len(fields) == 0 {
		fields = []KeyField{Field(DefaultScopeField)}
	}
	return func(next ChatHandler) ChatHandler {
		return func(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
			scope, err := scopeFromOptions(fields, opts)
			if err != nil {
				return nil, err
			}
			prior, err := store.Messages(ctx, scope)
			if err != nil {
				return nil, wrapUnavailable(err)
			}

			all := make([]Message, 0, len(prior)+len(messages))
			all = append(all, prior...)
			all = append(all, messages...)

			resp, err := next(ctx, all, opts)
			if err != nil {
				return nil, err
			}

			round := append(append([]Message{}, messages...), resp.Messages...)
			if err := store.Append(ctx, scope, round...); err != nil {
				return resp, newPersistError(scope, err)
			}
			return resp, nil
		}
	}
}
