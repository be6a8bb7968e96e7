// Copyright (c) The Threadline Authors. All rights reserved.

// Package threadline attaches conversation history to request/response
// pipelines. It wraps an arbitrary inner transform so that every call is
// preceded by loading the message history for a caller-supplied scope key,
// and followed by appending the round-trip back to that history. The inner
// transform needs no history logic of its own.
//
// # Quick Start
//
// Wrap a ChatClient (e.g., from the openai package) so it remembers
// conversations:
//
//	client, err := threadline.NewHistoryClient(inner, threadline.NewMemoryStore())
//
//	resp, err := client.Response(ctx,
//	    []threadline.Message{threadline.NewUserMessage("What does cosine mean?")},
//	    &threadline.ChatOptions{ConversationID: "abc123"},
//	)
//
// Calls sharing a ConversationID share a history; distinct IDs are fully
// disjoint.
//
// # Architecture
//
// The package is organized around these key abstractions:
//
//   - [Invoker]: wraps any [Handler] with history injection and append,
//     for both flat message-sequence inputs and mapping-shaped envelopes.
//   - [HistoryStore]: capability interface histories live behind
//     (in-memory, LRU-bounded, SQLite, Redis; see the store subpackages).
//   - [ScopeKey]: ordered named fields selecting which history a call
//     affects, supplied out-of-band via a per-call [Config].
//   - [ChatClient]: interface for LLM backends; [HistoryClient] makes any
//     implementation history-aware, including streaming.
//   - [Middleware] / [ChatMiddleware]: cross-cutting hooks (logging,
//     metrics) around invocations.
//
// # Scope Keys
//
// By default a single "session_id" field forms the key. Composite keys are
// configured at construction:
//
//	inv, err := threadline.NewInvoker(inner, store,
//	    threadline.WithScopeFields(
//	        threadline.Field("user_id"),
//	        threadline.Field("conversation_id"),
//	    ),
//	)
//
//	out, err := inv.Invoke(ctx, input, threadline.Config{
//	    "user_id":         "u-7",
//	    "conversation_id": "c-42",
//	})
//
// # Error Semantics
//
// Configuration and history-read failures abort a call before the inner
// transform runs. Inner transform errors propagate verbatim. A failed append
// after a successful inner call still returns the result, alongside a
// [*PersistError]; nothing is ever retried.
package threadline
