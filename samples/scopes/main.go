// Copyright (c) The Threadline Authors. All rights reserved.

// Command scopes demonstrates the invoker around a plain request/response
// transform, using a composite scope key (user_id + conversation_id) and a
// mapping-shaped envelope with a dedicated history field.
//
// The inner transform here is canned so the sample runs offline; swap it for
// a real model call without touching any of the history wiring.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	tl "github.com/threadline-ai/threadline"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := tl.MustNewMetrics(prometheus.NewRegistry())

	tmpl := tl.NewTemplate("You're an assistant who's good at {ability}.")

	// The inner transform receives the full envelope: the newest input under
	// "input", prior messages under "history", and every other field as-is.
	inner := func(_ context.Context, input any) (any, error) {
		vals := input.(tl.Values)
		history := vals["history"].([]tl.Message)
		question := tl.NormalizeMessages(vals["input"])

		persona := tmpl.Render(vals)
		reply := fmt.Sprintf("[%s] After %d prior messages: noted %q.",
			persona, len(history), question[0].Text())
		return tl.NewAssistantMessage(reply), nil
	}

	inv, err := tl.NewInvoker(inner, tl.NewMemoryStore(),
		tl.WithInputKey("input"),
		tl.WithHistoryKey("history"),
		tl.WithScopeFields(tl.Field("user_id"), tl.Field("conversation_id")),
		tl.WithLogger(logger),
		tl.WithMiddleware(
			tl.LoggingMiddleware(logger),
			metrics.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("Failed to create invoker: %v", err)
	}

	ctx := context.Background()
	calls := []struct {
		user, conv, question string
	}{
		{"alice", "math-help", "What does cosine mean?"},
		{"alice", "math-help", "What is its inverse called?"},
		{"alice", "travel", "Where should I go in May?"},
		{"bob", "math-help", "What does cosine mean?"},
	}

	for _, c := range calls {
		cfg := tl.Config{"user_id": c.user, "conversation_id": c.conv}
		out, err := inv.Invoke(ctx, tl.Values{
			"ability": "math",
			"input":   c.question,
		}, cfg)
		if err != nil {
			log.Printf("Error for %s/%s: %v", c.user, c.conv, err)
			continue
		}
		msg := out.(tl.Message)
		fmt.Printf("%s/%s: %s\n", c.user, c.conv, msg.Text())
	}

	// Each (user, conversation) pair kept its own transcript.
	scopes := []struct{ user, conv string }{
		{"alice", "math-help"},
		{"alice", "travel"},
		{"bob", "math-help"},
	}
	for _, c := range scopes {
		cfg := tl.Config{"user_id": c.user, "conversation_id": c.conv}
		hist, err := inv.History(cfg)
		if err != nil {
			log.Fatal(err)
		}
		msgs, err := hist.Messages(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("history %s/%s: %d messages\n", c.user, c.conv, len(msgs))
	}
}
