// Copyright (c) The Threadline Authors. All rights reserved.

package threadline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tl "github.com/threadline-ai/threadline"
)

// mockClient is a ChatClient that records the messages of every request and
// replies with canned text.
type mockClient struct {
	calls    int
	requests [][]tl.Message
	reply    func(call int) string
	err      error
}

func (m *mockClient) record(messages []tl.Message) {
	m.calls++
	cp := make([]tl.Message, len(messages))
	copy(cp, messages)
	m.requests = append(m.requests, cp)
}

func (m *mockClient) Response(_ context.Context, messages []tl.Message, _ *tl.ChatOptions) (*tl.ChatResponse, error) {
	m.record(messages)
	if m.err != nil {
		return nil, m.err
	}
	return &tl.ChatResponse{
		Messages: []tl.Message{tl.NewAssistantMessage(m.reply(m.calls))},
	}, nil
}

func (m *mockClient) StreamResponse(ctx context.Context, messages []tl.Message, _ *tl.ChatOptions) (*tl.ResponseStream[tl.ChatResponseUpdate], error) {
	m.record(messages)
	if m.err != nil {
		return nil, m.err
	}
	text := m.reply(m.calls)
	return tl.NewResponseStream(ctx, func(ctx context.Context, ch chan<- tl.ChatResponseUpdate) error {
		// Deliver the reply one rune at a time to exercise delta merging.
		for _, r := range text {
			u := tl.ChatResponseUpdate{
				Role:     tl.RoleAssistant,
				Contents: tl.Contents{&tl.TextContent{Text: string(r)}},
			}
			select {
			case ch <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

func numberedText(call int) string {
	return fmt.Sprintf("answer %d", call)
}

func TestHistoryClient_Response_InjectsAndAppends(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := tl.NewMemoryStore()

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	opts := &tl.ChatOptions{ConversationID: "c1"}

	if _, err := client.Response(ctx, []tl.Message{tl.NewUserMessage("first")}, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Response(ctx, []tl.Message{tl.NewUserMessage("second")}, opts); err != nil {
		t.Fatal(err)
	}

	// Second request carries the first round-trip plus the new message.
	got := mock.requests[1]
	if len(got) != 3 {
		t.Fatalf("request len = %d, want 3", len(got))
	}
	if got[0].Text() != "first" || got[1].Text() != "answer 1" || got[2].Text() != "second" {
		t.Errorf("request = %q, %q, %q", got[0].Text(), got[1].Text(), got[2].Text())
	}

	hist, err := client.History(opts)
	if err != nil {
		t.Fatal(err)
	}
	msgs, _ := hist.Messages(ctx)
	if len(msgs) != 4 {
		t.Errorf("history len = %d, want 4", len(msgs))
	}
}

func TestHistoryClient_DistinctConversations(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := tl.NewMemoryStore()

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := client.Response(ctx, []tl.Message{tl.NewUserMessage("for c1")},
		&tl.ChatOptions{ConversationID: "c1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Response(ctx, []tl.Message{tl.NewUserMessage("for c2")},
		&tl.ChatOptions{ConversationID: "c2"}); err != nil {
		t.Fatal(err)
	}

	// The second conversation saw none of the first.
	if len(mock.requests[1]) != 1 {
		t.Errorf("c2 request len = %d, want 1", len(mock.requests[1]))
	}
}

func TestHistoryClient_MetadataScopeFields(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := tl.NewMemoryStore()

	client, err := tl.NewHistoryClient(mock, store,
		tl.WithClientScopeFields(tl.Field("user_id"), tl.Field("session_id")),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	opts := &tl.ChatOptions{
		ConversationID: "sess-9",
		Metadata:       map[string]string{"user_id": "u7"},
	}
	if _, err := client.Response(ctx, []tl.Message{tl.NewUserMessage("hi")}, opts); err != nil {
		t.Fatal(err)
	}

	hist, err := client.History(opts)
	if err != nil {
		t.Fatal(err)
	}
	scope := hist.Scope()
	if v, _ := scope.Field("user_id"); v != "u7" {
		t.Errorf("user_id = %q", v)
	}
	// session_id falls back to ConversationID.
	if v, _ := scope.Field("session_id"); v != "sess-9" {
		t.Errorf("session_id = %q", v)
	}
}

func TestHistoryClient_MissingScope(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	client, err := tl.NewHistoryClient(mock, tl.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Response(context.Background(), []tl.Message{tl.NewUserMessage("hi")}, &tl.ChatOptions{})
	if !errors.Is(err, tl.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	if mock.calls != 0 {
		t.Errorf("inner calls = %d, want 0", mock.calls)
	}
}

func TestHistoryClient_InnerErrorVerbatim(t *testing.T) {
	sentinel := errors.New("rate limited")
	mock := &mockClient{reply: numberedText, err: sentinel}
	store := tl.NewMemoryStore()

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	_, err = client.Response(ctx, []tl.Message{tl.NewUserMessage("hi")}, &tl.ChatOptions{ConversationID: "c1"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want inner error unchanged", err)
	}
	msgs, _ := store.Messages(ctx, tl.ScopeOf("c1"))
	if len(msgs) != 0 {
		t.Errorf("history len = %d, want 0 after failed round-trip", len(msgs))
	}
}

func TestHistoryClient_AppendFailure(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := &flakyStore{inner: tl.NewMemoryStore(), failAppend: true}

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Response(context.Background(),
		[]tl.Message{tl.NewUserMessage("hi")}, &tl.ChatOptions{ConversationID: "c1"})
	if !errors.Is(err, tl.ErrHistoryPersist) {
		t.Fatalf("error = %v, want ErrHistoryPersist", err)
	}
	if resp == nil || resp.Text() != "answer 1" {
		t.Errorf("response = %v, want the model output despite the failed append", resp)
	}
}

func TestHistoryClient_StreamResponse(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := tl.NewMemoryStore()

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	opts := &tl.ChatOptions{ConversationID: "c1"}

	stream, err := client.StreamResponse(ctx, []tl.Message{tl.NewUserMessage("first")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	updates, err := stream.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var text string
	for i := range updates {
		text += updates[i].Text()
	}
	if text != "answer 1" {
		t.Errorf("streamed text = %q", text)
	}

	// The exhausted stream appended the merged round-trip.
	msgs, _ := store.Messages(ctx, tl.ScopeOf("c1"))
	if len(msgs) != 2 {
		t.Fatalf("history len = %d, want 2", len(msgs))
	}
	if msgs[1].Text() != "answer 1" || msgs[1].Role != tl.RoleAssistant {
		t.Errorf("appended = %s %q", msgs[1].Role, msgs[1].Text())
	}

	// A follow-up stream sees the persisted round-trip.
	stream, err = client.StreamResponse(ctx, []tl.Message{tl.NewUserMessage("second")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Collect(ctx); err != nil {
		t.Fatal(err)
	}
	if len(mock.requests[1]) != 3 {
		t.Errorf("second stream request len = %d, want 3", len(mock.requests[1]))
	}
}

func TestHistoryClient_StreamAppendFailure(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := &flakyStore{inner: tl.NewMemoryStore(), failAppend: true}

	client, err := tl.NewHistoryClient(mock, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	stream, err := client.StreamResponse(ctx, []tl.Message{tl.NewUserMessage("hi")},
		&tl.ChatOptions{ConversationID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	updates, err := stream.Collect(ctx)
	if !errors.Is(err, tl.ErrHistoryPersist) {
		t.Fatalf("terminal error = %v, want ErrHistoryPersist", err)
	}
	// Every update was delivered before the failure surfaced.
	if len(updates) == 0 {
		t.Error("no updates delivered")
	}
}

func TestWithHistory_Middleware(t *testing.T) {
	mock := &mockClient{reply: numberedText}
	store := tl.NewMemoryStore()

	var order []string
	logging := func(next tl.ChatHandler) tl.ChatHandler {
		return func(ctx context.Context, messages []tl.Message, opts *tl.ChatOptions) (*tl.ChatResponse, error) {
			order = append(order, fmt.Sprintf("outer: %d messages", len(messages)))
			return next(ctx, messages, opts)
		}
	}
	counting := func(next tl.ChatHandler) tl.ChatHandler {
		return func(ctx context.Context, messages []tl.Message, opts *tl.ChatOptions) (*tl.ChatResponse, error) {
			order = append(order, fmt.Sprintf("inner: %d messages", len(messages)))
			return next(ctx, messages, opts)
		}
	}

	handler := tl.ChainChatMiddleware(mock.Response,
		logging,
		tl.WithHistory(store),
		counting,
	)

	ctx := context.Background()
	opts := &tl.ChatOptions{ConversationID: "c1"}
	if _, err := handler(ctx, []tl.Message{tl.NewUserMessage("first")}, opts); err != nil {
		t.Fatal(err)
	}
	order = nil
	if _, err := handler(ctx, []tl.Message{tl.NewUserMessage("second")}, opts); err != nil {
		t.Fatal(err)
	}

	// The outer middleware sees the raw request, the one inside WithHistory
	// sees the history-augmented request.
	want := []string{"outer: 1 messages", "inner: 3 messages"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestMergeChatOptions(t *testing.T) {
	temp := 0.2
	base := &tl.ChatOptions{
		ModelID:      "base-model",
		Temperature:  &temp,
		Instructions: "Be brief.",
		Metadata:     map[string]string{"user_id": "u1"},
	}
	override := &tl.ChatOptions{
		ModelID:      "override-model",
		Instructions: "Answer in French.",
		Metadata:     map[string]string{"session_id": "s1"},
	}

	merged := tl.MergeChatOptions(base, override)
	if merged.ModelID != "override-model" {
		t.Errorf("ModelID = %q", merged.ModelID)
	}
	if merged.Temperature == nil || *merged.Temperature != 0.2 {
		t.Error("Temperature not carried from base")
	}
	if merged.Instructions != "Be brief.\nAnswer in French." {
		t.Errorf("Instructions = %q", merged.Instructions)
	}
	if merged.Metadata["user_id"] != "u1" || merged.Metadata["session_id"] != "s1" {
		t.Errorf("Metadata = %v", merged.Metadata)
	}
}
