// Copyright (c) The Threadline Authors. All rights reserved.

package threadline_test

import (
	"encoding/json"
	"strings"
	"testing"

	tl "github.com/threadline-ai/threadline"
)

func TestContents_JSONRoundTrip(t *testing.T) {
	in := tl.Contents{
		&tl.TextContent{Text: "hello"},
		&tl.FunctionCallContent{CallID: "call-1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"$type"`) {
		t.Fatalf("no $type discriminator in %s", data)
	}

	var out tl.Contents
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	text, ok := out[0].(*tl.TextContent)
	if !ok || text.Text != "hello" {
		t.Errorf("[0] = %#v", out[0])
	}
	call, ok := out[1].(*tl.FunctionCallContent)
	if !ok || call.Name != "get_weather" || call.CallID != "call-1" {
		t.Errorf("[1] = %#v", out[1])
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	in := tl.Message{
		Role:      tl.RoleAssistant,
		MessageID: "m1",
		Contents: tl.Contents{
			&tl.TextContent{Text: "stored reply"},
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out tl.Message
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Role != tl.RoleAssistant || out.MessageID != "m1" || out.Text() != "stored reply" {
		t.Errorf("round-trip = %+v", out)
	}
}

func TestUnmarshalContent_UnknownType(t *testing.T) {
	var out tl.Contents
	err := json.Unmarshal([]byte(`[{"$type":"hologram"}]`), &out)
	if err == nil {
		t.Fatal("expected error for unknown $type")
	}
}
