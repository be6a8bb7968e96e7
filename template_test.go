// Copyright (c) The Threadline Authors. All rights reserved.

package threadline_test

import (
	"testing"

	tl "github.com/threadline-ai/threadline"
)

func TestTemplate_Render(t *testing.T) {
	tmpl := tl.NewTemplate("You're an assistant who's good at {ability}. Limit: {limit} words.")

	got := tmpl.Render(tl.Values{
		"ability": "math",
		"limit":   50,
		"input":   tl.NewUserMessage("ignored"),
	})
	want := "You're an assistant who's good at math. Limit: 50 words."
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestTemplate_MissingPlaceholderLeftVerbatim(t *testing.T) {
	tmpl := tl.NewTemplate("Hello {name}, welcome to {place}.")
	got := tmpl.Render(tl.Values{"name": "Ada"})
	if got != "Hello Ada, welcome to {place}." {
		t.Errorf("Render() = %q", got)
	}
}

func TestTemplate_EmptyValues(t *testing.T) {
	tmpl := tl.NewTemplate("static text")
	if got := tmpl.Render(nil); got != "static text" {
		t.Errorf("Render(nil) = %q", got)
	}
	if tmpl.String() != "static text" {
		t.Errorf("String() = %q", tmpl.String())
	}
}
