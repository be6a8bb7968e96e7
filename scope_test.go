// Copyright (c) The Threadline Authors. All rights reserved.

package threadline_test

import (
	"context"
	"errors"
	"testing"

	tl "github.com/threadline-ai/threadline"
)

func TestScopeOf(t *testing.T) {
	k := tl.ScopeOf("u1", "c1")
	if k.IsZero() {
		t.Error("IsZero() = true for a populated key")
	}
	vals := k.Values()
	if len(vals) != 2 || vals[0] != "u1" || vals[1] != "c1" {
		t.Errorf("Values() = %v", vals)
	}
	// Values returns a copy.
	vals[0] = "mutated"
	if k.Values()[0] != "u1" {
		t.Error("Values() aliases internal state")
	}
}

func TestScopeKey_DistinctTuplesNeverAlias(t *testing.T) {
	// A naive join would collapse ("ab","c") and ("a","bc").
	a := tl.ScopeOf("ab", "c")
	b := tl.ScopeOf("a", "bc")
	if a.String() == b.String() {
		t.Errorf("distinct tuples alias: %q", a.String())
	}
}

func TestScopeKey_Field(t *testing.T) {
	inner := func(_ context.Context, input any) (any, error) { return input, nil }
	inv, err := tl.NewInvoker(inner, tl.NewMemoryStore(),
		tl.WithScopeFields(tl.Field("user_id"), tl.Field("conversation_id")),
	)
	if err != nil {
		t.Fatal(err)
	}

	hist, err := inv.History(tl.Config{"user_id": "u1", "conversation_id": "c1"})
	if err != nil {
		t.Fatal(err)
	}
	scope := hist.Scope()
	if v, ok := scope.Field("user_id"); !ok || v != "u1" {
		t.Errorf("Field(user_id) = %q, %v", v, ok)
	}
	if _, ok := scope.Field("tenant_id"); ok {
		t.Error("Field(tenant_id) reported present")
	}
}

func TestScopeFieldValue_RejectsSeparator(t *testing.T) {
	inner := func(_ context.Context, input any) (any, error) { return input, nil }
	inv, err := tl.NewInvoker(inner, tl.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	_, err = inv.History(tl.Config{"session_id": "bad\x1evalue"})
	if !errors.Is(err, tl.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := tl.NewSessionID(), tl.NewSessionID()
	if a == "" || b == "" {
		t.Fatal("empty session id")
	}
	if a == b {
		t.Error("consecutive session ids collide")
	}
}
