// Copyright (c) The Threadline Authors. All rights reserved.

package threadline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	tl "github.com/threadline-ai/threadline"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := tl.MustNewMetrics(reg)

	inner := func(_ context.Context, input any) (any, error) {
		return tl.NewAssistantMessage("ok"), nil
	}
	inv, err := tl.NewInvoker(inner, tl.NewMemoryStore(),
		tl.WithMiddleware(metrics.Middleware()),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := inv.Invoke(ctx, tl.NewUserMessage("hi"), tl.Config{"session_id": "s1"}); err != nil {
		t.Fatal(err)
	}
	// A config error still counts as an invocation.
	if _, err := inv.Invoke(ctx, tl.NewUserMessage("hi"), tl.Config{}); err == nil {
		t.Fatal("expected config error")
	}

	if got := gatherCounter(t, reg, "threadline_invocations_total"); got != 2 {
		t.Errorf("invocations = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, "threadline_history_persist_failures_total"); got != 0 {
		t.Errorf("persist failures = %v, want 0", got)
	}
}

func TestMetricsMiddleware_PersistFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := tl.MustNewMetrics(reg)

	inner := func(_ context.Context, input any) (any, error) {
		return tl.NewAssistantMessage("ok"), nil
	}
	store := &flakyStore{inner: tl.NewMemoryStore(), failAppend: true}
	inv, err := tl.NewInvoker(inner, store,
		tl.WithMiddleware(metrics.Middleware()),
	)
	if err != nil {
		t.Fatal(err)
	}

	out, err := inv.Invoke(context.Background(), tl.NewUserMessage("hi"), tl.Config{"session_id": "s1"})
	if !errors.Is(err, tl.ErrHistoryPersist) {
		t.Fatalf("error = %v, want ErrHistoryPersist", err)
	}
	if out == nil {
		t.Fatal("result dropped on persist failure")
	}

	if got := gatherCounter(t, reg, "threadline_history_persist_failures_total"); got != 1 {
		t.Errorf("persist failures = %v, want 1", got)
	}
}

func TestMustNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := tl.MustNewMetrics(reg)
	b := tl.MustNewMetrics(reg)
	if a == nil || b == nil {
		t.Fatal("nil metrics")
	}
	// The second construction reuses the registered collectors, so gathering
	// still succeeds with a single family set.
	if _, err := reg.Gather(); err != nil {
		t.Fatal(err)
	}
}
