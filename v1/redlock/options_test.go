package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mirkobrombin/go-redlock/v1/metrics"
)

func TestWithMetricsCountsOutcomes(t *testing.T) {
	adapters, _ := memoryNodes(3)
	reg := metrics.NewRegistry()
	m := NewWithAdapters(adapters, WithMetrics(reg))
	m.SetRetry(2, time.Millisecond)
	ctx := context.Background()

	l, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := testutil.ToFloat64(m.acquireCounter); got != 1 {
		t.Fatalf("acquire counter %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.roundCounter); got != 1 {
		t.Fatalf("round counter %v, want 1", got)
	}

	other := NewWithAdapters(adapters, WithMetrics(metrics.NewRegistry()))
	other.SetRetry(2, time.Millisecond)
	if _, err := other.Lock(ctx, "res", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("contending lock: %v, want ErrUnavailable", err)
	}
	if got := testutil.ToFloat64(other.failureCounter); got != 1 {
		t.Fatalf("failure counter %v, want 1", got)
	}
	if got := testutil.ToFloat64(other.roundCounter); got != 2 {
		t.Fatalf("round counter %v, want 2 (both attempts)", got)
	}

	m.Unlock(ctx, l)
	if got := testutil.ToFloat64(m.unlockCounter); got != 1 {
		t.Fatalf("unlock counter %v, want 1", got)
	}

	l2, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	if _, err := m.Extend(ctx, l2, time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if got := testutil.ToFloat64(m.extendCounter); got != 1 {
		t.Fatalf("extend counter %v, want 1", got)
	}
}

func TestWithTracingDoesNotAlterBehavior(t *testing.T) {
	adapters, _ := memoryNodes(3)
	m := NewWithAdapters(adapters, WithTracing())
	m.SetRetry(2, time.Millisecond)
	ctx := context.Background()

	l, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	l, err = m.Extend(ctx, l, time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	m.Unlock(ctx, l)
}
