package redlock

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisCluster(t *testing.T, n int) (*Manager, []*miniredis.Miniredis, func()) {
	t.Helper()
	servers := make([]*miniredis.Miniredis, n)
	addrs := make([]string, n)
	for i := range servers {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis run: %v", err)
		}
		servers[i] = mr
		addrs[i] = "redis://" + mr.Addr()
	}
	m, err := New(addrs)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.SetRetry(3, 20*time.Millisecond)
	cleanup := func() {
		for _, mr := range servers {
			mr.Close()
		}
	}
	return m, servers, cleanup
}

func TestRedisClusterRoundTrip(t *testing.T) {
	m, servers, cleanup := newRedisCluster(t, 3)
	defer cleanup()
	ctx := context.Background()

	l, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	for i, mr := range servers {
		got, err := mr.Get("res")
		if err != nil {
			t.Fatalf("node %d read: %v", i, err)
		}
		if !bytes.Equal([]byte(got), l.Token()) {
			t.Fatalf("node %d stores %x, want %x", i, got, l.Token())
		}
	}

	l, err = m.Extend(ctx, l, time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	m.Unlock(ctx, l)

	for i, mr := range servers {
		if mr.Exists("res") {
			t.Fatalf("node %d still holds the key after unlock", i)
		}
	}
}

func TestRedisClusterContention(t *testing.T) {
	m, servers, cleanup := newRedisCluster(t, 3)
	defer cleanup()
	ctx := context.Background()

	addrs := make([]string, len(servers))
	for i, mr := range servers {
		addrs[i] = "redis://" + mr.Addr()
	}
	other, err := New(addrs)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	other.SetRetry(3, 20*time.Millisecond)

	held, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := other.Lock(ctx, "res", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("contending lock: %v, want ErrUnavailable", err)
	}
	m.Unlock(ctx, held)
	if _, err := other.Lock(ctx, "res", time.Minute); err != nil {
		t.Fatalf("lock after release: %v", err)
	}
}

func TestRedisClusterExpiryFreesResource(t *testing.T) {
	m, servers, cleanup := newRedisCluster(t, 3)
	defer cleanup()
	ctx := context.Background()

	ttl := 200 * time.Millisecond
	if _, err := m.Lock(ctx, "res", ttl); err != nil {
		t.Fatalf("lock: %v", err)
	}
	for _, mr := range servers {
		mr.FastForward(ttl + 10*time.Millisecond)
	}
	if _, err := m.Lock(ctx, "res", time.Minute); err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}
}

func TestRedisClusterToleratesMinorityLoss(t *testing.T) {
	m, servers, cleanup := newRedisCluster(t, 3)
	defer cleanup()
	ctx := context.Background()

	servers[0].Close()
	l, err := m.Lock(ctx, "res", time.Minute)
	if err != nil {
		t.Fatalf("lock with one node down: %v", err)
	}
	m.Unlock(ctx, l)

	servers[1].Close()
	m.SetRetry(1, time.Millisecond)
	if _, err := m.Lock(ctx, "res2", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("lock with majority down: %v, want ErrUnavailable", err)
	}
}
