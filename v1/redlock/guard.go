package redlock

import (
	"context"
	"sync"

	"github.com/mirkobrombin/go-redlock/v1/metrics"
)

// Guard owns a Lock and releases it exactly once. The intended pattern is
//
//	guard, err := m.AcquireGuard(ctx, "resource", time.Minute)
//	if err != nil {
//	    return err
//	}
//	defer guard.Release()
//
// Release uses a background context so the best-effort unlock fan-out runs
// to completion even when the caller's context is already canceled.
type Guard struct {
	lock *Lock
	once sync.Once
}

// Lock returns the guarded lock, for inspection or for Manager.Extend.
func (g *Guard) Lock() *Lock {
	return g.lock
}

// Release unlocks the guarded lock. Calls after the first are no-ops.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.lock.manager.Unlock(context.Background(), g.lock)
		metrics.GuardGauge.Dec()
		metrics.GuardReleaseCounter.Inc()
	})
}
