package redlock

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-redlock/v1/metrics"
	"github.com/mirkobrombin/go-redlock/v1/node"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-redlock/v1/redlock")

const (
	defaultRetryCount = 3
	defaultRetryDelay = 200 * time.Millisecond

	// tokenSize is the length of the random value stored at each node.
	tokenSize = 20

	// driftBase is the fixed overhead added to the proportional clock-drift
	// allowance when computing validity.
	driftBase = 2 * time.Millisecond
)

// Manager coordinates lock acquisition across a fixed set of node adapters.
// Quorum is len(adapters)/2+1, fixed at construction. A Manager holds no
// lock of its own; all correctness-critical synchronization happens at the
// nodes, so concurrent Lock/Extend/Unlock calls need no coordination.
type Manager struct {
	adapters   []node.Adapter
	quorum     int
	retryCount int
	retryDelay time.Duration

	traceEnabled bool

	acquireCounter prometheus.Counter
	failureCounter prometheus.Counter
	extendCounter  prometheus.Counter
	unlockCounter  prometheus.Counter
	roundCounter   prometheus.Counter
	roundLatency   prometheus.Histogram
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics enables Prometheus metrics collection using the provided
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.acquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redlock_acquire_total",
			Help: "Total number of granted lock acquisitions and extensions",
		})
		m.failureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redlock_failures_total",
			Help: "Total number of acquisitions and extensions that exhausted their retries",
		})
		m.extendCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redlock_extend_total",
			Help: "Total number of extension attempts",
		})
		m.unlockCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redlock_unlock_total",
			Help: "Total number of unlock fan-outs",
		})
		m.roundCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redlock_rounds_total",
			Help: "Total number of fan-out rounds, including retried ones",
		})
		m.roundLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redlock_round_latency_seconds",
			Help:    "Latency of a full fan-out round across all nodes",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(m.acquireCounter, m.failureCounter, m.extendCounter,
			m.unlockCounter, m.roundCounter, m.roundLatency)
	}
}

// WithTracing enables OpenTelemetry tracing for lock operations.
func WithTracing() Option {
	return func(m *Manager) {
		m.traceEnabled = true
	}
}

// New returns a Manager connected to the Redis nodes at the given addresses.
// Sample address: "redis://127.0.0.1:6379". Any address that fails to parse
// makes construction fail; construction errors are not retried.
func New(addrs []string, opts ...Option) (*Manager, error) {
	adapters := make([]node.Adapter, 0, len(addrs))
	for _, addr := range addrs {
		ropts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse node address %q: %w", addr, err)
		}
		adapters = append(adapters, node.NewRedis(redis.NewClient(ropts)))
	}
	return NewWithAdapters(adapters, opts...), nil
}

// NewWithAdapters returns a Manager over the given node adapters. The
// adapter list is fixed for the manager's lifetime.
func NewWithAdapters(adapters []node.Adapter, opts ...Option) *Manager {
	m := &Manager{
		adapters:   adapters,
		quorum:     len(adapters)/2 + 1,
		retryCount: defaultRetryCount,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRetry overrides the retry defaults: count is the total number of
// fan-out attempts per Lock/Extend call (default 3), delay the upper bound
// of the uniformly random pause between attempts (default 200ms). Negative
// values are clamped to zero. Call it before sharing the manager across
// goroutines.
func (m *Manager) SetRetry(count int, delay time.Duration) {
	m.retryCount = max(count, 0)
	m.retryDelay = max(delay, 0)
}

// Quorum returns the number of node votes required for an acquisition.
func (m *Manager) Quorum() int {
	return m.quorum
}

// Nodes returns the number of configured node adapters.
func (m *Manager) Nodes() int {
	return len(m.adapters)
}

// Token returns a fresh 20-byte high-entropy lock token.
func (m *Manager) Token() ([]byte, error) {
	buf := make([]byte, tokenSize)
	if _, err := crand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return buf, nil
}

// Lock attempts to acquire resource for the requested TTL. On success the
// returned Lock carries the validity window left after subtracting the
// clock-drift allowance and the round's elapsed time. It fails with
// ErrUnavailable once the configured attempts are exhausted, or with the
// context error if ctx is done between attempts.
func (m *Manager) Lock(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	var span trace.Span
	if m.traceEnabled {
		ctx, span = tracer.Start(ctx, "Redlock.Lock")
		defer span.End()
		span.SetAttributes(attribute.String("redlock.resource", resource))
	}

	token, err := m.Token()
	if err != nil {
		return nil, err
	}

	l, err := m.execOrRetry(ctx, resource, token, ttl, func(ctx context.Context, a node.Adapter) bool {
		ok, err := a.Acquire(ctx, resource, token, ttl)
		return err == nil && ok
	})
	m.observeOutcome(span, l, err)
	return l, err
}

// Extend re-arms the TTL of a held lock, reusing its token. On success it
// returns a new Lock with a refreshed validity window; the old Lock should
// be discarded. A lock whose token no longer matches what the nodes hold
// (expired, replaced or already released) fails with ErrUnavailable.
func (m *Manager) Extend(ctx context.Context, l *Lock, ttl time.Duration) (*Lock, error) {
	var span trace.Span
	if m.traceEnabled {
		ctx, span = tracer.Start(ctx, "Redlock.Extend")
		defer span.End()
		span.SetAttributes(attribute.String("redlock.resource", l.resource))
	}
	if m.extendCounter != nil {
		m.extendCounter.Inc()
	}

	next, err := m.execOrRetry(ctx, l.resource, l.token, ttl, func(ctx context.Context, a node.Adapter) bool {
		ok, err := a.Extend(ctx, l.resource, l.token, ttl)
		return err == nil && ok
	})
	m.observeOutcome(span, next, err)
	return next, err
}

// Unlock releases the lock at every node on a best-effort basis. Nodes that
// are unreachable keep the key until their own TTL removes it; Unlock never
// reports failure.
func (m *Manager) Unlock(ctx context.Context, l *Lock) {
	var span trace.Span
	if m.traceEnabled {
		ctx, span = tracer.Start(ctx, "Redlock.Unlock")
		defer span.End()
		span.SetAttributes(attribute.String("redlock.resource", l.resource))
	}
	if m.unlockCounter != nil {
		m.unlockCounter.Inc()
	}
	m.releaseAll(ctx, l.resource, l.token)
}

// Acquire blocks until the lock is granted or ctx is done. Contention shows
// up as repeated Lock calls, each already bounded by the retry settings; no
// extra backoff is added between them, so callers must bound Acquire with a
// deadline or cancellation when the resource may stay contended.
func (m *Manager) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	for {
		l, err := m.Lock(ctx, resource, ttl)
		switch {
		case err == nil:
			return l, nil
		case errors.Is(err, ErrUnavailable):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		default:
			return nil, err
		}
	}
}

// AcquireGuard blocks like Acquire and wraps the granted lock in a Guard
// that releases it exactly once.
func (m *Manager) AcquireGuard(ctx context.Context, resource string, ttl time.Duration) (*Guard, error) {
	l, err := m.Acquire(ctx, resource, ttl)
	if err != nil {
		return nil, err
	}
	metrics.GuardGauge.Inc()
	return &Guard{lock: l}, nil
}

// execOrRetry runs the shared acquisition/extension round: fan the node
// primitive out to all adapters, join every outcome, tally votes, and grant
// only on quorum with positive drift-adjusted validity. Partial grants are
// rolled back and retried after a uniformly random pause in [0, retryDelay).
func (m *Manager) execOrRetry(ctx context.Context, resource string, token []byte, ttl time.Duration, op func(context.Context, node.Adapter) bool) (*Lock, error) {
	for attempt := 0; attempt < m.retryCount; attempt++ {
		if attempt > 0 {
			if err := m.backoff(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		votes := m.fanOut(ctx, op)
		elapsed := time.Since(start)

		drift := ttl/100 + driftBase
		validity := ttl - drift - elapsed

		if m.roundCounter != nil {
			m.roundCounter.Inc()
		}
		if m.roundLatency != nil {
			m.roundLatency.Observe(elapsed.Seconds())
		}

		if votes >= m.quorum && validity > 0 {
			return &Lock{
				manager:  m,
				resource: resource,
				token:    token,
				validity: validity,
			}, nil
		}

		// Undo any partial acquisition before trying again.
		m.releaseAll(ctx, resource, token)
	}
	return nil, ErrUnavailable
}

// fanOut invokes op against every adapter concurrently and waits for all of
// them, returning the number of successes. It never short-circuits: the
// exact vote count and the full round duration both feed the validity
// computation.
func (m *Manager) fanOut(ctx context.Context, op func(context.Context, node.Adapter) bool) int {
	var votes atomic.Int64
	var g errgroup.Group
	for _, a := range m.adapters {
		a := a
		g.Go(func() error {
			if op(ctx, a) {
				votes.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(votes.Load())
}

// releaseAll fans the release primitive out to every node, discarding all
// results.
func (m *Manager) releaseAll(ctx context.Context, resource string, token []byte) {
	m.fanOut(ctx, func(ctx context.Context, a node.Adapter) bool {
		ok, err := a.Release(ctx, resource, token)
		return err == nil && ok
	})
}

// backoff sleeps a uniformly random duration in [0, retryDelay), honoring
// ctx cancellation.
func (m *Manager) backoff(ctx context.Context) error {
	if m.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(mrand.Int63n(int64(m.retryDelay))))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) observeOutcome(span trace.Span, l *Lock, err error) {
	if err != nil {
		if m.failureCounter != nil && errors.Is(err, ErrUnavailable) {
			m.failureCounter.Inc()
		}
		if m.traceEnabled {
			span.SetAttributes(attribute.String("redlock.result", "unavailable"))
		}
		return
	}
	if m.acquireCounter != nil {
		m.acquireCounter.Inc()
	}
	if m.traceEnabled {
		span.SetAttributes(
			attribute.String("redlock.result", "granted"),
			attribute.Int64("redlock.validity_ms", l.validity.Milliseconds()),
		)
	}
}
