package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-redlock/v1/node"
	"github.com/mirkobrombin/go-redlock/v1/redlock"
)

var (
	nodeAddrs   = flag.String("nodes", "", "Comma-separated redis:// node addresses (empty: 3 in-memory nodes)")
	concurrency = flag.Int("c", 10, "Number of contending workers")
	iterations  = flag.Int("n", 1000, "Acquisitions per worker")
	ttl         = flag.Duration("ttl", time.Second, "Lock TTL")
)

func newManager() (*redlock.Manager, error) {
	if *nodeAddrs == "" {
		adapters := []node.Adapter{node.NewMemory(), node.NewMemory(), node.NewMemory()}
		return redlock.NewWithAdapters(adapters), nil
	}
	return redlock.New(strings.Split(*nodeAddrs, ","))
}

func main() {
	flag.Parse()

	m, err := newManager()
	if err != nil {
		log.Fatalf("Setup failed: %v", err)
	}

	resource := "lockbench:" + uuid.NewString()
	log.Printf("Starting benchmark: %d workers x %d acquisitions on %q (%d nodes, quorum %d)",
		*concurrency, *iterations, resource, m.Nodes(), m.Quorum())

	ctx := context.Background()
	var granted, contended int64

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < *concurrency; i++ {
		g.Go(func() error {
			for j := 0; j < *iterations; j++ {
				lock, err := m.Lock(ctx, resource, *ttl)
				if errors.Is(err, redlock.ErrUnavailable) {
					atomic.AddInt64(&contended, 1)
					continue
				}
				if err != nil {
					return err
				}
				atomic.AddInt64(&granted, 1)
				m.Unlock(ctx, lock)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}
	elapsed := time.Since(start)

	total := granted + contended
	log.Printf("Finished in %v", elapsed)
	log.Printf("Throughput: %.2f attempts/s", float64(total)/elapsed.Seconds())
	log.Printf("Granted: %d, contended: %d (%.1f%%)", granted, contended,
		float64(contended)/float64(total)*100)
}
