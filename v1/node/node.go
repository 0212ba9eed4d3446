package node

import (
	"context"
	"time"
)

// Adapter is a client for a single storage node. The manager fans each lock
// round out to every adapter and counts votes; it treats a returned error
// exactly like ok=false, so implementations should report transport and
// protocol failures through the error value rather than panic or retry.
type Adapter interface {
	// Acquire sets resource=token with the given expiry, only if the
	// resource is currently absent. Returns true if the node accepted the
	// write in a single round trip.
	Acquire(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error)

	// Extend resets the expiry of resource to ttl, only if the stored value
	// equals token. A mismatch or missing key is a no-op returning false.
	Extend(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error)

	// Release deletes resource, only if the stored value equals token.
	// A mismatch or missing key is a no-op returning false.
	Release(ctx context.Context, resource string, token []byte) (bool, error)
}
