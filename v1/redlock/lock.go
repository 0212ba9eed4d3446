package redlock

import "time"

// Lock is an immutable snapshot of a granted acquisition. It carries the
// resource key, the 20-byte token proving ownership, and the validity window
// estimated at grant time. Extending a lock produces a new Lock value; the
// old one should be discarded.
type Lock struct {
	manager  *Manager
	resource string
	token    []byte
	validity time.Duration
}

// Resource returns the locked resource key.
func (l *Lock) Resource() string {
	return l.resource
}

// Token returns a copy of the token stored at the nodes for this lock.
func (l *Lock) Token() []byte {
	return append([]byte(nil), l.token...)
}

// Validity returns the estimated remaining safe lifetime of the lock at the
// moment it was granted or last extended. It is a decreasing approximation:
// wall-clock time keeps passing after the estimate is taken, and expiry is
// enforced by each node's own TTL, not tracked here.
func (l *Lock) Validity() time.Duration {
	return l.validity
}
