// Package node defines the storage node adapter contract consumed by the
// redlock manager, together with a Redis implementation and an in-memory
// implementation. Each adapter exposes three atomic primitives against one
// node: acquire (set-if-absent with expiry), extend (check-and-reset expiry)
// and release (check-and-delete). Adapters are safe for concurrent use.
package node
