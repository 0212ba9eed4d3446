// Package redlock implements quorum-based distributed mutual exclusion over
// a set of independent, unsynchronized storage nodes. A Manager fans each
// acquisition out to every node, counts votes, and grants a Lock only when a
// majority of nodes accepted it and the drift-adjusted validity window is
// still positive. Losing a minority of nodes does not prevent acquisition.
//
// The algorithm assumes bounded network delay and bounded clock drift; it is
// not a consensus protocol and offers no safety under unbounded process
// pauses.
package redlock
