// Package engine implements the concurrent actor runtime that the rest of
// cortex is built on: a fixed-size worker pool pulls actor handles off a
// shared ready queue, and at most one worker ever holds a given actor's
// busy mutex at a time.
package engine

import "fmt"

// PID is an opaque handle to a spawned actor. It is a plain uint64 rather
// than a struct so it can live directly inside the u64-keyed concurrent map
// that the knowledge facade uses for its registries.
//
// PID 0 is reserved and never assigned by Spawn (the pid counter is
// pre-incremented starting from 1); callers use it as the sender id for
// messages that originate outside the actor system.
type PID uint64

// External is the sender id used for messages sent by code that is not
// itself an actor (e.g. the knowledge facade).
const External PID = 0

// String renders the PID the way log lines and error messages expect.
func (p PID) String() string {
	return fmt.Sprintf("pid-%d", uint64(p))
}
