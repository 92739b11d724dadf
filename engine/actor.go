package engine

// Actor is the interface every spawned behavior implements. Receive
// processes one message at a time; the engine guarantees no two calls to
// Receive for the same actor ever overlap.
type Actor interface {
	Receive(ctx Context)
}

// Producer creates a new Actor instance. It is called synchronously by
// Spawn, before the PID is returned, so the actor's fields are fully
// initialized before any message can reach it.
type Producer func() Actor

// Props configures how Spawn creates an actor.
type Props struct {
	produce Producer
}

// NewProps wraps a Producer in a Props. Panics if producer is nil, since a
// Props that can't produce an actor is a programming error, not a runtime
// condition.
func NewProps(producer Producer) *Props {
	if producer == nil {
		panic("engine: producer cannot be nil")
	}
	return &Props{produce: producer}
}
