package engine

// Context is passed to Actor.Receive for each message. It is a narrow
// capability interface rather than handing the actor the whole engine or
// process struct.
type Context interface {
	// Engine returns the runtime so a handler can Send, Spawn or Poison.
	Engine() *Engine
	// Self returns the PID of the actor processing this message.
	Self() PID
	// Sender returns the PID of the actor (or External) that sent it.
	Sender() PID
	// Message returns the payload being processed.
	Message() Payload
}

type context struct {
	engine  *Engine
	self    PID
	sender  PID
	message Payload
}

func (c *context) Engine() *Engine  { return c.engine }
func (c *context) Self() PID        { return c.self }
func (c *context) Sender() PID      { return c.sender }
func (c *context) Message() Payload { return c.message }
