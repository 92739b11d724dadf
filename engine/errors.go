package engine

import "errors"

// ErrActorGone is returned by Send when the target actor has been poisoned.
var ErrActorGone = errors.New("engine: actor is gone")

// ErrMailboxFull is returned by Send when the target's bounded mailbox has
// no room for the message. The runtime never silently drops a message it
// was asked to deliver — a full mailbox is reported, not swallowed.
var ErrMailboxFull = errors.New("engine: actor mailbox is full")
