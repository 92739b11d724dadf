package engine

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// envelope pairs a payload with the PID that sent it.
type envelope struct {
	sender  PID
	payload Payload
}

// process is the runtime container for one actor: its mailbox, its busy
// mutex, and the bookkeeping the worker pool needs to schedule it fairly
// against every other actor without ever running it on two workers at
// once.
type process struct {
	pid    PID
	engine *Engine
	actor  Actor

	mailbox chan *envelope
	busyMu  sync.Mutex

	poisoned  atomic.Bool
	scheduled atomic.Bool

	// pending counts messages that have been accepted into the mailbox
	// but not yet fully handled (delivered, or drained-and-destroyed if
	// poisoned). pending == 0 is exactly "mailbox empty and no worker is
	// currently processing a message for this actor" — the completion
	// signal a waiter needs — without having to separately inspect
	// mailbox length and busy-mutex state, which would otherwise race.
	idleMu   sync.Mutex
	idleCond *sync.Cond
	pending  int
}

func newProcess(e *Engine, pid PID, actor Actor, mailboxSize int) *process {
	p := &process{
		pid:     pid,
		engine:  e,
		actor:   actor,
		mailbox: make(chan *envelope, mailboxSize),
	}
	p.idleCond = sync.NewCond(&p.idleMu)
	return p
}

// enqueue accepts a message into the mailbox and marks the actor eligible
// for scheduling. It returns ErrActorGone or ErrMailboxFull without
// mutating any state on failure.
func (p *process) enqueue(env *envelope) error {
	if p.poisoned.Load() {
		return ErrActorGone
	}

	p.idleMu.Lock()
	p.pending++
	p.idleMu.Unlock()

	select {
	case p.mailbox <- env:
		p.schedule()
		return nil
	default:
		p.markDone()
		return ErrMailboxFull
	}
}

// schedule pushes the actor onto the engine's ready queue, unless it is
// already there or being run (tracked by the scheduled flag) so the same
// actor never occupies more than one slot in the ready queue.
func (p *process) schedule() {
	if p.scheduled.CompareAndSwap(false, true) {
		p.engine.readyQueue <- p.pid
	}
}

// runOne is called by a worker holding p.busyMu. It handles at most one
// message, then decides whether to re-enqueue itself or go idle.
func (p *process) runOne() {
	select {
	case env, ok := <-p.mailbox:
		if ok {
			p.handle(env)
			p.markDone()
		}
	default:
	}

	if len(p.mailbox) > 0 {
		p.engine.readyQueue <- p.pid
		return
	}

	p.scheduled.Store(false)
	// Re-check after clearing the flag: a concurrent send may have
	// enqueued a message and observed scheduled == true, so it skipped
	// the push onto the ready queue. Reclaim scheduling duty here if so.
	if len(p.mailbox) > 0 && p.scheduled.CompareAndSwap(false, true) {
		p.engine.readyQueue <- p.pid
		return
	}

	// Nothing left to do. If this actor was poisoned while it had an
	// empty mailbox (so markDone never got a chance to observe
	// pending == 0), finish the poison here.
	p.checkRemoval()
}

// checkRemoval removes the actor from the engine once it is both poisoned
// and fully idle. markDone handles the common case (the last queued
// message was just drained) itself; runOne calls this for the actor that
// was poisoned while already idle, so no message will ever arrive to
// trigger markDone.
func (p *process) checkRemoval() {
	p.idleMu.Lock()
	empty := p.pending == 0
	p.idleMu.Unlock()

	if empty && p.poisoned.Load() {
		p.engine.remove(p.pid)
	}
}

// handle dispatches one message to the actor, recovering from panics and
// always destroying the payload exactly once. If the actor has been
// poisoned since the message was enqueued, the payload is destroyed
// without ever reaching Receive — this is how draining-on-poison works,
// with no separate drain code path.
func (p *process) handle(env *envelope) {
	defer env.payload.Destroy()

	if p.poisoned.Load() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.engine.logPanic(p.pid, env.payload, r, debug.Stack())
		}
	}()

	ctx := &context{engine: p.engine, self: p.pid, sender: env.sender, message: env.payload}
	p.actor.Receive(ctx)
}

func (p *process) markDone() {
	p.idleMu.Lock()
	p.pending--
	empty := p.pending == 0
	if empty {
		// Remove a poisoned actor before waking waiters, so anyone
		// returning from waitIdle already sees it gone from the engine.
		if p.poisoned.Load() {
			p.engine.remove(p.pid)
		}
		p.idleCond.Broadcast()
	}
	p.idleMu.Unlock()
}

func (p *process) waitIdle() {
	p.idleMu.Lock()
	for p.pending > 0 {
		p.idleCond.Wait()
	}
	p.idleMu.Unlock()
}

// poison marks the actor as gone. Any message already in flight runs to
// completion; everything still queued is destroyed without delivery as
// the scheduler drains it in the ordinary course of runOne.
func (p *process) poison() {
	if p.poisoned.CompareAndSwap(false, true) {
		// The actor may currently be fully idle (pending == 0), in which
		// case nothing will ever schedule it again to notice the flag.
		// Schedule it once so the removal happens promptly.
		p.schedule()
	}
}
