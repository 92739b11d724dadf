package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultWorkers matches spec's "typically 4".
	DefaultWorkers = 4
	// DefaultMailboxSize is the minimum bounded mailbox capacity called
	// out as sufficient.
	DefaultMailboxSize = 64
	// readyQueueFactor sizes the ready channel relative to worker count
	// so bursts of simultaneously-scheduled actors don't block Send.
	readyQueueFactor = 256
)

// Config tunes the worker pool and mailbox sizing. Zero values fall back
// to the documented defaults.
type Config struct {
	Workers     int
	MailboxSize int
	// Logger is optional; a nil Logger means log lines are discarded.
	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	return c
}

func (e *Engine) logger() zerolog.Logger {
	if e.cfg.Logger != nil {
		return *e.cfg.Logger
	}
	return zerolog.Nop()
}

// Engine owns the worker pool, the actor registry, and the shared ready
// queue. It is the concurrent runtime every concept actor runs on.
type Engine struct {
	cfg Config

	pidCounter uint64

	mu     sync.RWMutex
	actors map[PID]*process

	readyQueue chan PID
	workerWG   sync.WaitGroup
	stopOnce   sync.Once
	stopCh     chan struct{}

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an engine and starts its worker pool.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:        cfg,
		actors:     make(map[PID]*process),
		readyQueue: make(chan PID, cfg.Workers*readyQueueFactor),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		e.workerWG.Add(1)
		go e.workerLoop()
	}

	return e
}

func (e *Engine) workerLoop() {
	defer e.workerWG.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case pid, ok := <-e.readyQueue:
			if !ok {
				return
			}
			e.dispatchOne(pid)
		}
	}
}

func (e *Engine) dispatchOne(pid PID) {
	e.mu.RLock()
	proc, ok := e.actors[pid]
	e.mu.RUnlock()
	if !ok {
		return
	}

	if !proc.busyMu.TryLock() {
		// Contended: another worker is already handling this actor's
		// turn (shouldn't normally happen since the scheduled flag
		// prevents duplicate ready-queue entries, but a poison-induced
		// re-schedule can race with an in-flight runOne). Re-enqueue
		// and let the pool retry rather than blocking this worker.
		e.readyQueue <- pid
		return
	}
	defer proc.busyMu.Unlock()

	proc.runOne()
	e.processed.Add(1)
}

// Spawn creates a new actor from props and registers it. No message is
// sent as part of spawning — callers that need first-message semantics
// should do their initialization inside the Producer itself.
func (e *Engine) Spawn(props *Props) PID {
	id := PID(atomic.AddUint64(&e.pidCounter, 1))
	actor := props.produce()

	proc := newProcess(e, id, actor, e.cfg.MailboxSize)

	e.mu.Lock()
	e.actors[id] = proc
	e.mu.Unlock()

	return id
}

// Send delivers a message to pid. Unknown pids are a silent no-op (the
// caller, typically the knowledge facade, treats an unresolved handle as
// "nothing to do" per spec); a known but poisoned actor returns
// ErrActorGone, and a full mailbox returns ErrMailboxFull.
func (e *Engine) Send(pid PID, sender PID, payload Payload) error {
	e.mu.RLock()
	proc, ok := e.actors[pid]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	err := proc.enqueue(&envelope{sender: sender, payload: payload})
	if err == ErrMailboxFull {
		e.dropped.Add(1)
		e.logger().Warn().
			Stringer("pid", pid).
			Msg("actor mailbox full, message dropped")
	}
	return err
}

// Poison marks pid as gone. In-flight handling finishes; anything still
// queued is destroyed without delivery; the actor is removed from the
// registry once its mailbox has drained.
func (e *Engine) Poison(pid PID) {
	e.mu.RLock()
	proc, ok := e.actors[pid]
	e.mu.RUnlock()
	if !ok {
		return
	}
	proc.poison()
}

// GetState returns the live Actor behind pid for direct, unsynchronized
// field reads (e.g. a stats snapshot). Callers must only do this when
// they can tolerate eventual consistency, or know no handler is running
// concurrently (e.g. immediately after Spawn).
func (e *Engine) GetState(pid PID) (Actor, bool) {
	e.mu.RLock()
	proc, ok := e.actors[pid]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return proc.actor, true
}

// WaitForActor blocks until pid's mailbox is empty and no worker is
// currently processing a message for it. A pid that doesn't exist (never
// spawned, or already removed after Poison drained it) returns
// immediately.
func (e *Engine) WaitForActor(pid PID) {
	e.mu.RLock()
	proc, ok := e.actors[pid]
	e.mu.RUnlock()
	if !ok {
		return
	}
	proc.waitIdle()
}

// WaitAll waits for every currently-registered actor to go idle.
func (e *Engine) WaitAll() {
	e.mu.RLock()
	procs := make([]*process, 0, len(e.actors))
	for _, p := range e.actors {
		procs = append(procs, p)
	}
	e.mu.RUnlock()

	for _, p := range procs {
		p.waitIdle()
	}
}

// Shutdown poisons every registered actor, waits (bounded by ctx) for all
// of them to drain, then stops the worker pool.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.RLock()
	pids := make([]PID, 0, len(e.actors))
	for pid := range e.actors {
		pids = append(pids, pid)
	}
	e.mu.RUnlock()

	for _, pid := range pids {
		e.Poison(pid)
	}

	done := make(chan struct{})
	go func() {
		for {
			e.mu.RLock()
			remaining := len(e.actors)
			e.mu.RUnlock()
			if remaining == 0 {
				close(done)
				return
			}
			select {
			case <-ctx.Done():
				close(done)
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()
	<-done

	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.workerWG.Wait()
}

func (e *Engine) remove(pid PID) {
	e.mu.Lock()
	delete(e.actors, pid)
	e.mu.Unlock()
}

func (e *Engine) logPanic(pid PID, payload Payload, r interface{}, stack []byte) {
	e.logger().Error().
		Stringer("pid", pid).
		Str("message_type", fmt.Sprintf("%T", payload)).
		Interface("recovered", r).
		Bytes("stack", stack).
		Msg("actor panicked handling message")
}

// ActorCount returns the number of currently registered actors. Intended
// for metrics and tests, not for hot-path decisions.
func (e *Engine) ActorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.actors)
}

// Processed returns the running count of successfully dispatched
// messages, for the telemetry package to export as a counter.
func (e *Engine) Processed() uint64 { return e.processed.Load() }

// Dropped returns the running count of messages rejected because the
// target's mailbox was full.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }
