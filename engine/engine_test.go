package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/cortex/engine"
)

// recorder is a minimal Actor used across tests to observe what it was
// sent.
type recorder struct {
	mu       sync.Mutex
	received []engine.Payload
}

func (r *recorder) Receive(ctx engine.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, ctx.Message())
}

func (r *recorder) messages() []engine.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Payload, len(r.received))
	copy(out, r.received)
	return out
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Config{Workers: 2, MailboxSize: 8})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return e
}

func TestSpawnSendsNoStartedMessage(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	pid := e.Spawn(engine.NewProps(func() engine.Actor { return rec }))

	e.WaitForActor(pid)
	assert.Empty(t, rec.messages(), "spawn must not deliver any message")
}

func TestSendDeliversInOrder(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	pid := e.Spawn(engine.NewProps(func() engine.Actor { return rec }))

	require.NoError(t, e.Send(pid, engine.External, engine.Command("one")))
	require.NoError(t, e.Send(pid, engine.External, engine.Command("two")))
	require.NoError(t, e.Send(pid, engine.External, engine.Command("three")))

	e.WaitForActor(pid)

	msgs := rec.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, engine.Command("one"), msgs[0])
	assert.Equal(t, engine.Command("two"), msgs[1])
	assert.Equal(t, engine.Command("three"), msgs[2])
}

func TestSendToUnknownPIDIsNoop(t *testing.T) {
	e := newTestEngine(t)
	err := e.Send(engine.PID(999999), engine.External, engine.Command("activate"))
	assert.NoError(t, err)
}

func TestPoisonRejectsNewSendsAndDrains(t *testing.T) {
	e := newTestEngine(t)

	gate := make(chan struct{})
	blocking := &blockingActor{gate: gate}
	pid := e.Spawn(engine.NewProps(func() engine.Actor { return blocking }))

	// First message blocks inside Receive until we close gate, so we can
	// poison while a handler is in flight and prove it runs to
	// completion.
	require.NoError(t, e.Send(pid, engine.External, engine.Command("block")))

	destroyed := &trackingClosure{}
	require.NoError(t, e.Send(pid, engine.External, destroyed))

	e.Poison(pid)

	// A poisoned actor refuses new sends immediately.
	err := e.Send(pid, engine.External, engine.Command("late"))
	assert.ErrorIs(t, err, engine.ErrActorGone)

	close(gate)
	e.WaitForActor(pid)

	assert.True(t, destroyed.wasDestroyed(), "queued payload must be destroyed even though never delivered")
	assert.False(t, destroyed.wasInvoked(), "poisoned actor must not deliver messages queued before drain completes")
}

func TestWaitAllBlocksUntilAllActorsIdle(t *testing.T) {
	e := newTestEngine(t)
	var pids []engine.PID
	for i := 0; i < 5; i++ {
		rec := &recorder{}
		pid := e.Spawn(engine.NewProps(func() engine.Actor { return rec }))
		require.NoError(t, e.Send(pid, engine.External, engine.Command("activate")))
		pids = append(pids, pid)
	}

	e.WaitAll()

	for _, pid := range pids {
		actor, ok := e.GetState(pid)
		require.True(t, ok)
		rec := actor.(*recorder)
		assert.Len(t, rec.messages(), 1)
	}
}

func TestMailboxFullReturnsError(t *testing.T) {
	e := engine.New(engine.Config{Workers: 1, MailboxSize: 1})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Shutdown(ctx)
	}()

	gate := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingActor{gate: gate, started: started}
	pid := e.Spawn(engine.NewProps(func() engine.Actor { return blocking }))

	// First send occupies the single worker inside Receive; second fills
	// the one-slot mailbox; third must overflow.
	require.NoError(t, e.Send(pid, engine.External, engine.Command("block")))
	<-started // wait until the worker has dequeued message 1, freeing the mailbox slot
	require.NoError(t, e.Send(pid, engine.External, engine.Command("queued")))

	var lastErr error
	require.Eventually(t, func() bool {
		lastErr = e.Send(pid, engine.External, engine.Command("overflow"))
		return lastErr != nil
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, lastErr, engine.ErrMailboxFull)

	close(gate)
}

// blockingActor blocks the first "block" command it receives until gate
// is closed, letting tests pin a worker mid-handler. A delivered
// trackingClosure is invoked, so tests can tell whether it reached Receive.
type blockingActor struct {
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingActor) Receive(ctx engine.Context) {
	if tc, ok := ctx.Message().(*trackingClosure); ok {
		tc.Invoke()
	}
	if cmd, ok := ctx.Message().(engine.Command); ok && cmd.Is("block") {
		b.once.Do(func() {
			if b.started != nil {
				close(b.started)
			}
			<-b.gate
		})
	}
}

// trackingClosure is a synthetic closure payload used to observe whether
// Destroy/Invoke happened, for the poison-drain test.
type trackingClosure struct {
	didDestroy bool
	didInvoke  bool
	mu         sync.Mutex
}

func (c *trackingClosure) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.didDestroy = true
}

func (c *trackingClosure) Invoke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.didInvoke = true
}

func (c *trackingClosure) wasDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.didDestroy
}

func (c *trackingClosure) wasInvoked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.didInvoke
}
