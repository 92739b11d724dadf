package concept

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lguibr/cortex/engine"
)

// Concept is the domain-level actor representing one term and its
// relations. It implements engine.Actor; the engine's worker pool is the
// only caller of Receive, so everything below a message boundary can
// assume exclusive access to this concept's state.
type Concept struct {
	ID   uint64
	Term string

	activation *atomicFloat
	energy     *atomicFloat
	stability  *atomicFloat
	complexity *atomicFloat

	birthTime      int64
	lastActivation atomic.Int64
	accessCount    atomic.Uint64

	relMu     sync.Mutex
	relations []Relation

	engineRef *engine.Engine
	self      engine.PID
	logger    *zerolog.Logger
}

// NewProducer returns an engine.Producer that constructs a Concept ready
// to be spawned. engineRef and term are fixed at construction time, the
// same way the facade's create_concept sets them immediately after
// spawn; self is filled in lazily from the first Context it sees, since
// the engine only hands out a PID after Spawn returns. A nil logger
// discards lifecycle diagnostics.
func NewProducer(term string, engineRef *engine.Engine, logger *zerolog.Logger, now time.Time) engine.Producer {
	return func() engine.Actor {
		c := &Concept{
			Term:       term,
			activation: newAtomicFloat(0),
			energy:     newAtomicFloat(0),
			stability:  newAtomicFloat(0),
			complexity: newAtomicFloat(0),
			birthTime:  now.Unix(),
			engineRef:  engineRef,
			logger:     logger,
		}
		return c
	}
}

// Stats is a point-in-time snapshot of a concept's numeric state,
// intended for the facade's get_stats operation.
type Stats struct {
	Activation     float64
	Energy         float64
	Stability      float64
	Complexity     float64
	RelationsCount int
}

// Snapshot reads the concept's current state. It is eventually
// consistent: a worker may be mutating activation/energy concurrently,
// and relations are read under their own mutex only for the count.
func (c *Concept) Snapshot() Stats {
	c.relMu.Lock()
	count := len(c.relations)
	c.relMu.Unlock()

	return Stats{
		Activation:     c.activation.Load(),
		Energy:         c.energy.Load(),
		Stability:      c.stability.Load(),
		Complexity:     c.complexity.Load(),
		RelationsCount: count,
	}
}

// Receive dispatches on payload kind: a Command verb, or one of this
// package's closures.
func (c *Concept) Receive(ctx engine.Context) {
	if c.self == 0 {
		c.self = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case engine.Command:
		c.receiveCommand(ctx, msg)
	case *ActivationClosure:
		c.receiveActivationClosure(msg)
	case *AddRelationClosure:
		c.receiveAddRelationClosure(msg)
	}
}

func (c *Concept) receiveCommand(ctx engine.Context, cmd engine.Command) {
	switch {
	case cmd.Is(engine.CmdActivate.String()):
		c.activate(ctx)
	case cmd.Is(engine.CmdPropagate.String()):
		c.propagate(ctx)
	case cmd.Is(engine.CmdLearn.String()):
		c.learn()
	case cmd.Is(engine.CmdDecay.String()):
		c.decay()
	case cmd.Is(engine.CmdMergeCheck.String()):
		c.mergeCheck()
	case cmd.Is(engine.CmdSplitCheck.String()):
		c.splitCheck()
	case cmd.Is(engine.CmdDeathCheck.String()):
		c.deathCheck(ctx)
	}
}

func (c *Concept) activate(ctx engine.Context) {
	c.activation.Update(func(v float64) float64 { return v + 0.1 })
	c.lastActivation.Store(time.Now().Unix())
	c.accessCount.Add(1)
	c.energy.Update(func(v float64) float64 { return clampMax(v+0.5, MaxEnergy) })
	c.recomputeStability()

	if c.activation.Load() > PropagationThreshold {
		c.propagate(ctx)
	}
}

func (c *Concept) propagate(ctx engine.Context) {
	if c.activation.Load() < MinActivation {
		return
	}

	activationAtStart := c.activation.Load()
	now := time.Now().Unix()

	c.relMu.Lock()
	targets := make([]Relation, len(c.relations))
	copy(targets, c.relations)
	for i := range c.relations {
		c.relations[i].LastAccessed = now
	}
	c.relMu.Unlock()

	for _, r := range targets {
		strength := activationAtStart * r.Weight * 0.5
		if strength > MinActivation {
			ctx.Engine().Send(r.TargetID, c.self, &ActivationClosure{Strength: strength})
		}
	}

	c.activation.Update(func(v float64) float64 { return v * DecayRate })
}

// receiveActivationClosure handles activation-with-strength. It never
// triggers this concept's own propagation, preventing unbounded
// recursion in cyclic graphs.
func (c *Concept) receiveActivationClosure(msg *ActivationClosure) {
	c.activation.Update(func(v float64) float64 { return clampMax(v+msg.Strength, MaxActivation) })
	c.lastActivation.Store(time.Now().Unix())
	c.accessCount.Add(1)
}

func (c *Concept) learn() {
	now := time.Now().Unix()

	c.relMu.Lock()
	for i := range c.relations {
		delta := now - c.relations[i].LastAccessed
		switch {
		case delta < int64(LearnRecentWindow.Seconds()):
			c.relations[i].Weight = clampMax(c.relations[i].Weight*LearnBoost, MaxWeight)
		case delta > int64(LearnStaleWindow.Seconds()):
			c.relations[i].Weight = clampMin(c.relations[i].Weight*LearnPenalty, MinWeight)
		}
	}
	c.relMu.Unlock()

	c.recomputeComplexity()
}

func (c *Concept) decay() {
	c.activation.Update(func(v float64) float64 { return clampMin(v*DecayRate, 0) })
	c.energy.Update(func(v float64) float64 { return clampMin(v*EnergyDecayRate, 0) })
}

// receiveAddRelationClosure upserts (TargetID, Kind): an existing match
// has its weight raised to the max of old and new, and LastAccessed
// refreshed; otherwise a new Relation is appended.
func (c *Concept) receiveAddRelationClosure(msg *AddRelationClosure) {
	now := time.Now().Unix()

	c.relMu.Lock()
	found := false
	for i := range c.relations {
		if c.relations[i].TargetID == msg.TargetID && c.relations[i].Kind == msg.Kind {
			if msg.Weight > c.relations[i].Weight {
				c.relations[i].Weight = msg.Weight
			}
			c.relations[i].LastAccessed = now
			found = true
			break
		}
	}
	if !found {
		c.relations = append(c.relations, Relation{
			TargetID:     msg.TargetID,
			Kind:         msg.Kind,
			Weight:       msg.Weight,
			LastAccessed: now,
		})
	}
	c.relMu.Unlock()

	c.recomputeComplexity()
}

func (c *Concept) mergeCheck() {
	if c.stability.Load() < MergeStabilityCeiling && c.complexity.Load() < MergeComplexityCeiling {
		c.logLifecycle("merge candidate")
	}
}

func (c *Concept) splitCheck() {
	c.relMu.Lock()
	count := len(c.relations)
	c.relMu.Unlock()

	if c.complexity.Load() > SplitComplexityFloor && count > SplitRelationFloor {
		c.logLifecycle("split candidate")
	}
}

func (c *Concept) deathCheck(ctx engine.Context) {
	now := time.Now().Unix()
	age := now - c.birthTime
	idle := now - c.lastActivation.Load()

	if age > int64(DeathAge.Seconds()) &&
		idle > int64(DeathIdle.Seconds()) &&
		c.energy.Load() < DeathEnergyCeiling &&
		c.stability.Load() < DeathStabilityCeiling {
		ctx.Engine().Poison(c.self)
	}
}

// recomputeStability sets stability to accesses-per-minute, clamped to
// 1.0: min(1.0, access_count / max(1, age_seconds / 60)).
func (c *Concept) recomputeStability() {
	ageSeconds := float64(time.Now().Unix() - c.birthTime)
	denom := ageSeconds / 60
	if denom < 1 {
		denom = 1
	}
	stability := float64(c.accessCount.Load()) / denom
	c.stability.Store(clampMax(stability, 1.0))
}

// recomputeComplexity sets complexity to the average relation weight,
// zero when there are none.
func (c *Concept) recomputeComplexity() {
	c.relMu.Lock()
	defer c.relMu.Unlock()

	if len(c.relations) == 0 {
		c.complexity.Store(0)
		return
	}
	var sum float64
	for _, r := range c.relations {
		sum += r.Weight
	}
	c.complexity.Store(sum / float64(len(c.relations)))
}

func (c *Concept) logLifecycle(event string) {
	logger := c.logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	logger.Debug().
		Uint64("concept_id", c.ID).
		Str("term", c.Term).
		Str("event", event).
		Msg("lifecycle check")
}

func clampMax(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
