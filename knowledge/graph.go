package knowledge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lguibr/cortex/concept"
	"github.com/lguibr/cortex/concurrentmap"
	"github.com/lguibr/cortex/engine"
	"github.com/lguibr/cortex/internal/config"
)

// maintenanceWindow is the minimum interval between consecutive
// RunMaintenance sweeps; calls inside the window are a no-op.
const maintenanceWindow = 60 * time.Second

// Graph is the external-facing knowledge graph: it translates term/id
// inputs into messages against concept actors running on an Engine. It
// is the "concurrent registry that maps external identifiers to actor
// handles" the core calls out as load-bearing.
type Graph struct {
	cfg    config.Config
	logger zerolog.Logger
	engine *engine.Engine

	// termToConcept maps xxhash(term) -> concept id; conceptActors maps
	// concept id -> the PID it was spawned under; conceptTermHash is the
	// reverse of termToConcept (concept id -> its term hash), kept so a
	// dead concept's termToConcept entry can be located and pruned by id
	// alone. All three are set before CreateConcept returns, and all three
	// are backed by the sharded map so lookups never serialize against
	// unrelated ids.
	termToConcept   *concurrentmap.Map
	conceptActors   *concurrentmap.Map
	conceptTermHash *concurrentmap.Map

	nextConceptID atomic.Uint64

	createGroup singleflight.Group

	lastMaintenance atomic.Int64
	maintenanceRuns atomic.Uint64
}

// New constructs a Graph with its own Engine, sized per cfg. Its
// registries are presized for cfg.InitialCapacity entries, so the first
// wave of CreateConcept calls after startup doesn't pay for shard map
// growth.
func New(cfg config.Config, logger zerolog.Logger) *Graph {
	loggerCopy := logger
	g := &Graph{
		cfg:    cfg,
		logger: logger,
		engine: engine.New(engine.Config{
			Workers:     cfg.Workers,
			MailboxSize: cfg.MailboxSize,
			Logger:      &loggerCopy,
		}),
		termToConcept:   concurrentmap.NewWithCapacity(cfg.InitialCapacity),
		conceptActors:   concurrentmap.NewWithCapacity(cfg.InitialCapacity),
		conceptTermHash: concurrentmap.NewWithCapacity(cfg.InitialCapacity),
	}
	return g
}

// CreateConcept returns term's concept id, spawning a new concept actor
// the first time this term is seen. Concurrent duplicate calls for the
// same term are collapsed by singleflight so they all observe the same
// id, matching the idempotent-create law.
func (g *Graph) CreateConcept(term string) (uint64, error) {
	hash := xxhash.Sum64String(term)

	if id, ok := g.termToConcept.Get(hash); ok {
		return id, nil
	}

	v, err, _ := g.createGroup.Do(term, func() (interface{}, error) {
		if id, ok := g.termToConcept.Get(hash); ok {
			return id, nil
		}

		id := g.nextConceptID.Add(1)
		producer := concept.NewProducer(term, g.engine, &g.logger, time.Now())
		pid := g.engine.Spawn(engine.NewProps(producer))

		if c, ok := g.engine.GetState(pid); ok {
			c.(*concept.Concept).ID = id
		}

		g.termToConcept.Put(hash, id)
		g.conceptActors.Put(id, uint64(pid))
		g.conceptTermHash.Put(id, hash)

		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// ActivateConcept sends an activate command to id's concept. Unknown ids
// are a silent no-op.
func (g *Graph) ActivateConcept(id uint64) {
	pid, ok := g.pidFor(id)
	if !ok {
		return
	}
	g.send(pid, engine.CmdActivate)
}

// SendActivation sends activation-with-strength to id's concept.
func (g *Graph) SendActivation(id uint64, strength float64) {
	pid, ok := g.pidFor(id)
	if !ok {
		return
	}
	g.send(pid, &concept.ActivationClosure{Strength: strength})
}

// AddRelation sends an add-relation closure to src's concept. Unknown
// src is a silent no-op; tgt is not validated here (the relation just
// carries an id that may or may not resolve, same as the source does).
func (g *Graph) AddRelation(src, tgt uint64, kind concept.RelationKind, weight float64) {
	pid, ok := g.pidFor(src)
	if !ok {
		return
	}
	g.send(pid, &concept.AddRelationClosure{TargetID: tgt, Kind: kind, Weight: weight})
}

// FindConcept is a pure lookup with no side effect.
func (g *Graph) FindConcept(term string) (uint64, bool) {
	hash := xxhash.Sum64String(term)
	return g.termToConcept.Get(hash)
}

// Query behaves like FindConcept but also activates the concept if
// found, matching the "query activates" law.
func (g *Graph) Query(term string) (uint64, bool) {
	id, ok := g.FindConcept(term)
	if !ok {
		return 0, false
	}
	g.ActivateConcept(id)
	return id, true
}

// GetStats reads id's concept state directly via the engine, eventually
// consistent.
func (g *Graph) GetStats(id uint64) (concept.Stats, bool) {
	pid, ok := g.pidFor(id)
	if !ok {
		return concept.Stats{}, false
	}
	actor, ok := g.engine.GetState(pid)
	if !ok {
		return concept.Stats{}, false
	}
	return actor.(*concept.Concept).Snapshot(), true
}

// RunMaintenance sends decay and death_check to every registered concept,
// but only if at least maintenanceWindow has elapsed since the previous
// run; calls inside the window are a no-op.
func (g *Graph) RunMaintenance() {
	now := time.Now().Unix()
	last := g.lastMaintenance.Load()
	if now-last < int64(maintenanceWindow.Seconds()) {
		return
	}
	if !g.lastMaintenance.CompareAndSwap(last, now) {
		return
	}

	for entry := range g.conceptActors.Iterator() {
		pid := engine.PID(entry.Value)
		g.send(pid, engine.CmdDecay)
		g.send(pid, engine.CmdDeathCheck)
	}

	g.maintenanceRuns.Add(1)
}

// MaintenanceRuns returns the number of completed RunMaintenance sweeps,
// for telemetry sampling.
func (g *Graph) MaintenanceRuns() uint64 {
	return g.maintenanceRuns.Load()
}

// ConceptCount returns the number of distinct terms currently registered
// (dead concepts pruned by WaitAll are no longer counted), for telemetry
// sampling.
func (g *Graph) ConceptCount() int64 {
	return g.termToConcept.Count()
}

// Engine exposes the underlying engine's counters for telemetry
// sampling (Processed, Dropped, ActorCount).
func (g *Graph) Engine() *engine.Engine {
	return g.engine
}

// WaitAll blocks until every actor is idle, then reconciles the
// registries against the engine's actor table: a concept poisoned by its
// own deathCheck is gone from the engine but would otherwise stay
// resolvable through termToConcept/conceptActors forever, permanently
// blocking its term from ever being recreated.
func (g *Graph) WaitAll() {
	g.engine.WaitAll()
	g.reconcileDeadConcepts()
}

// reconcileDeadConcepts drops registry entries for any concept id whose
// actor is no longer registered with the engine, so termToConcept always
// resolves to a live actor or not at all.
func (g *Graph) reconcileDeadConcepts() {
	for entry := range g.conceptActors.Iterator() {
		id := entry.Key
		pid := engine.PID(entry.Value)

		if _, alive := g.engine.GetState(pid); alive {
			continue
		}

		g.conceptActors.Remove(id)
		if hash, ok := g.conceptTermHash.Get(id); ok {
			g.termToConcept.Remove(hash)
			g.conceptTermHash.Remove(id)
		}
	}
}

// Shutdown stops the underlying engine, bounded by ctx.
func (g *Graph) Shutdown(ctx context.Context) {
	g.engine.Shutdown(ctx)
}

func (g *Graph) pidFor(id uint64) (engine.PID, bool) {
	v, ok := g.conceptActors.Get(id)
	if !ok {
		return 0, false
	}
	return engine.PID(v), true
}

func (g *Graph) send(pid engine.PID, payload engine.Payload) {
	if err := g.engine.Send(pid, engine.External, payload); err != nil {
		g.logger.Debug().
			Stringer("pid", pid).
			Err(err).
			Msg("facade send failed")
	}
}
