package concept

import "github.com/lguibr/cortex/engine"

// ActivationClosure carries activation-with-strength parameters, for
// propagation targets whose strength doesn't fit a fixed command word.
type ActivationClosure struct {
	Strength float64
}

// Destroy implements engine.Payload. Under Go's GC there is nothing to
// free, but the call still happens exactly once per delivery so the
// destroy-exactly-once invariant stays meaningful and testable.
func (*ActivationClosure) Destroy() {}

// Clone implements engine.Cloner.
func (c *ActivationClosure) Clone() engine.Payload {
	clone := *c
	return &clone
}

// AddRelationClosure carries the parameters of add_relation, which don't
// fit a fixed command word either.
type AddRelationClosure struct {
	TargetID uint64
	Kind     RelationKind
	Weight   float64
}

// Destroy implements engine.Payload.
func (*AddRelationClosure) Destroy() {}

// Clone implements engine.Cloner.
func (c *AddRelationClosure) Clone() engine.Payload {
	clone := *c
	return &clone
}
