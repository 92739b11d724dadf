package concept

import "time"

// Tuning constants for activation, propagation, learning, decay, and
// lifecycle transitions. Values match the source system exactly.
const (
	PropagationThreshold = 0.3
	MinActivation        = 0.1
	DecayRate            = 0.95
	EnergyDecayRate      = 0.99

	LearnBoost   = 1.05
	LearnPenalty = 0.95

	MergeStabilityCeiling  = 0.3
	MergeComplexityCeiling = 0.2

	SplitComplexityFloor = 0.8
	SplitRelationFloor   = 20

	DeathEnergyCeiling    = 0.1
	DeathStabilityCeiling = 0.1

	MinWeight = 0.1
	MaxWeight = 1.0

	MaxActivation = 2.0
	MaxEnergy     = 2.0
)

const (
	LearnRecentWindow = time.Hour
	LearnStaleWindow  = 24 * time.Hour
	DeathAge          = 24 * time.Hour
	DeathIdle         = time.Hour
)
