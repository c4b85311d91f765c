package emotion

// Definition is the static tuning record for one emotion kind.
// Loaded once and never mutated afterwards.
type Definition struct {
	Kind      Kind
	AppliesTo EntitySet
	Color     string

	// ConvergenceRate is the max change of intensity per second. Must be > 0.
	ConvergenceRate float64

	// Player-facing magnitudes at intensity 1.
	MaxCameraJitterDeg     float64
	MaxHandJitter          float64
	MaxBodyTiltDeg         float64
	StumbleChancePerSecond float64

	// Box-facing magnitudes at intensity 1.
	BaseDriftStrength     float64
	RandomImpulseStrength float64
	PhaseIntervalSeconds  float64
}
