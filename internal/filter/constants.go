package filter

// State-variable filter defaults.
const (
	defaultSVFCutoffHz  = 1000.0
	defaultSVFResonance = 0.7
)
