package batch

// Memory pressure thresholds, as fractions of the configured ceiling.
const (
	// PressureWarningRatio is the fraction of the ceiling at which a warning
	// is logged.
	PressureWarningRatio = 0.80

	// PressureCriticalRatio is the fraction of the ceiling at which the run
	// warns that the next article is likely to seal the batch. Sealing itself
	// is enforced by Fits at the full ceiling.
	PressureCriticalRatio = 0.90
)

// PressureLevel indicates how close buffered size is to the memory ceiling.
type PressureLevel int

const (
	// PressureNone indicates buffered size is well within the ceiling.
	PressureNone PressureLevel = iota

	// PressureWarning indicates buffered size exceeds 80% of the ceiling.
	PressureWarning

	// PressureCritical indicates buffered size exceeds 90% of the ceiling.
	PressureCritical
)

// Governor bounds the scheduler's in-flight memory. The estimate is a simple
// byte-length proxy over buffered titles and bodies; the point is to bound
// growth, not to account exactly.
type Governor struct {
	// Ceiling is the batch memory ceiling in bytes. Zero means unlimited.
	Ceiling int64
}

// EstimateSize returns the in-memory footprint proxy for one article.
func EstimateSize(title, body string) int64 {
	return int64(len(title) + len(body))
}

// Fits reports whether adding candidate bytes to the buffered total stays
// within the ceiling.
func (g Governor) Fits(buffered, candidate int64) bool {
	if g.Ceiling <= 0 {
		return true
	}

	return buffered+candidate <= g.Ceiling
}

// Pressure classifies the buffered total against the ceiling.
func (g Governor) Pressure(buffered int64) PressureLevel {
	if g.Ceiling <= 0 {
		return PressureNone
	}

	ratio := float64(buffered) / float64(g.Ceiling)

	switch {
	case ratio >= PressureCriticalRatio:
		return PressureCritical
	case ratio >= PressureWarningRatio:
		return PressureWarning
	default:
		return PressureNone
	}
}
