package mathutil

// Decibel conversion limits.
const (
	// minDB is the metering floor; anything quieter reports as silence.
	minDB = -120.0

	// dbFloor is the smallest linear amplitude considered non-silent.
	// 10^(-120/20) = 1e-6.
	dbFloor = 1e-6
)
