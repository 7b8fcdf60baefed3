package replay

import "time"

// Match shape constants.
const (
	roundsPerMatch = 3
	maxHitLevel    = 100
	minHitLevel    = 20
	maxPointType   = 5
)

// Runner configuration constants.
const (
	settlePollInterval   = 100 * time.Millisecond
	PercentageMultiplier = 100
)
