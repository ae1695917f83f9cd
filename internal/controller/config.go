package controller

import "time"

// Config holds every tunable the controller's loop reads, mapped
// directly from the continuous.*, rounds.*, and scheduler.* config keys.
type Config struct {
	MaxUnitsPerEpoch      int
	MaxWorkers            int
	MinAmbitionScore      float64
	MaxReplanAttempts     int
	MaxWallTime           time.Duration
	StallThreshold        int
	MaxConsecutiveFailures int
	FailureBackoff        time.Duration
	BacklogMaxAge         time.Duration
	VerifyBeforeMerge     bool
	MergeDrainBudget      time.Duration
}

// DefaultConfig mirrors the teacher's DefaultStopConfig pattern of
// shipping sane, documented defaults rather than requiring every field
// to be set explicitly.
func DefaultConfig() Config {
	return Config{
		MaxUnitsPerEpoch:       5,
		MaxWorkers:             3,
		MinAmbitionScore:       0.5,
		MaxReplanAttempts:      2,
		MaxWallTime:            2 * time.Hour,
		StallThreshold:         3,
		MaxConsecutiveFailures: 3,
		FailureBackoff:         30 * time.Second,
		BacklogMaxAge:          10 * time.Minute,
		VerifyBeforeMerge:      true,
		MergeDrainBudget:       30 * time.Second,
	}
}
