package timeutil

import (
	"math/rand"
	"time"
)

// Exponential Backoff parameters
// example:
//
//	initialDuration := 1 * time.Second // Start with 1s
//	multiplier := 2.0                 // Double each time
//	maxDuration := 60 * time.Second    // Cap at 60s

type BackoffParam struct {
	initialDuration time.Duration
	multiplier      float64
	maxDuration     time.Duration
}

func NewBackoffParam(
	initialDuration time.Duration,
	multiplier float64,
	maxDuration time.Duration,
) BackoffParam {
	return BackoffParam{
		initialDuration: initialDuration,
		multiplier:      multiplier,
		maxDuration:     maxDuration,
	}
}

func (b *BackoffParam) InitialDuration() time.Duration {
	return b.initialDuration
}

func (b *BackoffParam) Multiplier() float64 {
	return b.multiplier
}

func (b *BackoffParam) MaxDuration() time.Duration {
	return b.maxDuration
}

// DelayRange is an inclusive-exclusive duration interval [Min, Max) that
// timing models sample from, e.g. reading time or navigation pauses.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

func NewDelayRange(min, max time.Duration) DelayRange {
	if max < min {
		max = min
	}
	return DelayRange{Min: min, Max: max}
}

// Sample draws a uniformly distributed duration from the range.
// A degenerate range (Max <= Min) always returns Min.
func (r DelayRange) Sample(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	span := int64(r.Max - r.Min)
	return r.Min + time.Duration(rng.Int63n(span))
}
