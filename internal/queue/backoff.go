package queue

import (
	"math"
	"math/rand"
	"time"
)

// backoffWithJitter returns the retry delay before the given attempt number
// (1-based): exponential growth from base, capped at max, with the upper half
// randomized so a burst of failures does not requeue in lockstep.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max || wait <= 0 {
		wait = max
	}
	half := wait / 2
	if half <= 0 {
		return wait
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}
