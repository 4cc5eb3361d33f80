// Package augment implements the training augmentation of the change-detection
// loader: a geometric pipeline whose sampled parameters are shared by a group
// of named targets, and photometric pipelines that draw fresh parameters for
// every image they touch.
//
// Transforms never hold a random source. Every Apply call receives one, so the
// owner of the source (usually a dataset instance) decides how randomness is
// seeded and shared between goroutines.
package augment

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the subset of *rand.Rand the transforms draw from.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// LockedRand is a Rand safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a goroutine-safe source. A zero seed picks a time based
// one.
func NewLockedRand(seed int64) *LockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

// Float64 implements Rand.
func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Intn implements Rand.
func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Seed resets the source.
func (l *LockedRand) Seed(seed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = rand.New(rand.NewSource(seed))
}

// NoopRand never fires a probability gate: Float64 always returns 1 and Intn
// always 0. Pipelines driven by it leave their inputs untouched.
type NoopRand struct{}

// Float64 implements Rand.
func (NoopRand) Float64() float64 { return 1 }

// Intn implements Rand.
func (NoopRand) Intn(int) int { return 0 }

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// fires reports whether a transform with probability p should run.
func fires(r Rand, p float64) bool {
	return r.Float64() < p
}
