package combat

import "math/rand"

// Rand is the randomness the controller draws from.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a seeded source
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
