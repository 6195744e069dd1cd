package life

import "math/rand/v2"

// SystemRandom draws from the runtime's shared random generator
type SystemRandom struct{}

// Uint32 returns a pseudo-random 32-bit value
func (SystemRandom) Uint32() uint32 {
	return rand.Uint32()
}

// NewSeededRandom returns a deterministic source for the given seed
func NewSeededRandom(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
