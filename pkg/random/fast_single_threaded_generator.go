package random

import (
	"math/rand/v2"
)

type fastSingleThreadedGenerator struct {
	*rand.Rand
}

// NewFastSingleThreadedGenerator creates a new SingleThreadedGenerator
// that is not suitable for cryptographic purposes. The generator is
// randomly seeded.
func NewFastSingleThreadedGenerator() SingleThreadedGenerator {
	return fastSingleThreadedGenerator{
		Rand: rand.New(
			rand.NewPCG(
				CryptoThreadSafeGenerator.Uint64(),
				CryptoThreadSafeGenerator.Uint64(),
			),
		),
	}
}

func (fastSingleThreadedGenerator) Read(p []byte) (int, error) {
	return mustCryptoRandRead(p)
}

type seededSingleThreadedGenerator struct {
	*rand.Rand
}

// NewSeededSingleThreadedGenerator creates a SingleThreadedGenerator
// that emits a fully deterministic sequence of values for a given pair
// of seeds. It is intended to be used by tests that need reproducible
// randomness.
func NewSeededSingleThreadedGenerator(seed1, seed2 uint64) SingleThreadedGenerator {
	return seededSingleThreadedGenerator{
		Rand: rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (g seededSingleThreadedGenerator) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(g.Rand.Uint64())
	}
	return len(p), nil
}
