package util

import (
	"fmt"
	"math"
	"strconv"
)

func getBucketBoundary(significand string, exponent int) float64 {
	v, err := strconv.ParseFloat(fmt.Sprintf("%se%d", significand, exponent), 64)
	if err != nil {
		panic(fmt.Sprintf("Failed to compute bucket boundary: %s", err))
	}
	return v
}

// DecimalExponentialBuckets generates exponential bucket boundaries for
// Prometheus histogram objects, using 10^(1/m) as the growth factor
// rather than powers of 2. Every power of ten therefore appears as an
// exact boundary.
//
// Boundaries are first rendered as five-digit decimal significands and
// only then parsed into floating point values. This keeps the "le"
// label on each bucket short, and independent of how the math library
// or FPU happens to round 10^(n/m).
//
// strconv.ParseFloat() returns the float64 whose shortest decimal
// representation equals its input, which math.Pow() does not guarantee.
func DecimalExponentialBuckets(lowestPowerOf10, powersOf10, stepsInBetween int) []float64 {
	// Significands spanning a single power of 10.
	boundaries := make([]string, 0, stepsInBetween+1)
	for i := 0; i <= stepsInBetween; i++ {
		boundaries = append(
			boundaries,
			fmt.Sprintf("%f", math.Pow(10.0, float64(i)/float64(stepsInBetween+1)))[:6])
	}

	// Repeat them across the requested powers of 10.
	buckets := make([]float64, 0, powersOf10*len(boundaries)+1)
	for i := 0; i < powersOf10; i++ {
		for _, boundary := range boundaries {
			buckets = append(buckets, getBucketBoundary(boundary, lowestPowerOf10+i))
		}
	}
	return append(buckets, getBucketBoundary("1", lowestPowerOf10+powersOf10))
}
