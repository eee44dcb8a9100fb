package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NPV calculates the net present value of an ordered cash-flow sequence.
// values[i] is the flow at period i; values[0] is not discounted.
//
// Formula: sum(values[i] / (1+rate)^i)
//
// An empty sequence is worth 0. A rate of exactly -1 with more than one flow
// is a DomainError.
func NPV(rate float64, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	if rate == -1 && len(values) > 1 {
		return 0, fmt.Errorf("%w: npv is undefined at rate -1", ErrDomain)
	}
	return finite("npv", floats.Dot(values, discountFactors(rate, len(values))))
}

// discountFactors returns 1/(1+rate)^i for i in [0, n).
func discountFactors(rate float64, n int) []float64 {
	factors := make([]float64, n)
	for i := range factors {
		factors[i] = 1 / math.Pow(1+rate, float64(i))
	}
	return factors
}
