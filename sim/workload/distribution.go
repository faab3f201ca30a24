package workload

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws a non-negative duration: an inter-arrival time or a
// processing delay, in simulation time units.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(rng *rand.Rand) float64

// Sample calls f(rng).
func (f SamplerFunc) Sample(rng *rand.Rand) float64 { return f(rng) }

// Constant always returns Value and consumes no randomness.
type Constant struct {
	Value float64
}

// Sample implements Sampler for Constant.
func (c Constant) Sample(_ *rand.Rand) float64 { return c.Value }

// quantiler is satisfied by every gonum distuv distribution we sample.
type quantiler interface {
	Quantile(p float64) float64
}

// InverseCDFSampler draws by inverse transform: exactly one rng.Float64()
// per sample, so a stream's position is a plain draw count.
// Negative or NaN results are clamped to 0.
type InverseCDFSampler struct {
	dist quantiler
}

// Sample implements Sampler for InverseCDFSampler.
func (s InverseCDFSampler) Sample(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // Quantile(0) is -Inf or 0 depending on support
	}
	v := s.dist.Quantile(u)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func newExponential(mean float64) Sampler {
	return InverseCDFSampler{dist: distuv.Exponential{Rate: 1 / mean}}
}

func newUniform(lo, hi float64) Sampler {
	if lo == hi {
		return Constant{Value: lo}
	}
	return InverseCDFSampler{dist: distuv.Uniform{Min: lo, Max: hi}}
}

func newNormal(mean, stddev float64) Sampler {
	if stddev == 0 {
		return Constant{Value: mean}
	}
	return InverseCDFSampler{dist: distuv.Normal{Mu: mean, Sigma: stddev}}
}

func newLogNormal(mu, sigma float64) Sampler {
	if sigma == 0 {
		return Constant{Value: math.Exp(mu)}
	}
	return InverseCDFSampler{dist: distuv.LogNormal{Mu: mu, Sigma: sigma}}
}

// newGamma takes shape k and scale theta; distuv parameterises by rate.
func newGamma(shape, scale float64) Sampler {
	return InverseCDFSampler{dist: distuv.Gamma{Alpha: shape, Beta: 1 / scale}}
}

func newWeibull(shape, scale float64) Sampler {
	return InverseCDFSampler{dist: distuv.Weibull{K: shape, Lambda: scale}}
}
