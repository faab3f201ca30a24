package workload

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

func draw(t *testing.T, d DistSpec, n int, seed int64) []float64 {
	t.Helper()
	s, err := NewSampler(d)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Sample(rng)
	}
	return out
}

// TestSampler_Means verifies each distribution's sample mean converges to its analytical mean.
func TestSampler_Means(t *testing.T) {
	tests := []struct {
		name string
		spec DistSpec
		mean float64
	}{
		{"exponential", DistSpec{Type: DistExponential, Params: map[string]float64{"mean": 4}}, 4},
		{"uniform", DistSpec{Type: DistUniform, Params: map[string]float64{"min": 1, "max": 3}}, 2},
		{"normal", DistSpec{Type: DistNormal, Params: map[string]float64{"mean": 10, "stddev": 1}}, 10},
		{"lognormal", DistSpec{Type: DistLogNormal, Params: map[string]float64{"mu": 0, "sigma": 0.5}}, math.Exp(0.125)},
		{"gamma", DistSpec{Type: DistGamma, Params: map[string]float64{"shape": 2, "scale": 1.5}}, 3},
		{"weibull", DistSpec{Type: DistWeibull, Params: map[string]float64{"shape": 1, "scale": 2}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN 20000 draws
			samples := draw(t, tt.spec, 20000, 42)

			// THEN all are non-negative and the mean is within 5%
			for _, v := range samples {
				require.GreaterOrEqual(t, v, 0.0)
			}
			assert.InEpsilon(t, tt.mean, stat.Mean(samples, nil), 0.05)
		})
	}
}

func TestSampler_Deterministic(t *testing.T) {
	d := DistSpec{Type: DistGamma, Params: map[string]float64{"shape": 0.5, "scale": 2}}
	assert.Equal(t, draw(t, d, 100, 7), draw(t, d, 100, 7))
}

// TestInverseCDFSampler_OneDrawPerSample verifies the rng advances exactly once per sample.
func TestInverseCDFSampler_OneDrawPerSample(t *testing.T) {
	s, err := NewSampler(DistSpec{Type: DistWeibull, Params: map[string]float64{"shape": 1.5, "scale": 1}})
	require.NoError(t, err)
	a := rand.New(rand.NewSource(5))
	b := rand.New(rand.NewSource(5))
	for i := 0; i < 10; i++ {
		s.Sample(a)
		b.Float64()
	}
	assert.Equal(t, b.Float64(), a.Float64())
}

func TestNormal_ClampsAtZero(t *testing.T) {
	samples := draw(t, DistSpec{Type: DistNormal, Params: map[string]float64{"mean": 0.1, "stddev": 5}}, 1000, 1)
	zeros := 0
	for _, v := range samples {
		assert.GreaterOrEqual(t, v, 0.0)
		if v == 0 {
			zeros++
		}
	}
	assert.Greater(t, zeros, 0)
}

func TestConstant_IgnoresRNG(t *testing.T) {
	s, err := NewSampler(ConstantDist(2.5))
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Sample(nil))
}

func TestDistSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    DistSpec
		wantErr string
	}{
		{"unknown type", DistSpec{Type: "poisson"}, "unknown distribution type"},
		{"missing param", DistSpec{Type: DistExponential}, "requires params.mean"},
		{"extra param", DistSpec{Type: DistConstant, Params: map[string]float64{"value": 1, "mean": 2}}, "does not take params.mean"},
		{"zero mean", DistSpec{Type: DistExponential, Params: map[string]float64{"mean": 0}}, "must be positive"},
		{"inverted uniform", DistSpec{Type: DistUniform, Params: map[string]float64{"min": 3, "max": 1}}, "must be >="},
		{"negative constant", ConstantDist(-1), "non-negative"},
		{"nan", DistSpec{Type: DistGamma, Params: map[string]float64{"shape": math.NaN(), "scale": 1}}, "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.NoError(t, ConstantDist(0).Validate())
	assert.True(t, ConstantDist(0).IsNonPositiveConstant())
	assert.False(t, ConstantDist(1).IsNonPositiveConstant())
}

func TestDistSpec_YAMLShorthand(t *testing.T) {
	var doc struct {
		A DistSpec `yaml:"a"`
		B DistSpec `yaml:"b"`
	}
	src := "a: 3\nb: {type: exponential, params: {mean: 2}}\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, ConstantDist(3), doc.A)
	assert.Equal(t, DistExponential, doc.B.Type)
	assert.Equal(t, 2.0, doc.B.Params["mean"])

	err := yaml.Unmarshal([]byte("a: fast\n"), &doc)
	assert.Error(t, err)
}
