package workload

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Distribution type names accepted in DistSpec.Type.
const (
	DistConstant    = "constant"
	DistExponential = "exponential"
	DistUniform     = "uniform"
	DistNormal      = "normal"
	DistLogNormal   = "lognormal"
	DistGamma       = "gamma"
	DistWeibull     = "weibull"
)

// DistSpec parameterizes a duration distribution.
//
// In YAML it is either a mapping {type, params} or a bare number, which is
// shorthand for a constant:
//
//	processing_delay: 2.5
//	inter_arrival_time: {type: exponential, params: {mean: 4}}
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// requiredParams lists the parameters each distribution type takes.
var requiredParams = map[string][]string{
	DistConstant:    {"value"},
	DistExponential: {"mean"},
	DistUniform:     {"min", "max"},
	DistNormal:      {"mean", "stddev"},
	DistLogNormal:   {"mu", "sigma"},
	DistGamma:       {"shape", "scale"},
	DistWeibull:     {"shape", "scale"},
}

// ConstantDist returns a DistSpec for a fixed value.
func ConstantDist(v float64) DistSpec {
	return DistSpec{Type: DistConstant, Params: map[string]float64{"value": v}}
}

// UnmarshalYAML accepts a bare scalar as a constant distribution.
func (d *DistSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: distribution must be a number or a mapping: %w", node.Line, err)
		}
		*d = ConstantDist(v)
		return nil
	}
	type plain DistSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = DistSpec(p)
	return nil
}

// IsValidDistType reports whether name is a known distribution type.
func IsValidDistType(name string) bool {
	_, ok := requiredParams[name]
	return ok
}

func validTypeList() string {
	names := make([]string, 0, len(requiredParams))
	for n := range requiredParams {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Validate checks the type, that exactly the expected parameters are present
// and finite, and the per-type parameter domains.
func (d DistSpec) Validate() error {
	want, ok := requiredParams[d.Type]
	if !ok {
		return fmt.Errorf("unknown distribution type %q; valid: %s", d.Type, validTypeList())
	}
	for _, name := range want {
		if _, ok := d.Params[name]; !ok {
			return fmt.Errorf("%s distribution requires params.%s", d.Type, name)
		}
	}
	for name, val := range d.Params {
		if !contains(want, name) {
			return fmt.Errorf("%s distribution does not take params.%s", d.Type, name)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("params.%s must be a finite number, got %f", name, val)
		}
	}
	p := d.Params
	switch d.Type {
	case DistConstant:
		return nonNegative("value", p["value"])
	case DistExponential:
		return positive("mean", p["mean"])
	case DistUniform:
		if err := nonNegative("min", p["min"]); err != nil {
			return err
		}
		if p["max"] < p["min"] {
			return fmt.Errorf("params.max (%g) must be >= params.min (%g)", p["max"], p["min"])
		}
	case DistNormal:
		if err := nonNegative("mean", p["mean"]); err != nil {
			return err
		}
		return nonNegative("stddev", p["stddev"])
	case DistLogNormal:
		return nonNegative("sigma", p["sigma"])
	case DistGamma, DistWeibull:
		if err := positive("shape", p["shape"]); err != nil {
			return err
		}
		return positive("scale", p["scale"])
	}
	return nil
}

// IsNonPositiveConstant reports whether d always yields a value <= 0.
// Configured delays and intervals of that kind are rejected by model
// validation.
func (d DistSpec) IsNonPositiveConstant() bool {
	return d.Type == DistConstant && d.Params["value"] <= 0
}

// NewSampler validates d and builds its Sampler.
func NewSampler(d DistSpec) (Sampler, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	p := d.Params
	switch d.Type {
	case DistConstant:
		return Constant{Value: p["value"]}, nil
	case DistExponential:
		return newExponential(p["mean"]), nil
	case DistUniform:
		return newUniform(p["min"], p["max"]), nil
	case DistNormal:
		if p["stddev"] > p["mean"] {
			logrus.Warnf("normal distribution with stddev %g > mean %g will clamp many samples to 0", p["stddev"], p["mean"])
		}
		return newNormal(p["mean"], p["stddev"]), nil
	case DistLogNormal:
		return newLogNormal(p["mu"], p["sigma"]), nil
	case DistGamma:
		return newGamma(p["shape"], p["scale"]), nil
	default:
		return newWeibull(p["shape"], p["scale"]), nil
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func positive(name string, val float64) error {
	if val <= 0 {
		return fmt.Errorf("params.%s must be positive, got %g", name, val)
	}
	return nil
}

func nonNegative(name string, val float64) error {
	if val < 0 {
		return fmt.Errorf("params.%s must be non-negative, got %g", name, val)
	}
	return nil
}
