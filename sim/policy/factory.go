package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in policy names.
const (
	NameSingle      = "single"
	NameRoundRobin  = "round-robin"
	NameWeighted    = "weighted"
	NameSequence    = "sequence"
	NameLeastLoaded = "least-loaded"
	NameMostLoaded  = "most-loaded"
)

// Config names a policy and carries its parameters. An empty Name selects
// the default: single for one candidate, round-robin otherwise.
type Config struct {
	Name    string    `yaml:"name"`
	Weights []float64 `yaml:"weights,omitempty"`
	Pattern []int     `yaml:"pattern,omitempty"`
}

// Factory builds a custom Selector from its Config.
type Factory func(cfg Config, stream Stream) Selector

var builtins = map[string]bool{
	"":              true,
	NameSingle:      true,
	NameRoundRobin:  true,
	NameWeighted:    true,
	NameSequence:    true,
	NameLeastLoaded: true,
	NameMostLoaded:  true,
}

var custom = map[string]Factory{}

// Register adds a custom policy under name. Call it from init; the registry
// is not safe for concurrent use. Panics if name is empty, is a built-in, or
// is already registered.
func Register(name string, f Factory) {
	if name == "" || builtins[name] {
		panic(fmt.Sprintf("policy.Register: reserved name %q", name))
	}
	if _, ok := custom[name]; ok {
		panic(fmt.Sprintf("policy.Register: %q already registered", name))
	}
	if f == nil {
		panic("policy.Register: nil factory")
	}
	custom[name] = f
}

// IsValidPolicy reports whether name is a built-in or registered policy.
func IsValidPolicy(name string) bool {
	if builtins[name] {
		return true
	}
	_, ok := custom[name]
	return ok
}

// ValidNames returns every selectable policy name, sorted.
func ValidNames() []string {
	names := make([]string, 0, len(builtins)+len(custom))
	for n := range builtins {
		if n != "" {
			names = append(names, n)
		}
	}
	for n := range custom {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks cfg against the number of candidate edges it will choose
// among.
func (c Config) Validate(candidates int) error {
	if !IsValidPolicy(c.Name) {
		return fmt.Errorf("unknown policy %q; valid policies: [%s]", c.Name, strings.Join(ValidNames(), ", "))
	}
	switch c.Name {
	case NameSingle:
		if candidates > 1 {
			return fmt.Errorf("policy %q used with %d edges", NameSingle, candidates)
		}
	case NameWeighted:
		if len(c.Weights) != candidates {
			return fmt.Errorf("policy %q has %d weights for %d edges", NameWeighted, len(c.Weights), candidates)
		}
		if err := ValidateWeights(c.Weights); err != nil {
			return fmt.Errorf("policy %q: %w", NameWeighted, err)
		}
	case NameSequence:
		if len(c.Pattern) == 0 {
			return fmt.Errorf("policy %q needs a non-empty pattern", NameSequence)
		}
		for i, p := range c.Pattern {
			if p < 0 || p >= candidates {
				return fmt.Errorf("policy %q pattern[%d]=%d out of range for %d edges", NameSequence, i, p, candidates)
			}
		}
	}
	return nil
}

// New creates a Selector from cfg. stream is only consumed by probabilistic
// policies and may be nil otherwise. Panics on an unknown name; callers
// validate with Config.Validate first.
func New(cfg Config, candidates int, stream Stream) Selector {
	switch cfg.Name {
	case "":
		if candidates <= 1 {
			return Single{}
		}
		return &RoundRobin{}
	case NameSingle:
		return Single{}
	case NameRoundRobin:
		return &RoundRobin{}
	case NameWeighted:
		return NewWeighted(cfg.Weights, stream)
	case NameSequence:
		return NewSequence(cfg.Pattern)
	case NameLeastLoaded:
		return LeastLoaded{}
	case NameMostLoaded:
		return MostLoaded{}
	}
	if f, ok := custom[cfg.Name]; ok {
		return f(cfg, stream)
	}
	panic(fmt.Sprintf("unknown policy %q; valid policies: [%s]", cfg.Name, strings.Join(ValidNames(), ", ")))
}
