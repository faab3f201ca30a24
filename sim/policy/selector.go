// Package policy provides the edge-selection strategies used by nodes that
// have more than one candidate edge in a direction.
package policy

import (
	"fmt"
	"math"
)

// Candidate is the view of an edge a Selector is allowed to see.
type Candidate interface {
	ID() string
	Level() int
	Capacity() int
}

// Selector picks the index of the next candidate to use.
// Candidates are passed in connection order. Implementations are stateful
// per node and must be deterministic for a fixed Stream.
type Selector interface {
	Select(candidates []Candidate) int
}

// SelectorFunc adapts a function to the Selector interface, for
// model-specific routing rules.
type SelectorFunc func(candidates []Candidate) int

// Select calls f(candidates).
func (f SelectorFunc) Select(candidates []Candidate) int { return f(candidates) }

// Single always selects the only candidate.
type Single struct{}

// Select implements Selector for Single.
func (Single) Select(candidates []Candidate) int {
	if len(candidates) == 0 {
		panic("Single.Select: no candidates")
	}
	return 0
}

// RoundRobin cycles the candidates in connection order, advancing one
// position per dispatch.
type RoundRobin struct {
	counter int
}

// Select implements Selector for RoundRobin.
func (rr *RoundRobin) Select(candidates []Candidate) int {
	if len(candidates) == 0 {
		panic("RoundRobin.Select: no candidates")
	}
	idx := rr.counter % len(candidates)
	rr.counter++
	return idx
}

// Weighted selects candidate i with probability weights[i], consuming
// exactly one value from its stream per dispatch.
type Weighted struct {
	cumulative []float64
	stream     Stream
}

// ValidateWeights checks that weights are finite, non-negative and not all zero.
func ValidateWeights(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("weights must not be empty")
	}
	total := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weight %d must be a finite non-negative number, got %v", i, w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("weights must not sum to zero")
	}
	return nil
}

// NewWeighted creates a Weighted selector. Weights are normalised to sum to
// 1. Panics if the weights are invalid or stream is nil.
func NewWeighted(weights []float64, stream Stream) *Weighted {
	if err := ValidateWeights(weights); err != nil {
		panic(fmt.Sprintf("NewWeighted: %v", err))
	}
	if stream == nil {
		panic("NewWeighted: stream must not be nil")
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	cumulative := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		cumulative[i] = acc
	}
	cumulative[len(cumulative)-1] = 1.0
	return &Weighted{cumulative: cumulative, stream: stream}
}

// Select implements Selector for Weighted.
func (w *Weighted) Select(candidates []Candidate) int {
	if len(candidates) != len(w.cumulative) {
		panic(fmt.Sprintf("Weighted.Select: %d weights for %d candidates", len(w.cumulative), len(candidates)))
	}
	u := w.stream.Float64()
	for i, c := range w.cumulative {
		if u < c {
			return i
		}
	}
	return len(w.cumulative) - 1
}

// Sequence repeats a fixed pattern of indices, e.g. [0 0 0 1] sends every
// fourth entity to the second edge. It models deterministic asymmetric
// ratios such as rework loops.
type Sequence struct {
	pattern []int
	next    int
}

// NewSequence creates a Sequence. Panics on an empty pattern or negative index.
func NewSequence(pattern []int) *Sequence {
	if len(pattern) == 0 {
		panic("NewSequence: empty pattern")
	}
	for i, p := range pattern {
		if p < 0 {
			panic(fmt.Sprintf("NewSequence: pattern[%d] is negative", i))
		}
	}
	return &Sequence{pattern: append([]int(nil), pattern...)}
}

// Select implements Selector for Sequence.
func (s *Sequence) Select(candidates []Candidate) int {
	idx := s.pattern[s.next]
	s.next = (s.next + 1) % len(s.pattern)
	if idx >= len(candidates) {
		panic(fmt.Sprintf("Sequence.Select: index %d with %d candidates", idx, len(candidates)))
	}
	return idx
}

// LeastLoaded selects the candidate with the lowest level.
// Ties are broken by first occurrence in connection order.
type LeastLoaded struct{}

// Select implements Selector for LeastLoaded.
func (LeastLoaded) Select(candidates []Candidate) int {
	if len(candidates) == 0 {
		panic("LeastLoaded.Select: no candidates")
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Level() < candidates[best].Level() {
			best = i
		}
	}
	return best
}

// MostLoaded selects the candidate with the highest level. On the input side
// it drains the fullest buffer first.
// Ties are broken by first occurrence in connection order.
type MostLoaded struct{}

// Select implements Selector for MostLoaded.
func (MostLoaded) Select(candidates []Candidate) int {
	if len(candidates) == 0 {
		panic("MostLoaded.Select: no candidates")
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Level() > candidates[best].Level() {
			best = i
		}
	}
	return best
}
