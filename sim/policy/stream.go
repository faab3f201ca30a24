package policy

import (
	"fmt"
	"math/rand"
)

// Stream supplies the uniform [0,1) draws consumed by probabilistic
// selectors. A selector owns its stream; nothing else draws from it, so the
// sequence of routing decisions depends only on the stream's seed.
type Stream interface {
	Float64() float64
}

// StreamState is the save-state of a SeededStream: its seed and how many
// values have been drawn. Restoring a state reproduces the remaining draws.
type StreamState struct {
	Seed  int64 `yaml:"seed" json:"seed"`
	Draws int64 `yaml:"draws" json:"draws"`
}

// SeededStream is a Stream with an explicit seed and draw counter.
type SeededStream struct {
	seed  int64
	draws int64
	rng   *rand.Rand
}

// NewSeededStream creates a stream positioned at its first draw.
func NewSeededStream(seed int64) *SeededStream {
	return &SeededStream{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns the next draw.
func (s *SeededStream) Float64() float64 {
	s.draws++
	return s.rng.Float64()
}

// State returns the stream's current save-state.
func (s *SeededStream) State() StreamState {
	return StreamState{Seed: s.seed, Draws: s.draws}
}

// RestoreStream recreates a SeededStream and fast-forwards it past
// state.Draws values.
func RestoreStream(state StreamState) *SeededStream {
	s := NewSeededStream(state.Seed)
	for s.draws < state.Draws {
		s.Float64()
	}
	return s
}

// ReplayStream returns a fixed sequence of recorded draws.
// Panics when exhausted, since a replay that runs out has diverged from the
// run it was recorded from.
type ReplayStream struct {
	values []float64
	next   int
}

// NewReplayStream creates a ReplayStream. Every value must lie in [0,1).
func NewReplayStream(values []float64) (*ReplayStream, error) {
	for i, v := range values {
		if v < 0 || v >= 1 {
			return nil, fmt.Errorf("replay value %d must be in [0,1), got %v", i, v)
		}
	}
	return &ReplayStream{values: append([]float64(nil), values...)}, nil
}

// Float64 returns the next recorded draw.
func (r *ReplayStream) Float64() float64 {
	if r.next >= len(r.values) {
		panic(fmt.Sprintf("ReplayStream exhausted after %d draws", len(r.values)))
	}
	v := r.values[r.next]
	r.next++
	return v
}

// Remaining returns the number of draws left.
func (r *ReplayStream) Remaining() int {
	return len(r.values) - r.next
}

// RecordingStream passes draws through from an underlying Stream and keeps
// a copy of each, so a run can later be replayed with NewReplayStream.
type RecordingStream struct {
	src    Stream
	values []float64
}

// NewRecordingStream wraps src.
func NewRecordingStream(src Stream) *RecordingStream {
	return &RecordingStream{src: src}
}

// Float64 draws from the underlying stream and records the value.
func (r *RecordingStream) Float64() float64 {
	v := r.src.Float64()
	r.values = append(r.values, v)
	return v
}

// Values returns the recorded draws.
func (r *RecordingStream) Values() []float64 {
	return append([]float64(nil), r.values...)
}
