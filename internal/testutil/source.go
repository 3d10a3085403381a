// Package testutil provides shared test doubles, chiefly deterministic
// randomness sources for exercising probability-driven code.
package testutil

import (
	"testing"

	"pgregory.net/rapid"
)

// RapidSource feeds draws from a rapid property-test run, letting rapid
// shrink the randomness along with the rest of the failing case.
type RapidSource struct {
	RT *rapid.T
}

// Intn draws a rapid integer in [0, n).
func (s RapidSource) Intn(n int) int {
	return rapid.IntRange(0, n-1).Draw(s.RT, "intn")
}

// Float64 draws a rapid float in [0, 1).
func (s RapidSource) Float64() float64 {
	return rapid.Float64Range(0, 0.9999999).Draw(s.RT, "float64")
}

// FixedSource returns Val for every Intn call (clamped into [0, n)) and
// F for every Float64 call.
type FixedSource struct {
	Val int
	F   float64
}

// Intn returns Val clamped into [0, n).
func (s *FixedSource) Intn(n int) int {
	if s.Val >= n {
		return n - 1
	}
	if s.Val < 0 {
		return 0
	}
	return s.Val
}

// Float64 returns F.
func (s *FixedSource) Float64() float64 {
	return s.F
}

// ScriptedSource replays queued draws in order, one queue per draw kind,
// and fails the test when a draw runs past its script or falls outside
// the requested bound.
type ScriptedSource struct {
	T      *testing.T
	Ints   []int
	Floats []float64

	intIdx   int
	floatIdx int
}

// Intn pops the next scripted integer draw.
func (s *ScriptedSource) Intn(n int) int {
	s.T.Helper()
	if s.intIdx >= len(s.Ints) {
		s.T.Fatalf("scripted source: Intn draw %d requested, script has %d", s.intIdx+1, len(s.Ints))
	}
	v := s.Ints[s.intIdx]
	s.intIdx++
	if v < 0 || v >= n {
		s.T.Fatalf("scripted source: Intn value %d out of range [0, %d)", v, n)
	}
	return v
}

// Float64 pops the next scripted float draw.
func (s *ScriptedSource) Float64() float64 {
	s.T.Helper()
	if s.floatIdx >= len(s.Floats) {
		s.T.Fatalf("scripted source: Float64 draw %d requested, script has %d", s.floatIdx+1, len(s.Floats))
	}
	v := s.Floats[s.floatIdx]
	s.floatIdx++
	return v
}
