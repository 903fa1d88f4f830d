// Package models provides the four independent scoring methods that
// implement the ports.ScoringMethod interface for the propcast
// prediction ensemble. Each method is a pure function of a
// PredictionContext plus its own validated configuration, and abstains
// rather than guessing when its preconditions are unmet.
package models

import (
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by scoring method constructors.
var (
	// ErrNilPredictor is returned when the learned method is built
	// without a backing predictor.
	ErrNilPredictor = errors.New("predictor cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mean returns the arithmetic mean of vs, or 0 for an empty slice.
func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddev returns the population standard deviation of vs.
func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)))
}

// restBucket groups rest days into coarse buckets for case-based
// retrieval: 0, 1, 2, and 3-or-more days.
func restBucket(days int) int {
	if days >= 3 {
		return 3
	}
	if days < 0 {
		return 0
	}
	return days
}

// absInt returns |v|.
func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
