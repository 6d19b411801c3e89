// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     vad
// Description: RMS energy detector with hysteresis
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package vad

import (
	"math"
)

const (
	// MinThreshold and MaxThreshold bound the configurable RMS threshold
	MinThreshold = 0.001
	MaxThreshold = 0.1

	// speechFrames is how many consecutive loud frames open speech
	speechFrames = 3

	// silenceFrames is how many consecutive quiet frames close speech
	silenceFrames = 30
)

// RMS detects speech by comparing frame energy against a threshold.
// Hysteresis over consecutive frames keeps single pops and brief pauses
// from toggling the decision.
type RMS struct {
	threshold   float64
	speaking    bool
	loudStreak  int
	quietStreak int
}

// NewRMS creates an RMS detector, clamping the threshold to its valid
// range
func NewRMS(cfg Config) *RMS {
	threshold := cfg.Threshold
	if threshold < MinThreshold {
		threshold = MinThreshold
	}
	if threshold > MaxThreshold {
		threshold = MaxThreshold
	}
	return &RMS{threshold: threshold}
}

// Process evaluates one frame and returns the current speech decision
func (r *RMS) Process(samples []float32) (bool, error) {
	if len(samples) == 0 {
		return r.speaking, nil
	}

	if rms(samples) >= r.threshold {
		r.loudStreak++
		r.quietStreak = 0
		if r.loudStreak >= speechFrames {
			r.speaking = true
		}
	} else {
		r.quietStreak++
		r.loudStreak = 0
		if r.quietStreak >= silenceFrames {
			r.speaking = false
		}
	}

	return r.speaking, nil
}

// rms computes the root mean square energy of a frame
func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Threshold returns the effective threshold after clamping
func (r *RMS) Threshold() float64 {
	return r.threshold
}

// Reset clears the hysteresis state
func (r *RMS) Reset() {
	r.speaking = false
	r.loudStreak = 0
	r.quietStreak = 0
}

// Close releases resources
func (r *RMS) Close() error {
	return nil
}
