// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     vad
// Description: Voice activity detection
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"
)

// Detector is the interface for voice activity detection
type Detector interface {
	// Process processes audio samples and returns whether speech is active
	Process(samples []float32) (bool, error)

	// Reset clears internal hysteresis state
	Reset()

	// Close releases resources
	Close() error
}

// Config holds VAD configuration
type Config struct {
	// Engine selects the detector implementation ("rms" or "webrtc")
	Engine string

	// SampleRate is the audio sample rate (8000, 16000, 32000 or 48000
	// for the WebRTC engine)
	SampleRate int

	// Threshold is the RMS energy threshold, clamped to [0.001, 0.1]
	Threshold float64

	// Mode is the WebRTC aggressiveness (0-3)
	Mode int
}

// DefaultConfig returns default VAD configuration
func DefaultConfig() Config {
	return Config{
		Engine:     "rms",
		SampleRate: 16000,
		Threshold:  0.01,
		Mode:       2,
	}
}

// New creates a detector for the configured engine
func New(cfg Config) (Detector, error) {
	switch cfg.Engine {
	case "", "rms":
		return NewRMS(cfg), nil
	case "webrtc":
		return NewWebRTC(cfg)
	default:
		return nil, fmt.Errorf("unknown VAD engine %q", cfg.Engine)
	}
}
