// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     vad
// Description: WebRTC VAD engine
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTC wraps the WebRTC voice activity detector. It requires one of
// the sample rates the codec supports and processes audio in 10ms
// frames.
type WebRTC struct {
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
}

// NewWebRTC creates a WebRTC VAD instance
func NewWebRTC(cfg Config) (*WebRTC, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("sample rate %d not supported by WebRTC VAD", cfg.SampleRate)
	}

	return &WebRTC{
		vad:        vad,
		sampleRate: cfg.SampleRate,
		mode:       mode,
	}, nil
}

// Process returns true when any 10ms frame in the samples has speech
func (w *WebRTC) Process(samples []float32) (bool, error) {
	int16Samples := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		int16Samples[i] = int16(s * 32767)
	}

	frameSize := w.sampleRate / 100 // 10ms
	if len(int16Samples) < frameSize {
		padded := make([]int16, frameSize)
		copy(padded, int16Samples)
		int16Samples = padded
	}

	for i := 0; i+frameSize <= len(int16Samples); i += frameSize {
		frame := int16ToBytes(int16Samples[i : i+frameSize])

		active, err := w.vad.Process(w.sampleRate, frame)
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}

	return false, nil
}

// int16ToBytes converts int16 samples to little-endian bytes
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Reset clears internal state. The WebRTC detector is stateless between
// frames.
func (w *WebRTC) Reset() {}

// Close releases resources
func (w *WebRTC) Close() error {
	return nil
}
