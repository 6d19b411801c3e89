// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     audio
// Description: Sample buffers and PCM conversion
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package audio

import (
	"sync"
)

// AudioBuffer is a growing buffer collecting samples for one utterance
type AudioBuffer struct {
	mu      sync.RWMutex
	samples []float32
}

// NewAudioBuffer creates a new audio buffer
func NewAudioBuffer() *AudioBuffer {
	return &AudioBuffer{
		samples: make([]float32, 0, DefaultSampleRate*10), // ~10 seconds
	}
}

// Append adds samples to the buffer
func (ab *AudioBuffer) Append(samples []float32) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.samples = append(ab.samples, samples...)
}

// Take returns all samples and clears the buffer
func (ab *AudioBuffer) Take() []float32 {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	result := make([]float32, len(ab.samples))
	copy(result, ab.samples)
	ab.samples = ab.samples[:0]
	return result
}

// Len returns the number of buffered samples
func (ab *AudioBuffer) Len() int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return len(ab.samples)
}

// DurationSeconds returns the buffered duration at the given sample rate
func (ab *AudioBuffer) DurationSeconds(sampleRate float64) float64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return float64(len(ab.samples)) / sampleRate
}

// Clear discards all buffered samples
func (ab *AudioBuffer) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.samples = ab.samples[:0]
}

// FloatToPCM16 converts float32 samples in [-1, 1] to 16-bit
// little-endian PCM bytes
func FloatToPCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return pcm
}

// PCM16ToFloat converts 16-bit little-endian PCM bytes to float32
// samples. A trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
