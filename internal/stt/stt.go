// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     stt
// Description: Speech-to-text provider interface and result types
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package stt

import (
	"context"
	"time"
)

// Result holds the outcome of a transcription
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Duration   time.Duration
}

// Transcriber converts a buffered utterance (16-bit LE mono PCM) into text.
//
// A nil Result with a nil error means the provider succeeded but found no
// speech in the audio. Callers must treat that as "abandon the turn
// silently", not as a failure.
type Transcriber interface {
	// Name identifies the provider for logging
	Name() string

	// Transcribe converts PCM audio to text
	Transcribe(ctx context.Context, pcm []byte) (*Result, error)

	// IsAvailable reports whether the provider is reachable
	IsAvailable(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// Config holds provider configuration shared by the HTTP transcribers
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Timeout    time.Duration
}

// DefaultConfig returns a default STT configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8000",
		Model:      "whisper-1",
		Language:   "en",
		SampleRate: 16000,
		Timeout:    30 * time.Second,
	}
}
