// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     tts
// Description: Text-to-speech provider interface and failover
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// Synthesizer converts text into a stream of audio chunks.
// Synthesize returns once all audio for the given text has been delivered
// through the callback.
type Synthesizer interface {
	// Name identifies the provider for logging
	Name() string

	// Synthesize converts text to audio, delivering chunks via onChunk
	Synthesize(ctx context.Context, text string, onChunk func(audio []byte)) error

	// Stop aborts in-flight synthesis without closing the provider
	Stop()

	// SampleRate returns the output sample rate
	SampleRate() int

	// Close releases resources
	Close() error
}

// Config holds provider configuration
type Config struct {
	URL        string
	APIKey     string
	Voice      string
	Model      string
	SampleRate int
	Timeout    time.Duration
}

// DefaultConfig returns a default TTS configuration
func DefaultConfig() Config {
	return Config{
		Voice:      "alloy",
		SampleRate: 22050,
		Timeout:    10 * time.Second,
	}
}

// Failover wraps a streaming primary with a non-streaming fallback.
// If the primary cannot deliver (connection failure, missing credential,
// timeout), the full text is synthesized in one call to the fallback and
// delivered as a single chunk.
type Failover struct {
	primary  Synthesizer
	fallback Synthesizer
	logger   *logging.Logger
}

// NewFailover creates a failover synthesizer. Either provider may be nil.
func NewFailover(primary, fallback Synthesizer) *Failover {
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   logging.New("tts-failover"),
	}
}

// Name returns the provider name
func (f *Failover) Name() string {
	return "failover"
}

// Synthesize tries the primary, then the fallback. The fallback is only
// consulted when the primary delivered nothing: once a chunk has reached
// the caller, re-synthesizing the full text would duplicate audio at the
// client.
func (f *Failover) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	if f.primary != nil {
		delivered := 0
		err := f.primary.Synthesize(ctx, text, func(audio []byte) {
			delivered++
			onChunk(audio)
		})
		if err == nil {
			return nil
		}
		// Cancellation is not a provider failure
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered > 0 || f.fallback == nil {
			return err
		}
		f.logger.Warn("primary synthesis failed, using fallback",
			"primary", f.primary.Name(),
			"error", err,
		)
	}

	if f.fallback == nil {
		return fmt.Errorf("no synthesis provider configured")
	}
	return f.fallback.Synthesize(ctx, text, onChunk)
}

// Stop aborts in-flight synthesis on both providers
func (f *Failover) Stop() {
	if f.primary != nil {
		f.primary.Stop()
	}
	if f.fallback != nil {
		f.fallback.Stop()
	}
}

// SampleRate returns the primary's sample rate when available
func (f *Failover) SampleRate() int {
	if f.primary != nil {
		return f.primary.SampleRate()
	}
	if f.fallback != nil {
		return f.fallback.SampleRate()
	}
	return 0
}

// Close closes both providers
func (f *Failover) Close() error {
	var firstErr error
	if f.primary != nil {
		if err := f.primary.Close(); err != nil {
			firstErr = err
		}
	}
	if f.fallback != nil {
		if err := f.fallback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
