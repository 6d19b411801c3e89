// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     stt
// Description: Ordered provider failover chain
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package stt

import (
	"context"
	"fmt"

	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// Chain tries an ordered list of transcription providers in sequence.
// Adding a third provider is a configuration change, not a code change.
type Chain struct {
	providers []Transcriber
	logger    *logging.Logger
}

// NewChain creates a failover chain over the given providers
func NewChain(providers ...Transcriber) *Chain {
	return &Chain{
		providers: providers,
		logger:    logging.New("stt-chain"),
	}
}

// Name returns the chain identity
func (c *Chain) Name() string {
	return "chain"
}

// Transcribe tries each provider in order until one succeeds.
// A nil result from a succeeding provider means no speech was detected;
// that outcome is returned immediately and does NOT trigger failover.
func (c *Chain) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no transcription providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		res, err := p.Transcribe(ctx, pcm)
		if err != nil {
			// Cancellation aborts the chain, a provider failure moves on
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("provider failed, trying next",
				"provider", p.Name(),
				"error", err,
			)
			lastErr = err
			continue
		}
		return res, nil
	}

	return nil, fmt.Errorf("all transcription providers failed: %w", lastErr)
}

// IsAvailable reports whether any provider in the chain is reachable
func (c *Chain) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// Close closes all providers, returning the first error encountered
func (c *Chain) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
