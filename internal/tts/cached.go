// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     tts
// Description: Synthesis cache for repeated phrases
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/msto63/sprechwerk/pkg/core/cache"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// Cached wraps a synthesizer with an in-memory audio cache. Short assistant
// phrases repeat often across turns; replaying cached chunks avoids a
// round-trip to the provider. Only complete, successful synthesis runs are
// stored, so interrupted or failed turns never poison the cache.
//
// The cache is supplied by the caller and may be shared between sessions;
// Close leaves it untouched.
type Cached struct {
	inner   Synthesizer
	cache   *cache.Cache
	voice   string
	model   string
	maxLen  int
	stopped atomic.Bool
	logger  *logging.Logger
}

// MaxCachedTextLen limits which phrases are cached. Long answers are
// rarely repeated verbatim and would dominate the cache.
const MaxCachedTextLen = 200

// NewCached wraps inner with a synthesis cache. Voice and model are part
// of the cache key so a configuration change never replays stale audio.
func NewCached(inner Synthesizer, c *cache.Cache, voice, model string) *Cached {
	return &Cached{
		inner:  inner,
		cache:  c,
		voice:  voice,
		model:  model,
		maxLen: MaxCachedTextLen,
		logger: logging.New("tts-cache"),
	}
}

// Name returns the wrapped provider name
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Synthesize replays cached audio when available, otherwise forwards to
// the wrapped provider and records the result.
func (c *Cached) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	if len(text) > c.maxLen {
		return c.inner.Synthesize(ctx, text, onChunk)
	}

	key := fmt.Sprintf("%s|%s|%s", c.voice, c.model, text)

	if val, ok := c.cache.Get(key); ok {
		chunks := val.([][]byte)
		c.logger.Debug("cache hit", "text_len", len(text), "chunks", len(chunks))
		for _, chunk := range chunks {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onChunk(chunk)
		}
		return nil
	}

	c.stopped.Store(false)

	var chunks [][]byte
	err := c.inner.Synthesize(ctx, text, func(audio []byte) {
		buf := make([]byte, len(audio))
		copy(buf, audio)
		chunks = append(chunks, buf)
		onChunk(audio)
	})
	if err != nil {
		return err
	}

	// A stopped run returns nil from some providers but delivered
	// truncated audio
	if c.stopped.Load() || ctx.Err() != nil {
		return ctx.Err()
	}

	if len(chunks) > 0 {
		c.cache.Set(key, chunks)
	}
	return nil
}

// Stop aborts in-flight synthesis on the wrapped provider
func (c *Cached) Stop() {
	c.stopped.Store(true)
	c.inner.Stop()
}

// SampleRate returns the wrapped provider's sample rate
func (c *Cached) SampleRate() int {
	return c.inner.SampleRate()
}

// Close closes the wrapped provider. The shared cache stays open.
func (c *Cached) Close() error {
	return c.inner.Close()
}
