// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     llm
// Description: Language model client interface
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package llm

import (
	"context"
	"time"
)

// Message is one turn of conversation context
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client streams a chat completion for the given conversation.
// ChatStream calls onToken for each response delta and returns the full
// concatenated reply once the stream completes.
type Client interface {
	ChatStream(ctx context.Context, messages []Message, onToken func(token string)) (string, error)
	Close() error
}

// Config holds language model configuration
type Config struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns a default LLM configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:11434",
		Model:       "mistral:7b",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     120 * time.Second,
	}
}
