// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     tts
// Description: Non-streaming HTTP synthesis fallback
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTTS synthesizes the full text in one request and delivers the
// result as a single chunk. Used as the fallback when the streaming
// provider is unavailable.
type HTTPTTS struct {
	baseURL    string
	apiKey     string
	voice      string
	model      string
	sampleRate int
	httpClient *http.Client
}

// NewHTTPTTS creates the fallback synthesis provider
func NewHTTPTTS(cfg Config) (*HTTPTTS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("fallback URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}

	return &HTTPTTS{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		voice:      cfg.Voice,
		model:      cfg.Model,
		sampleRate: sampleRate,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name
func (h *HTTPTTS) Name() string {
	return "http"
}

// SampleRate returns the output sample rate
func (h *HTTPTTS) SampleRate() int {
	return h.sampleRate
}

// speechRequest is the provider's JSON request body
type speechRequest struct {
	Model string `json:"model,omitempty"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// Synthesize converts the entire text in one call and delivers exactly
// one audio chunk
func (h *HTTPTTS) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	body, err := json.Marshal(speechRequest{
		Model: h.model,
		Voice: h.voice,
		Input: text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := h.baseURL + "/v1/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("provider returned empty audio")
	}

	onChunk(audio)
	return nil
}

// Stop is a no-op: there is no in-flight state to abort for the
// single-shot provider
func (h *HTTPTTS) Stop() {}

// Close releases resources
func (h *HTTPTTS) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}
