// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     stt
// Description: Whisper-compatible HTTP transcription provider
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// WhisperHTTP transcribes audio via a Whisper-compatible HTTP API
// (POST /v1/audio/transcriptions with a multipart WAV upload)
type WhisperHTTP struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// NewWhisperHTTP creates a new HTTP transcription provider
func NewWhisperHTTP(name string, cfg Config) *WhisperHTTP {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	return &WhisperHTTP{
		name:       name,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.Language,
		sampleRate: sampleRate,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name
func (w *WhisperHTTP) Name() string {
	return w.name
}

// transcriptionResponse is the provider's JSON response body
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcribe uploads the utterance as WAV and returns the transcript.
// Returns (nil, nil) when the provider recognizes no speech.
func (w *WhisperHTTP) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	start := time.Now()

	wav, err := pcmToWAV(pcm, w.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("model", w.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if w.language != "" && w.language != "auto" {
		if err := writer.WriteField("language", w.language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := w.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// An empty transcript is a valid no-speech outcome, not an error
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return nil, nil
	}

	return &Result{
		Text:     text,
		Language: tr.Language,
		Duration: time.Since(start),
	}, nil
}

// IsAvailable checks whether the provider endpoint responds
func (w *WhisperHTTP) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Close releases resources
func (w *WhisperHTTP) Close() error {
	w.httpClient.CloseIdleConnections()
	return nil
}
