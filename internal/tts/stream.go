// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     tts
// Description: Streaming WebSocket synthesis provider
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// initFrame configures the provider stream, sent once per connection
type initFrame struct {
	Type       string `json:"type"`
	Voice      string `json:"voice"`
	Model      string `json:"model,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

// synthFrame requests synthesis of a text segment. An empty text with
// flush set aborts the in-flight synthesis.
type synthFrame struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush"`
}

// audioFrame is the provider's streamed response
type audioFrame struct {
	Audio   string `json:"audio,omitempty"`
	IsFinal bool   `json:"isFinal,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StreamTTS synthesizes speech over a persistent WebSocket connection to a
// low-latency provider. The connection is established lazily on first use
// and reused across turns; it is owned by exactly one session.
type StreamTTS struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	dialWait chan struct{} // non-nil while a dial is in flight
	dialErr  error

	// Serializes frame writes: Stop and Close are called from the
	// session's read goroutine while Synthesize runs on the turn
	// goroutine, and gorilla connections do not allow concurrent writes
	writeMu sync.Mutex
}

// NewStreamTTS creates a streaming synthesis provider
func NewStreamTTS(cfg Config) (*StreamTTS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}

	return &StreamTTS{
		cfg:    cfg,
		logger: logging.New("tts-stream"),
	}, nil
}

// Name returns the provider name
func (s *StreamTTS) Name() string {
	return "stream"
}

// SampleRate returns the output sample rate
func (s *StreamTTS) SampleRate() int {
	return s.cfg.SampleRate
}

// ensureConn returns the live provider connection, dialing lazily.
// Concurrent callers during a dial wait for the in-flight attempt instead
// of opening duplicate connections.
func (s *StreamTTS) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	for {
		s.mu.Lock()
		if s.conn != nil {
			conn := s.conn
			s.mu.Unlock()
			return conn, nil
		}
		if s.dialWait != nil {
			wait := s.dialWait
			s.mu.Unlock()
			select {
			case <-wait:
				// Re-check: the dial either produced a connection or failed
				s.mu.Lock()
				if s.conn == nil {
					err := s.dialErr
					s.mu.Unlock()
					if err != nil {
						return nil, err
					}
					continue
				}
				conn := s.conn
				s.mu.Unlock()
				return conn, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		wait := make(chan struct{})
		s.dialWait = wait
		s.mu.Unlock()

		conn, err := s.dial(ctx)

		s.mu.Lock()
		if err != nil {
			s.dialErr = err
		} else {
			s.conn = conn
			s.dialErr = nil
		}
		s.dialWait = nil
		s.mu.Unlock()
		close(wait)

		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// dial opens the provider connection and sends the initialization frame
func (s *StreamTTS) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.Timeout,
	}

	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to synthesis provider: %w", err)
	}

	init := initFrame{
		Type:       "init",
		Voice:      s.cfg.Voice,
		Model:      s.cfg.Model,
		SampleRate: s.cfg.SampleRate,
	}
	conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send init frame: %w", err)
	}

	s.logger.Info("synthesis stream connected",
		"voice", s.cfg.Voice,
		"sample_rate", s.cfg.SampleRate,
	)
	return conn, nil
}

// writeFrame sends one frame under the write lock
func (s *StreamTTS) writeFrame(conn *websocket.Conn, frame interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
	return conn.WriteJSON(frame)
}

// dropConn closes and clears the connection after a protocol error; the
// next Synthesize call re-dials
func (s *StreamTTS) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// Synthesize sends a flush frame for the text and collects audio frames
// until the provider signals the final one
func (s *StreamTTS) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	conn, err := s.ensureConn(ctx)
	if err != nil {
		return err
	}

	if err := s.writeFrame(conn, synthFrame{Text: text, Flush: true}); err != nil {
		s.dropConn(conn)
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	// Unblock the read loop if the caller cancels mid-synthesis
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout))

		var frame audioFrame
		if err := conn.ReadJSON(&frame); err != nil {
			s.dropConn(conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("synthesis stream read failed: %w", err)
		}

		if frame.Error != "" {
			return fmt.Errorf("provider error: %s", frame.Error)
		}

		if frame.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				s.dropConn(conn)
				return fmt.Errorf("invalid audio frame: %w", err)
			}
			onChunk(audio)
		}

		if frame.IsFinal {
			return nil
		}
	}
}

// Stop sends an empty flush frame, aborting in-flight synthesis on the
// provider side while keeping the connection open for the next turn
func (s *StreamTTS) Stop() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}

	if err := s.writeFrame(conn, synthFrame{Text: "", Flush: true}); err != nil {
		s.logger.Warn("failed to send stop frame", "error", err)
		s.dropConn(conn)
	}
}

// Close tears down the provider connection
func (s *StreamTTS) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}
