// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     session
// Description: Per-connection voice session controller
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/msto63/sprechwerk/internal/llm"
	"github.com/msto63/sprechwerk/internal/protocol"
	"github.com/msto63/sprechwerk/internal/stt"
	"github.com/msto63/sprechwerk/internal/tts"
	"github.com/msto63/sprechwerk/internal/wittgenstein/history"
	"github.com/msto63/sprechwerk/internal/wittgenstein/metrics"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// State represents the session lifecycle state
type State int

const (
	StateIdle State = iota
	StateBuffering
	StateTranscribing
	StateResponding
	StateSynthesizing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateTranscribing:
		return "transcribing"
	case StateResponding:
		return "responding"
	case StateSynthesizing:
		return "synthesizing"
	default:
		return "unknown"
	}
}

// isValidTransition defines the allowed state transitions
var isValidTransition = map[State][]State{
	StateIdle:         {StateBuffering},
	StateBuffering:    {StateBuffering, StateTranscribing, StateIdle},
	StateTranscribing: {StateResponding, StateIdle},
	StateResponding:   {StateSynthesizing, StateIdle},
	StateSynthesizing: {StateIdle},
}

// Config holds session configuration
type Config struct {
	SilenceTimeout time.Duration
	HistoryTurns   int
	WriteTimeout   time.Duration
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		SilenceTimeout: 500 * time.Millisecond,
		HistoryTurns:   20,
		WriteTimeout:   10 * time.Second,
	}
}

// Providers bundles the turn pipeline dependencies. History may be nil.
type Providers struct {
	STT     stt.Transcriber
	TTS     tts.Synthesizer
	LLM     llm.Client
	History *history.Store
}

// Session owns one voice connection: it buffers inbound audio, detects
// end-of-utterance, and runs each turn through STT, the language model
// and TTS, emitting wire messages in strict order.
type Session struct {
	ID     string
	UserID string

	conn      *websocket.Conn
	writeMu   sync.Mutex
	cfg       Config
	providers Providers
	logger    *logging.Logger
	metrics   *metrics.Metrics

	mu            sync.Mutex
	state         State
	audioBuf      bytes.Buffer
	silenceTimer  *time.Timer
	turnCancel    context.CancelFunc
	turnSeq       uint64
	inFlight      bool
	pendingCommit bool

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a session for an accepted connection
func New(conn *websocket.Conn, userID string, cfg Config, providers Providers, m *metrics.Metrics) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		UserID:    userID,
		conn:      conn,
		cfg:       cfg,
		providers: providers,
		logger:    logging.New("voice-session"),
		metrics:   m,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run reads client messages until the connection closes or ctx is
// cancelled. Malformed messages are answered with an error message
// without tearing down the connection.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	s.logger.Info("session started", "session_id", s.ID, "user_id", s.UserID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("connection closed unexpectedly", "session_id", s.ID, "error", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			s.sendError(err.Error())
			continue
		}

		switch msg.Type {
		case protocol.TypeAudioInput:
			s.handleAudio(msg)
		case protocol.TypeEndUtterance:
			// Explicit commit always wins over the silence timer
			s.commitTurn("end_utterance")
		case protocol.TypeInterrupt:
			s.handleInterrupt()
		}
	}
}

// handleAudio appends a chunk to the utterance buffer and re-arms the
// silence timer
func (s *Session) handleAudio(msg protocol.Message) {
	pcm, err := msg.AudioBytes()
	if err != nil {
		s.sendError(err.Error())
		return
	}

	s.mu.Lock()
	s.audioBuf.Write(pcm)
	if s.state == StateIdle && !s.inFlight {
		s.transitionLocked(StateBuffering)
	}
	s.armSilenceTimerLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AudioBytesIn.Add(float64(len(pcm)))
	}
}

// armSilenceTimerLocked (re)starts the end-of-utterance timer.
// Caller holds s.mu.
func (s *Session) armSilenceTimerLocked() {
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
	}
	s.silenceTimer = time.AfterFunc(s.cfg.SilenceTimeout, func() {
		s.commitTurn("silence")
	})
}

// commitTurn hands the buffered utterance to the pipeline. A commit
// while a turn is in flight is deferred until that turn finishes; a
// commit with an empty buffer is a no-op (this also makes a stale
// silence-timer fire after an explicit end_utterance harmless).
func (s *Session) commitTurn(trigger string) {
	s.mu.Lock()
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}

	if s.audioBuf.Len() == 0 {
		if s.state == StateBuffering {
			s.transitionLocked(StateIdle)
		}
		s.mu.Unlock()
		return
	}

	if s.inFlight {
		s.pendingCommit = true
		s.mu.Unlock()
		return
	}

	pcm := make([]byte, s.audioBuf.Len())
	copy(pcm, s.audioBuf.Bytes())
	s.audioBuf.Reset()

	s.inFlight = true
	if s.state == StateIdle {
		// Audio buffered while a turn was in flight never moved the
		// state out of idle
		s.transitionLocked(StateBuffering)
	}
	s.transitionLocked(StateTranscribing)
	s.turnSeq++
	seq := s.turnSeq

	ctx, cancel := context.WithCancel(context.Background())
	s.turnCancel = cancel
	s.mu.Unlock()

	s.logger.Debug("turn committed",
		"session_id", s.ID,
		"trigger", trigger,
		"bytes", len(pcm),
	)
	if s.metrics != nil {
		s.metrics.TurnsTotal.Inc()
		s.metrics.UtteranceLength.Observe(float64(len(pcm)))
	}

	go s.runTurn(ctx, seq, pcm)
}

// runTurn drives one utterance through STT → LLM → TTS, emitting
// stt_result, llm_token*, audio_chunk* and response_complete in strict
// order. Interruption bumps the turn sequence, which silently drops any
// remaining output of this turn.
func (s *Session) runTurn(ctx context.Context, seq uint64, pcm []byte) {
	defer s.finishTurn(seq)

	start := time.Now()

	if s.metrics != nil {
		s.metrics.STTRequests.Inc()
	}
	res, err := s.providers.STT.Transcribe(ctx, pcm)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.STTFailures.Inc()
		}
		s.failTurn(seq, "transcription failed")
		return
	}
	if res == nil {
		// No speech recognized: abandon the turn silently
		if s.metrics != nil {
			s.metrics.TurnsAbandoned.Inc()
		}
		s.logger.Debug("no speech recognized, turn abandoned", "session_id", s.ID)
		return
	}

	if !s.send(seq, protocol.STTResult(res.Text)) {
		return
	}
	s.transition(seq, StateResponding)

	messages := s.buildContext(res.Text)
	reply, err := s.providers.LLM.ChatStream(ctx, messages, func(token string) {
		if s.metrics != nil {
			s.metrics.LLMTokens.Inc()
		}
		s.send(seq, protocol.LLMToken(token))
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.LLMFailures.Inc()
		}
		s.logger.Error("language model failed", "session_id", s.ID, "error", err)
		s.failTurn(seq, "language model failed")
		return
	}

	s.transition(seq, StateSynthesizing)
	if s.metrics != nil {
		s.metrics.TTSRequests.Inc()
	}
	err = s.providers.TTS.Synthesize(ctx, reply, func(audio []byte) {
		if s.metrics != nil {
			s.metrics.AudioChunksOut.Inc()
		}
		s.send(seq, protocol.AudioChunk(audio))
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.TTSFailures.Inc()
		}
		s.logger.Error("synthesis failed", "session_id", s.ID, "error", err)
		s.failTurn(seq, "speech synthesis failed")
		return
	}

	if !s.send(seq, protocol.ResponseComplete()) {
		return
	}

	if s.providers.History != nil {
		if err := s.providers.History.Append(s.ID, s.UserID, "user", res.Text); err != nil {
			s.logger.Warn("failed to record user turn", "error", err)
		}
		if err := s.providers.History.Append(s.ID, s.UserID, "assistant", reply); err != nil {
			s.logger.Warn("failed to record assistant turn", "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}
}

// buildContext assembles the language model context from stored history
// plus the fresh transcript
func (s *Session) buildContext(transcript string) []llm.Message {
	var messages []llm.Message
	if s.providers.History != nil && s.cfg.HistoryTurns > 0 {
		recent, err := s.providers.History.Recent(s.UserID, s.cfg.HistoryTurns)
		if err != nil {
			s.logger.Warn("failed to load history", "error", err)
		} else {
			messages = recent
		}
	}
	return append(messages, llm.Message{Role: "user", Content: transcript})
}

// finishTurn returns the session to idle and runs a deferred commit if
// audio arrived while the turn was in flight. A stale sequence means the
// turn was interrupted and state has already been reset.
func (s *Session) finishTurn(seq uint64) {
	s.mu.Lock()
	if s.turnSeq != seq {
		s.mu.Unlock()
		return
	}
	s.inFlight = false
	s.turnCancel = nil
	s.transitionLocked(StateIdle)
	pending := s.pendingCommit && s.audioBuf.Len() > 0
	s.pendingCommit = false
	if pending {
		// Audio that arrived mid-turn is already waiting in the buffer
		s.transitionLocked(StateBuffering)
	}
	s.mu.Unlock()

	if pending {
		s.commitTurn("deferred")
	}
}

// handleInterrupt cancels the in-flight pipeline best-effort, discards
// buffered state and returns to idle without a response_complete
func (s *Session) handleInterrupt() {
	s.mu.Lock()
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	s.audioBuf.Reset()
	wasActive := s.inFlight || s.state != StateIdle
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	s.inFlight = false
	s.pendingCommit = false
	// Invalidate the in-flight turn so its remaining output is dropped
	s.turnSeq++
	s.state = StateIdle
	s.mu.Unlock()

	if !wasActive {
		return
	}

	s.providers.TTS.Stop()

	s.logger.Info("turn interrupted", "session_id", s.ID)
	if s.metrics != nil {
		s.metrics.TurnsInterrupted.Inc()
	}
}

// transition moves to the next state if the turn is still current
func (s *Session) transition(seq uint64, next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnSeq != seq {
		return
	}
	s.transitionLocked(next)
}

// transitionLocked validates and applies a state change. Caller holds s.mu.
func (s *Session) transitionLocked(next State) {
	if s.state == next {
		return
	}
	allowed := false
	for _, st := range isValidTransition[s.state] {
		if st == next {
			allowed = true
			break
		}
	}
	if !allowed {
		s.logger.Warn("invalid state transition",
			"session_id", s.ID,
			"from", s.state.String(),
			"to", next.String(),
		)
		return
	}
	s.state = next
}

// send writes a message to the client if the turn is still current.
// Returns false when the turn has been superseded or the write failed.
func (s *Session) send(seq uint64, msg protocol.Message) bool {
	s.mu.Lock()
	current := s.turnSeq == seq
	s.mu.Unlock()
	if !current {
		return false
	}

	return s.write(msg)
}

// sendError reports a validation or provider failure to the client.
// The connection stays open.
func (s *Session) sendError(text string) {
	s.write(protocol.ErrorMessage(text))
}

// failTurn reports a provider failure for the current turn
func (s *Session) failTurn(seq uint64, text string) {
	s.mu.Lock()
	current := s.turnSeq == seq
	s.mu.Unlock()
	if current {
		s.sendError(text)
	}
}

func (s *Session) write(msg protocol.Message) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Warn("write failed", "session_id", s.ID, "error", err)
		return false
	}
	return true
}

// Close cancels any in-flight turn and releases session state. The
// connection itself is closed by the accept handler.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.silenceTimer != nil {
			s.silenceTimer.Stop()
			s.silenceTimer = nil
		}
		if s.turnCancel != nil {
			s.turnCancel()
			s.turnCancel = nil
		}
		s.turnSeq++
		s.mu.Unlock()

		close(s.done)
		s.logger.Info("session closed", "session_id", s.ID, "user_id", s.UserID)
	})
}

// Done is closed when the session has shut down
func (s *Session) Done() <-chan struct{} {
	return s.done
}
