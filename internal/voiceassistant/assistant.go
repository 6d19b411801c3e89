// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     voiceassistant
// Description: Voice assistant controller
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/msto63/sprechwerk/internal/protocol"
	"github.com/msto63/sprechwerk/internal/voiceassistant/audio"
	"github.com/msto63/sprechwerk/internal/voiceassistant/vad"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// Config holds assistant configuration
type Config struct {
	ServerURL   string
	Token       string
	SampleRate  int
	ChunkMillis int
	VAD         vad.Config
	InputDevice string
	Playback    audio.PlaybackConfig
}

// DefaultAssistantConfig returns default assistant configuration
func DefaultAssistantConfig() Config {
	return Config{
		ServerURL:   "ws://localhost:8090/voice/stream",
		SampleRate:  audio.DefaultSampleRate,
		ChunkMillis: 300,
		VAD:         vad.DefaultConfig(),
		Playback:    audio.DefaultPlaybackConfig(),
	}
}

// sender is the gateway connection the assistant talks through
type sender interface {
	Connect(ctx context.Context) error
	Send(msg protocol.Message) error
	Disconnect()
}

// player is the audio output the assistant streams responses to
type player interface {
	Enqueue(pcm []byte)
	Stop()
	OnPlaybackStart(fn func())
	OnPlaybackEnd(fn func())
	Close() error
}

// Assistant runs the client side of a voice conversation: it watches
// the microphone for speech, streams utterances to the gateway and
// plays the synthesized answer, interrupting it when the user starts
// talking again.
type Assistant struct {
	cfg      Config
	logger   *logging.Logger
	sm       *StateMachine
	detector vad.Detector
	conn     sender
	out      player
	capture  *audio.Capture

	chunkBuf     *audio.AudioBuffer
	chunkSamples int
	wasSpeech    bool
	respDone     atomic.Bool

	onTranscript func(string)
	onToken      func(string)
	onError      func(string)
}

// New creates an assistant with real audio devices and a gateway
// transport
func New(cfg Config) (*Assistant, error) {
	detector, err := vad.New(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("failed to create VAD: %w", err)
	}

	captureCfg := audio.DefaultCaptureConfig()
	captureCfg.SampleRate = float64(cfg.SampleRate)
	captureCfg.DeviceName = cfg.InputDevice
	capture, err := audio.NewCapture(captureCfg)
	if err != nil {
		detector.Close()
		return nil, err
	}

	out, err := audio.NewStreamer(cfg.Playback)
	if err != nil {
		detector.Close()
		capture.Close()
		return nil, err
	}

	transportCfg := DefaultTransportConfig()
	transportCfg.URL = cfg.ServerURL
	transportCfg.Token = cfg.Token

	a := newAssistant(cfg, detector, NewTransport(transportCfg), out)
	a.capture = capture
	return a, nil
}

// newAssistant wires the controller around injected dependencies
func newAssistant(cfg Config, detector vad.Detector, conn sender, out player) *Assistant {
	if cfg.ChunkMillis <= 0 {
		cfg.ChunkMillis = 300
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}

	a := &Assistant{
		cfg:          cfg,
		logger:       logging.New("voice-assistant"),
		sm:           NewStateMachine(),
		detector:     detector,
		conn:         conn,
		out:          out,
		chunkBuf:     audio.NewAudioBuffer(),
		chunkSamples: cfg.SampleRate * cfg.ChunkMillis / 1000,
	}

	out.OnPlaybackStart(a.playbackStarted)
	out.OnPlaybackEnd(a.playbackEnded)

	if t, ok := conn.(*Transport); ok {
		t.OnMessage(a.handleMessage)
		t.OnStateChange(a.connStateChanged)
	}

	return a
}

// OnTranscript sets the callback for recognized utterances
func (a *Assistant) OnTranscript(fn func(string)) { a.onTranscript = fn }

// OnToken sets the callback for streamed response tokens
func (a *Assistant) OnToken(fn func(string)) { a.onToken = fn }

// OnError sets the callback for gateway errors
func (a *Assistant) OnError(fn func(string)) { a.onError = fn }

// StateMachine exposes the assistant state for UIs
func (a *Assistant) StateMachine() *StateMachine { return a.sm }

// Run connects to the gateway and processes microphone audio until ctx
// is cancelled
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.conn.Connect(ctx); err != nil {
		a.logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	if a.capture != nil {
		if err := a.capture.Start(ctx); err != nil {
			a.sm.Transition(StateError)
			return fmt.Errorf("failed to start capture: %w", err)
		}
		a.runFrames(ctx, a.capture.Output())
		return nil
	}

	<-ctx.Done()
	return nil
}

// runFrames consumes capture frames until the channel closes or ctx is
// cancelled
func (a *Assistant) runFrames(ctx context.Context, frames <-chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			a.handleFrame(frame)
		}
	}
}

// handleFrame runs one capture frame through VAD and the chunker
func (a *Assistant) handleFrame(frame []float32) {
	speech, err := a.detector.Process(frame)
	if err != nil {
		a.logger.Warn("VAD failed", "error", err)
		return
	}

	if speech && !a.wasSpeech {
		a.speechStarted()
	}

	// Audio always flows once capture runs; the VAD edges only steer
	// barge-in and end-of-utterance signaling. Gating on the speech
	// decision would clip the utterance onset the hysteresis needs to
	// confirm.
	a.chunkBuf.Append(frame)
	if a.chunkBuf.Len() >= a.chunkSamples {
		a.flushChunk()
	}

	if !speech && a.wasSpeech {
		a.speechEnded()
	}

	a.wasSpeech = speech
}

// speechStarted opens an utterance, barging in on active playback
func (a *Assistant) speechStarted() {
	switch a.sm.Current() {
	case StateSpeaking:
		// The user talks over the answer: cut playback and tell the
		// gateway to abort the turn
		a.out.Stop()
		a.conn.Send(protocol.Interrupt())
		a.sm.Transition(StateInterrupted)
		a.sm.Transition(StateListening)
		a.logger.Info("barge-in, interrupting playback")
	case StateIdle, StateInterrupted, StateProcessing:
		a.sm.Transition(StateListening)
	}
}

// speechEnded closes the utterance and hands the turn to the gateway
func (a *Assistant) speechEnded() {
	if a.sm.Current() != StateListening {
		return
	}

	a.flushChunk()
	a.conn.Send(protocol.EndUtterance())
	a.respDone.Store(false)
	a.sm.Transition(StateProcessing)
}

// flushChunk sends the buffered samples as one audio_input message
func (a *Assistant) flushChunk() {
	if a.chunkBuf.Len() == 0 {
		return
	}
	pcm := audio.FloatToPCM16(a.chunkBuf.Take())
	a.conn.Send(protocol.AudioInput(pcm))
}

// handleMessage dispatches one gateway message
func (a *Assistant) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeSTTResult:
		a.logger.Debug("transcript", "text", msg.Text)
		if a.onTranscript != nil {
			a.onTranscript(msg.Text)
		}

	case protocol.TypeLLMToken:
		if a.onToken != nil {
			a.onToken(msg.Token)
		}

	case protocol.TypeAudioChunk:
		pcm, err := msg.AudioBytes()
		if err != nil {
			a.logger.Warn("unplayable audio chunk", "error", err)
			return
		}
		a.out.Enqueue(pcm)

	case protocol.TypeResponseComplete:
		a.respDone.Store(true)
		// With no audio left to play the turn is already over
		if a.sm.Current() == StateProcessing {
			a.sm.Transition(StateIdle)
		}

	case protocol.TypeError:
		a.logger.Warn("gateway error", "error", msg.Error)
		if a.onError != nil {
			a.onError(msg.Error)
		}
		if a.sm.Current() == StateProcessing {
			a.sm.Transition(StateIdle)
		}
	}
}

// connStateChanged surfaces a dead gateway connection as the error
// conversation state
func (a *Assistant) connStateChanged(s ConnState) {
	if s != ConnFailed {
		return
	}
	a.logger.Error("gateway connection failed permanently")
	a.sm.Transition(StateError)
	if a.onError != nil {
		a.onError("connection to gateway lost")
	}
}

// playbackStarted marks the answer as audible
func (a *Assistant) playbackStarted() {
	a.sm.Transition(StateSpeaking)
}

// playbackEnded returns to idle once the full answer has played
func (a *Assistant) playbackEnded() {
	if a.respDone.Load() && a.sm.Current() == StateSpeaking {
		a.sm.Transition(StateIdle)
	}
}

// Close releases all resources
func (a *Assistant) Close() error {
	a.conn.Disconnect()
	if a.capture != nil {
		a.capture.Close()
	}
	a.detector.Close()
	return a.out.Close()
}
