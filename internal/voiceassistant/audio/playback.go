// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     audio
// Description: Gapless playback of streamed synthesis audio
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PlaybackConfig holds configuration for audio playback
type PlaybackConfig struct {
	SampleRate float64
	Channels   int
	BufferSize int
}

// DefaultPlaybackConfig returns default playback configuration
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		SampleRate: 22050,
		Channels:   1,
		BufferSize: 1024,
	}
}

// sink is the audio output a Streamer writes to
type sink interface {
	start() error
	write(samples []float32) error
	close() error
}

// Streamer plays 16-bit PCM chunks back to back without gaps. Chunks
// enqueued while one is playing are appended to the queue; Stop discards
// everything that has not reached the device yet.
type Streamer struct {
	cfg     PlaybackConfig
	sink    sink
	onStart func()
	onEnd   func()

	mu      sync.Mutex
	queue   [][]float32
	playing bool
	gen     int
	notify  chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamer creates a playback streamer on the default output device
func NewStreamer(cfg PlaybackConfig) (*Streamer, error) {
	out, err := newPortAudioSink(cfg)
	if err != nil {
		return nil, err
	}
	return newStreamerWithSink(cfg, out), nil
}

func newStreamerWithSink(cfg PlaybackConfig, out sink) *Streamer {
	s := &Streamer{
		cfg:    cfg,
		sink:   out,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.playLoop()
	return s
}

// OnPlaybackStart sets the callback fired when playback begins after
// silence
func (s *Streamer) OnPlaybackStart(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = fn
}

// OnPlaybackEnd sets the callback fired when the queue runs dry
func (s *Streamer) OnPlaybackEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = fn
}

// Enqueue schedules a PCM chunk for playback
func (s *Streamer) Enqueue(pcm []byte) {
	samples := PCM16ToFloat(pcm)
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, samples)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Stop discards all buffered audio. The chunk currently at the device
// finishes its buffer, everything else is dropped.
func (s *Streamer) Stop() {
	s.mu.Lock()
	s.queue = nil
	s.gen++
	s.mu.Unlock()
}

// IsPlaying returns whether audio is currently being played
func (s *Streamer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Close stops playback and releases the output device
func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		s.Stop()
		close(s.done)
		select {
		case s.notify <- struct{}{}:
		default:
		}
	})
	return s.sink.close()
}

// playLoop feeds queued chunks to the sink
func (s *Streamer) playLoop() {
	for {
		s.mu.Lock()
		var chunk []float32
		var gen int
		if len(s.queue) > 0 {
			chunk = s.queue[0]
			s.queue = s.queue[1:]
			gen = s.gen
			if !s.playing {
				s.playing = true
				if s.onStart != nil {
					go s.onStart()
				}
			}
		} else if s.playing {
			s.playing = false
			if s.onEnd != nil {
				go s.onEnd()
			}
		}
		s.mu.Unlock()

		if chunk == nil {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		s.playChunk(chunk, gen)

		select {
		case <-s.done:
			return
		default:
		}
	}
}

// playChunk writes one chunk buffer by buffer, aborting when Stop has
// advanced the generation
func (s *Streamer) playChunk(samples []float32, gen int) {
	size := s.cfg.BufferSize
	for offset := 0; offset < len(samples); offset += size {
		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			return
		}

		end := offset + size
		if end > len(samples) {
			end = len(samples)
		}
		if err := s.sink.write(samples[offset:end]); err != nil {
			return
		}
	}
}

// portAudioSink plays samples on the default output device
type portAudioSink struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	started bool
}

func newPortAudioSink(cfg PlaybackConfig) (*portAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	buffer := make([]float32, cfg.BufferSize)
	stream, err := portaudio.OpenDefaultStream(
		0,            // no input channels
		cfg.Channels, // output channels
		cfg.SampleRate,
		cfg.BufferSize,
		&buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	return &portAudioSink{stream: stream, buffer: buffer}, nil
}

func (p *portAudioSink) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	p.started = true
	return nil
}

func (p *portAudioSink) write(samples []float32) error {
	if err := p.start(); err != nil {
		return err
	}

	for i := range p.buffer {
		if i < len(samples) {
			p.buffer[i] = samples[i]
		} else {
			p.buffer[i] = 0
		}
	}
	return p.stream.Write()
}

func (p *portAudioSink) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		if p.started {
			p.stream.Stop()
		}
		p.stream.Close()
		p.stream = nil
	}
	return portaudio.Terminate()
}
