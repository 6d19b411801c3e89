// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     audio
// Description: Microphone capture using PortAudio
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultSampleRate is 16kHz, what the transcription models expect
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is the capture buffer size
	DefaultFramesPerBuffer = 512

	// DefaultChannels is mono audio
	DefaultChannels = 1
)

// ErrDeviceUnavailable is returned when no usable input device exists
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// CaptureConfig holds configuration for microphone capture
type CaptureConfig struct {
	SampleRate float64
	BufferSize int
	Channels   int
	DeviceName string // empty = system default
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate: DefaultSampleRate,
		BufferSize: DefaultFramesPerBuffer,
		Channels:   DefaultChannels,
	}
}

// Capture reads microphone audio and delivers fixed-size sample frames
// on its output channel. Frames are dropped when the consumer falls
// behind rather than blocking the audio callback.
type Capture struct {
	mu          sync.RWMutex
	stream      *portaudio.Stream
	cfg         CaptureConfig
	running     bool
	initialized bool
	outputChan  chan []float32
}

// NewCapture creates a new microphone capture instance
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Capture{
		cfg:         cfg,
		outputChan:  make(chan []float32, 100),
		initialized: true,
	}, nil
}

// Start begins capturing audio until ctx is cancelled or Stop is called
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	buffer := make([]float32, c.cfg.BufferSize)

	stream, err := c.openStream(buffer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	c.stream = stream
	c.running = true

	go c.captureLoop(ctx, buffer)

	return nil
}

// openStream opens the configured input device, falling back to the
// system default when the named device is not found
func (c *Capture) openStream(buffer []float32) (*portaudio.Stream, error) {
	if c.cfg.DeviceName != "" && c.cfg.DeviceName != "default" {
		if device, err := findInputDevice(c.cfg.DeviceName); err == nil {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: c.cfg.Channels,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      c.cfg.SampleRate,
				FramesPerBuffer: c.cfg.BufferSize,
			}
			return portaudio.OpenStream(params, buffer)
		}
	}

	return portaudio.OpenDefaultStream(
		c.cfg.Channels, // input channels
		0,              // no output channels
		c.cfg.SampleRate,
		c.cfg.BufferSize,
		buffer,
	)
}

// findInputDevice finds a PortAudio input device by name
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}

	return nil, fmt.Errorf("input device not found: %s", name)
}

// captureLoop reads frames from the stream until stopped
func (c *Capture) captureLoop(ctx context.Context, buffer []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		stream := c.stream
		running := c.running
		c.mu.RUnlock()
		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			c.mu.RLock()
			running = c.running
			c.mu.RUnlock()
			if !running {
				return
			}
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)

		select {
		case c.outputChan <- samples:
		default:
			// Consumer is behind, drop the frame
		}
	}
}

// Stop stops capturing
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.stream != nil {
		c.stream.Stop()
		if err := c.stream.Close(); err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
		c.stream = nil
	}

	return nil
}

// Close stops capture and releases PortAudio
func (c *Capture) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
		c.initialized = false
	}

	close(c.outputChan)
	return nil
}

// Output returns the channel delivering captured sample frames
func (c *Capture) Output() <-chan []float32 {
	return c.outputChan
}

// IsRunning returns whether capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// SampleRate returns the configured sample rate
func (c *Capture) SampleRate() float64 {
	return c.cfg.SampleRate
}

// DeviceInfo describes an available input device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the available input devices
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var inputs []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}

	return inputs, nil
}
