package audio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSink records written samples and can slow playback down
type fakeSink struct {
	mu      sync.Mutex
	written []float32
	delay   time.Duration
}

func (f *fakeSink) start() error { return nil }

func (f *fakeSink) write(samples []float32) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, samples...)
	return nil
}

func (f *fakeSink) close() error { return nil }

func (f *fakeSink) totalWritten() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func newTestStreamer(t *testing.T, out *fakeSink) *Streamer {
	t.Helper()
	cfg := DefaultPlaybackConfig()
	cfg.BufferSize = 64
	s := newStreamerWithSink(cfg, out)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStreamer_PlaysQueuedChunksCompletely(t *testing.T) {
	out := &fakeSink{}
	s := newTestStreamer(t, out)

	// Two chunks of 100 samples each
	chunk := FloatToPCM16(make([]float32, 100))
	s.Enqueue(chunk)
	s.Enqueue(chunk)

	waitFor(t, func() bool { return out.totalWritten() == 200 }, "not all samples reached the sink")
	waitFor(t, func() bool { return !s.IsPlaying() }, "streamer still playing after queue drained")
}

func TestStreamer_StartEndCallbacks(t *testing.T) {
	out := &fakeSink{}
	s := newTestStreamer(t, out)

	var starts, ends atomic.Int32
	s.OnPlaybackStart(func() { starts.Add(1) })
	s.OnPlaybackEnd(func() { ends.Add(1) })

	s.Enqueue(FloatToPCM16(make([]float32, 64)))
	waitFor(t, func() bool { return ends.Load() == 1 }, "end callback not fired")

	if starts.Load() != 1 {
		t.Errorf("start callbacks = %d, want 1", starts.Load())
	}

	// A second burst fires the callbacks again
	s.Enqueue(FloatToPCM16(make([]float32, 64)))
	waitFor(t, func() bool { return ends.Load() == 2 }, "second end callback not fired")
	if starts.Load() != 2 {
		t.Errorf("start callbacks = %d, want 2", starts.Load())
	}
}

func TestStreamer_StopDiscardsBufferedAudio(t *testing.T) {
	out := &fakeSink{delay: 20 * time.Millisecond}
	s := newTestStreamer(t, out)

	// Queue far more audio than can play before Stop
	big := FloatToPCM16(make([]float32, 64*50))
	s.Enqueue(big)
	s.Enqueue(big)

	waitFor(t, func() bool { return out.totalWritten() > 0 }, "playback never started")
	s.Stop()

	written := out.totalWritten()
	time.Sleep(100 * time.Millisecond)

	// At most one more buffer may drain after Stop
	if after := out.totalWritten(); after > written+64 {
		t.Errorf("sink received %d samples after Stop, started at %d", after, written)
	}
	waitFor(t, func() bool { return !s.IsPlaying() }, "streamer still playing after Stop")
}

func TestStreamer_EnqueueEmptyChunkIsNoop(t *testing.T) {
	out := &fakeSink{}
	s := newTestStreamer(t, out)

	s.Enqueue(nil)
	s.Enqueue([]byte{})

	time.Sleep(50 * time.Millisecond)
	if out.totalWritten() != 0 {
		t.Errorf("sink received %d samples, want 0", out.totalWritten())
	}
	if s.IsPlaying() {
		t.Error("streamer playing after empty enqueues")
	}
}
