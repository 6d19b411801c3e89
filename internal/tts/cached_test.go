package tts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/msto63/sprechwerk/pkg/core/cache"
)

type countingSynth struct {
	calls   int
	fail    bool
	stopped bool
}

func (s *countingSynth) Name() string { return "counting" }

func (s *countingSynth) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	s.calls++
	if s.fail {
		return errors.New("provider down")
	}
	onChunk([]byte("A:" + text))
	onChunk([]byte("B:" + text))
	return nil
}

func (s *countingSynth) Stop()           { s.stopped = true }
func (s *countingSynth) SampleRate() int { return 22050 }
func (s *countingSynth) Close() error    { return nil }

func newTestCached(t *testing.T, inner Synthesizer) *Cached {
	t.Helper()
	store := cache.New(cache.DefaultConfig())
	t.Cleanup(store.Close)
	return NewCached(inner, store, "alloy", "tts-1")
}

func collectChunks(t *testing.T, c *Cached, text string) [][]byte {
	t.Helper()
	var chunks [][]byte
	if err := c.Synthesize(context.Background(), text, func(audio []byte) {
		chunks = append(chunks, audio)
	}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	return chunks
}

func TestCached_ReplaysFromCache(t *testing.T) {
	inner := &countingSynth{}
	c := newTestCached(t, inner)

	first := collectChunks(t, c, "Hallo")
	second := collectChunks(t, c, "Hallo")

	if inner.calls != 1 {
		t.Errorf("provider called %d times, want 1", inner.calls)
	}
	if len(second) != len(first) {
		t.Fatalf("replay delivered %d chunks, want %d", len(second), len(first))
	}
	for i := range first {
		if !bytes.Equal(first[i], second[i]) {
			t.Errorf("chunk %d differs between synthesis and replay", i)
		}
	}
}

func TestCached_DistinctTextsMiss(t *testing.T) {
	inner := &countingSynth{}
	c := newTestCached(t, inner)

	collectChunks(t, c, "Hallo")
	collectChunks(t, c, "Tschüss")

	if inner.calls != 2 {
		t.Errorf("provider called %d times, want 2", inner.calls)
	}
}

func TestCached_ErrorNotCached(t *testing.T) {
	inner := &countingSynth{fail: true}
	c := newTestCached(t, inner)

	if err := c.Synthesize(context.Background(), "Hallo", func([]byte) {}); err == nil {
		t.Fatal("Synthesize() succeeded with failing provider")
	}

	inner.fail = false
	collectChunks(t, c, "Hallo")

	if inner.calls != 2 {
		t.Errorf("provider called %d times after failed attempt, want 2", inner.calls)
	}
}

func TestCached_StoppedRunNotCached(t *testing.T) {
	inner := &countingSynth{}
	c := newTestCached(t, inner)

	err := c.Synthesize(context.Background(), "Hallo", func([]byte) {
		c.Stop()
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !inner.stopped {
		t.Error("Stop() not forwarded to provider")
	}

	collectChunks(t, c, "Hallo")
	if inner.calls != 2 {
		t.Errorf("provider called %d times, want 2 (stopped run must not cache)", inner.calls)
	}
}

func TestCached_SharedAcrossInstances(t *testing.T) {
	store := cache.New(cache.DefaultConfig())
	defer store.Close()

	first := &countingSynth{}
	second := &countingSynth{}
	a := NewCached(first, store, "alloy", "tts-1")
	b := NewCached(second, store, "alloy", "tts-1")

	collectChunks(t, a, "Hallo")
	collectChunks(t, b, "Hallo")

	if first.calls != 1 || second.calls != 0 {
		t.Errorf("provider calls = %d/%d, want 1/0 (cache shared)", first.calls, second.calls)
	}
}

func TestCached_LongTextBypassesCache(t *testing.T) {
	inner := &countingSynth{}
	c := newTestCached(t, inner)

	long := strings.Repeat("x", MaxCachedTextLen+1)
	collectChunks(t, c, long)
	collectChunks(t, c, long)

	if inner.calls != 2 {
		t.Errorf("provider called %d times for long text, want 2", inner.calls)
	}
}
