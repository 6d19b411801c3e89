package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeProvider implements the streaming synthesis wire protocol for tests
type fakeProvider struct {
	t *testing.T

	mu        sync.Mutex
	initSeen  initFrame
	flushes   []synthFrame
	connCount int
}

func (f *fakeProvider) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			f.t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.connCount++
		f.mu.Unlock()

		var init initFrame
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		f.mu.Lock()
		f.initSeen = init
		f.mu.Unlock()

		for {
			var frame synthFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			f.mu.Lock()
			f.flushes = append(f.flushes, frame)
			f.mu.Unlock()

			if frame.Text == "" {
				// Stop frame: acknowledge with a bare final
				conn.WriteJSON(audioFrame{IsFinal: true})
				continue
			}

			// One audio chunk per word, then a final frame
			for _, word := range strings.Fields(frame.Text) {
				conn.WriteJSON(audioFrame{
					Audio: base64.StdEncoding.EncodeToString([]byte(word)),
				})
			}
			conn.WriteJSON(audioFrame{IsFinal: true})
		}
	}
}

func newStreamUnderTest(t *testing.T, srv *httptest.Server) *StreamTTS {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Voice = "anna"
	cfg.Timeout = 2 * time.Second
	s, err := NewStreamTTS(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStreamTTS_Synthesize(t *testing.T) {
	provider := &fakeProvider{t: t}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	s := newStreamUnderTest(t, srv)
	defer s.Close()

	var chunks [][]byte
	err := s.Synthesize(context.Background(), "hello world", func(audio []byte) {
		chunks = append(chunks, audio)
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if len(chunks) != 2 || string(chunks[0]) != "hello" || string(chunks[1]) != "world" {
		t.Errorf("chunks = %q, want [hello world]", chunks)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.initSeen.Voice != "anna" {
		t.Errorf("init voice = %q, want anna", provider.initSeen.Voice)
	}
	if len(provider.flushes) != 1 || !provider.flushes[0].Flush {
		t.Errorf("flushes = %+v, want one flush frame", provider.flushes)
	}
}

func TestStreamTTS_ConnectionReused(t *testing.T) {
	provider := &fakeProvider{t: t}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	s := newStreamUnderTest(t, srv)
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Synthesize(context.Background(), "again", func([]byte) {}); err != nil {
			t.Fatalf("Synthesize() #%d error = %v", i, err)
		}
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.connCount != 1 {
		t.Errorf("connCount = %d, want 1 (persistent connection reused)", provider.connCount)
	}
}

func TestStreamTTS_StopSendsEmptyFlush(t *testing.T) {
	provider := &fakeProvider{t: t}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	s := newStreamUnderTest(t, srv)
	defer s.Close()

	if err := s.Synthesize(context.Background(), "hi", func([]byte) {}); err != nil {
		t.Fatal(err)
	}

	s.Stop()

	// Give the server a moment to record the stop frame
	deadline := time.Now().Add(time.Second)
	for {
		provider.mu.Lock()
		n := len(provider.flushes)
		provider.mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.flushes) < 2 {
		t.Fatalf("stop frame not received, flushes = %+v", provider.flushes)
	}
	stop := provider.flushes[len(provider.flushes)-1]
	if stop.Text != "" || !stop.Flush {
		t.Errorf("stop frame = %+v, want empty text with flush", stop)
	}
}

func TestStreamTTS_StopDuringSynthesize(t *testing.T) {
	// Stop is called from another goroutine while Synthesize holds the
	// connection; both write to the same socket and must not collide
	provider := &fakeProvider{t: t}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	s := newStreamUnderTest(t, srv)
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			// A stop acknowledgement may end a synthesis early, so
			// only hard transport errors are interesting here
			s.Synthesize(context.Background(), "ein zwei drei", func([]byte) {})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.Stop()
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()
}

func TestStreamTTS_DialFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1/tts"
	cfg.Timeout = 500 * time.Millisecond
	s, err := NewStreamTTS(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Synthesize(context.Background(), "hi", func([]byte) {}); err == nil {
		t.Fatal("Synthesize() expected error for unreachable provider")
	}
}

func TestStreamTTS_ProviderErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var init initFrame
		conn.ReadJSON(&init)
		var frame synthFrame
		conn.ReadJSON(&frame)
		conn.WriteJSON(audioFrame{Error: "voice not found"})
	}))
	defer srv.Close()

	s := newStreamUnderTest(t, srv)
	defer s.Close()

	err := s.Synthesize(context.Background(), "hi", func([]byte) {})
	if err == nil || !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("Synthesize() error = %v, want provider error", err)
	}
}

func TestFailover_FallbackDeliversSingleChunk(t *testing.T) {
	// Primary points at a dead endpoint; fallback answers over HTTP
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1/tts"
	cfg.Timeout = 500 * time.Millisecond
	primary, err := NewStreamTTS(cfg)
	if err != nil {
		t.Fatal(err)
	}

	fallbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req speechRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte("AUDIO:" + req.Input))
	}))
	defer fallbackSrv.Close()

	fbCfg := DefaultConfig()
	fbCfg.URL = fallbackSrv.URL
	fallback, err := NewHTTPTTS(fbCfg)
	if err != nil {
		t.Fatal(err)
	}

	fo := NewFailover(primary, fallback)
	defer fo.Close()

	var chunks [][]byte
	err = fo.Synthesize(context.Background(), "full reply text", func(audio []byte) {
		chunks = append(chunks, audio)
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want exactly one fallback chunk", len(chunks))
	}
	if string(chunks[0]) != "AUDIO:full reply text" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

// halfwaySynth delivers one chunk, then fails
type halfwaySynth struct{}

func (h *halfwaySynth) Name() string { return "halfway" }

func (h *halfwaySynth) Synthesize(ctx context.Context, text string, onChunk func([]byte)) error {
	onChunk([]byte("partial"))
	return errors.New("stream torn down")
}

func (h *halfwaySynth) Stop()           {}
func (h *halfwaySynth) SampleRate() int { return 22050 }
func (h *halfwaySynth) Close() error    { return nil }

func TestFailover_NoFallbackAfterPartialDelivery(t *testing.T) {
	fallback := &countingSynth{}
	fo := NewFailover(&halfwaySynth{}, fallback)
	defer fo.Close()

	var chunks [][]byte
	err := fo.Synthesize(context.Background(), "full reply text", func(audio []byte) {
		chunks = append(chunks, audio)
	})

	if err == nil {
		t.Fatal("Synthesize() must surface the primary error after partial delivery")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0 (would duplicate audio)", fallback.calls)
	}
	if len(chunks) != 1 || string(chunks[0]) != "partial" {
		t.Errorf("chunks = %q, want only the partial primary chunk", chunks)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.yaml")
	content := `
voices:
  - name: anna
    provider_id: de-DE-anna-v2
    model: turbo
    language: de
    sample_rate: 22050
  - name: alloy
    provider_id: alloy
    language: en
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	v, ok := catalog.Lookup("anna")
	if !ok {
		t.Fatal("Lookup(anna) not found")
	}
	if v.ProviderID != "de-DE-anna-v2" || v.SampleRate != 22050 {
		t.Errorf("voice = %+v", v)
	}

	if _, ok := catalog.Lookup("missing"); ok {
		t.Error("Lookup(missing) = true, want false")
	}

	names := catalog.Names()
	if len(names) != 2 || names[0] != "anna" || names[1] != "alloy" {
		t.Errorf("Names() = %v", names)
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.yaml")
	if err := os.WriteFile(path, []byte("voices:\n  - name: anna\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCatalog(path); err == nil {
		t.Error("LoadCatalog() expected error for voice without provider_id")
	}
}
