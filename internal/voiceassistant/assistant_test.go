package voiceassistant

import (
	"context"
	"sync"
	"testing"

	"github.com/msto63/sprechwerk/internal/protocol"
	"github.com/msto63/sprechwerk/internal/voiceassistant/vad"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Message
}

func (f *fakeSender) Connect(ctx context.Context) error { return nil }
func (f *fakeSender) Disconnect()                       {}

func (f *fakeSender) Send(msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent...)
}

type fakePlayer struct {
	mu       sync.Mutex
	enqueued [][]byte
	stops    int
	onStart  func()
	onEnd    func()
}

func (f *fakePlayer) Enqueue(pcm []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, pcm)
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) OnPlaybackStart(fn func()) { f.onStart = fn }
func (f *fakePlayer) OnPlaybackEnd(fn func())   { f.onEnd = fn }
func (f *fakePlayer) Close() error              { return nil }

func (f *fakePlayer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// scriptedVAD returns a fixed speech decision per frame
type scriptedVAD struct {
	decisions []bool
	pos       int
}

func (s *scriptedVAD) Process(samples []float32) (bool, error) {
	if s.pos >= len(s.decisions) {
		return false, nil
	}
	d := s.decisions[s.pos]
	s.pos++
	return d, nil
}

func (s *scriptedVAD) Reset()       {}
func (s *scriptedVAD) Close() error { return nil }

func newTestAssistant(decisions []bool) (*Assistant, *fakeSender, *fakePlayer) {
	cfg := DefaultAssistantConfig()
	cfg.SampleRate = 16000
	cfg.ChunkMillis = 300

	conn := &fakeSender{}
	out := &fakePlayer{}
	a := newAssistant(cfg, &scriptedVAD{decisions: decisions}, conn, out)
	return a, conn, out
}

// frame is 160 samples, 10ms at 16kHz
func feedFrames(a *Assistant, n int) {
	frame := make([]float32, 160)
	for i := 0; i < n; i++ {
		a.handleFrame(frame)
	}
}

func TestAssistant_StreamsUtteranceInChunks(t *testing.T) {
	// 40 speech frames (400ms), then silence
	decisions := make([]bool, 41)
	for i := 0; i < 40; i++ {
		decisions[i] = true
	}

	a, conn, _ := newTestAssistant(decisions)
	feedFrames(a, 41)

	msgs := conn.messages()
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want audio chunks plus end_utterance", len(msgs))
	}

	// 400ms of audio at a 300ms chunk size: one full chunk mid-stream,
	// the remainder flushed on end of speech
	var audioChunks int
	for _, msg := range msgs[:len(msgs)-1] {
		if msg.Type != protocol.TypeAudioInput {
			t.Errorf("unexpected message type %q before end_utterance", msg.Type)
		}
		audioChunks++
	}
	if audioChunks != 2 {
		t.Errorf("audio chunks = %d, want 2", audioChunks)
	}
	if msgs[len(msgs)-1].Type != protocol.TypeEndUtterance {
		t.Errorf("last message = %q, want end_utterance", msgs[len(msgs)-1].Type)
	}

	if a.sm.Current() != StateProcessing {
		t.Errorf("state = %v, want processing", a.sm.Current())
	}
}

func TestAssistant_BargeInStopsPlaybackAndInterrupts(t *testing.T) {
	a, conn, out := newTestAssistant([]bool{true})

	// Simulate an answer being played back
	a.sm.Transition(StateListening)
	a.sm.Transition(StateProcessing)
	out.onStart() // playback begins
	if a.sm.Current() != StateSpeaking {
		t.Fatalf("state = %v, want speaking", a.sm.Current())
	}

	// The user starts talking over it
	feedFrames(a, 1)

	if out.stopCount() != 1 {
		t.Errorf("playback stops = %d, want 1", out.stopCount())
	}
	msgs := conn.messages()
	if len(msgs) == 0 || msgs[0].Type != protocol.TypeInterrupt {
		t.Fatalf("messages = %+v, want interrupt first", msgs)
	}
	if a.sm.Current() != StateListening {
		t.Errorf("state = %v, want listening", a.sm.Current())
	}
}

func TestAssistant_PlaysResponseAudio(t *testing.T) {
	a, _, out := newTestAssistant(nil)

	a.handleMessage(protocol.AudioChunk([]byte{0x01, 0x02}))
	a.handleMessage(protocol.AudioChunk([]byte{0x03, 0x04}))

	if len(out.enqueued) != 2 {
		t.Fatalf("enqueued chunks = %d, want 2", len(out.enqueued))
	}
	if out.enqueued[0][0] != 0x01 || out.enqueued[1][0] != 0x03 {
		t.Error("chunks decoded out of order")
	}
}

func TestAssistant_TurnCompletesAfterPlayback(t *testing.T) {
	a, _, out := newTestAssistant(nil)

	a.sm.Transition(StateListening)
	a.sm.Transition(StateProcessing)
	a.respDone.Store(false)

	out.onStart()
	a.handleMessage(protocol.ResponseComplete())
	out.onEnd()

	if a.sm.Current() != StateIdle {
		t.Errorf("state = %v, want idle", a.sm.Current())
	}
}

func TestAssistant_CompleteWithoutAudioReturnsToIdle(t *testing.T) {
	a, _, _ := newTestAssistant(nil)

	a.sm.Transition(StateListening)
	a.sm.Transition(StateProcessing)

	a.handleMessage(protocol.ResponseComplete())

	if a.sm.Current() != StateIdle {
		t.Errorf("state = %v, want idle", a.sm.Current())
	}
}

func TestAssistant_TranscriptAndTokenCallbacks(t *testing.T) {
	a, _, _ := newTestAssistant(nil)

	var transcript string
	var tokens []string
	a.OnTranscript(func(text string) { transcript = text })
	a.OnToken(func(token string) { tokens = append(tokens, token) })

	a.handleMessage(protocol.STTResult("turn on the lights"))
	a.handleMessage(protocol.LLMToken("Sure"))
	a.handleMessage(protocol.LLMToken("."))

	if transcript != "turn on the lights" {
		t.Errorf("transcript = %q", transcript)
	}
	if len(tokens) != 2 {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestAssistant_GatewayErrorCallback(t *testing.T) {
	a, _, _ := newTestAssistant(nil)

	var gotErr string
	a.OnError(func(e string) { gotErr = e })

	a.sm.Transition(StateListening)
	a.sm.Transition(StateProcessing)
	a.handleMessage(protocol.ErrorMessage("transcription failed"))

	if gotErr != "transcription failed" {
		t.Errorf("error callback got %q", gotErr)
	}
	if a.sm.Current() != StateIdle {
		t.Errorf("state = %v, want idle", a.sm.Current())
	}
}

func TestAssistant_ForwardsAudioBeforeSpeechDetected(t *testing.T) {
	// The detector confirms speech only at frame 3; the onset frames
	// must still reach the gateway in the first chunk
	decisions := make([]bool, 33)
	for i := 2; i < 32; i++ {
		decisions[i] = true
	}

	a, conn, _ := newTestAssistant(decisions)
	feedFrames(a, 33)

	msgs := conn.messages()
	if len(msgs) < 3 {
		t.Fatalf("got %d messages, want two chunks plus end_utterance", len(msgs))
	}

	first, err := msgs[0].AudioBytes()
	if err != nil {
		t.Fatalf("first message not decodable audio: %v", err)
	}
	// 30 frames of 160 samples fill the 300ms chunk, including the two
	// frames fed before the speech-start edge
	if len(first) != 30*160*2 {
		t.Errorf("first chunk = %d bytes, want %d", len(first), 30*160*2)
	}

	var total int
	for _, msg := range msgs {
		if msg.Type != protocol.TypeAudioInput {
			continue
		}
		pcm, err := msg.AudioBytes()
		if err != nil {
			t.Fatalf("undecodable audio chunk: %v", err)
		}
		total += len(pcm)
	}
	if total != 33*160*2 {
		t.Errorf("forwarded %d audio bytes, want all %d captured bytes", total, 33*160*2)
	}
	if msgs[len(msgs)-1].Type != protocol.TypeEndUtterance {
		t.Errorf("last message = %q, want end_utterance", msgs[len(msgs)-1].Type)
	}
}

func TestAssistant_SilenceBelowChunkStaysBuffered(t *testing.T) {
	// Short silence never fills a chunk, so nothing is flushed yet
	a, conn, _ := newTestAssistant(make([]bool, 10))
	feedFrames(a, 10)

	if msgs := conn.messages(); len(msgs) != 0 {
		t.Errorf("sent %d messages below one chunk, want 0", len(msgs))
	}
	if a.sm.Current() != StateIdle {
		t.Errorf("state = %v, want idle", a.sm.Current())
	}
}

func TestAssistant_TransportFailureEntersErrorState(t *testing.T) {
	a, _, _ := newTestAssistant(nil)

	var gotErr string
	a.OnError(func(e string) { gotErr = e })

	a.connStateChanged(ConnReconnecting)
	if a.sm.Current() != StateIdle {
		t.Fatalf("state after transient loss = %v, want idle", a.sm.Current())
	}

	a.connStateChanged(ConnFailed)
	if a.sm.Current() != StateError {
		t.Errorf("state = %v, want error", a.sm.Current())
	}
	if gotErr == "" {
		t.Error("error callback not invoked for terminal connection failure")
	}
}

var _ vad.Detector = (*scriptedVAD)(nil)
