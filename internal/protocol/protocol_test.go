package protocol

import (
	"bytes"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantErr  bool
	}{
		{"audio input", `{"type":"audio_input","data":"aGVsbG8="}`, TypeAudioInput, false},
		{"end utterance", `{"type":"end_utterance"}`, TypeEndUtterance, false},
		{"interrupt", `{"type":"interrupt"}`, TypeInterrupt, false},
		{"audio input without data", `{"type":"audio_input"}`, "", true},
		{"unknown type", `{"type":"wake_word"}`, "", true},
		{"missing type", `{"data":"aGVsbG8="}`, "", true},
		{"malformed json", `{"type":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && m.Type != tt.wantType {
				t.Errorf("Decode() type = %v, want %v", m.Type, tt.wantType)
			}
		})
	}
}

func TestAudioInput_RoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0xFF}

	data, err := Encode(AudioInput(pcm))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	got, err := m.AudioBytes()
	if err != nil {
		t.Fatalf("AudioBytes() error = %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("AudioBytes() = %v, want %v", got, pcm)
	}
}

func TestAudioBytes_Invalid(t *testing.T) {
	m := Message{Type: TypeAudioInput, Data: "not base64!!"}
	if _, err := m.AudioBytes(); err == nil {
		t.Error("AudioBytes() expected error for invalid base64")
	}

	m = Message{Type: TypeAudioChunk}
	if _, err := m.AudioBytes(); err == nil {
		t.Error("AudioBytes() expected error for empty data")
	}
}
