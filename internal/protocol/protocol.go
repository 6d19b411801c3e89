// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     protocol
// Description: JSON wire protocol for the /voice/stream WebSocket
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Client → server message types
const (
	TypeAudioInput   = "audio_input"
	TypeEndUtterance = "end_utterance"
	TypeInterrupt    = "interrupt"
)

// Server → client message types
const (
	TypeSTTResult        = "stt_result"
	TypeLLMToken         = "llm_token"
	TypeAudioChunk       = "audio_chunk"
	TypeResponseComplete = "response_complete"
	TypeError            = "error"
)

// Message is the flat JSON envelope exchanged on /voice/stream.
// Only the fields relevant to the given Type are populated.
type Message struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`  // base64 audio (audio_input, audio_chunk)
	Text  string `json:"text,omitempty"`  // transcript (stt_result)
	Token string `json:"token,omitempty"` // response delta (llm_token)
	Error string `json:"error,omitempty"` // error description (error)
}

// AudioInput builds an audio_input message from raw PCM bytes
func AudioInput(pcm []byte) Message {
	return Message{Type: TypeAudioInput, Data: base64.StdEncoding.EncodeToString(pcm)}
}

// EndUtterance builds an end_utterance message
func EndUtterance() Message {
	return Message{Type: TypeEndUtterance}
}

// Interrupt builds an interrupt message
func Interrupt() Message {
	return Message{Type: TypeInterrupt}
}

// STTResult builds an stt_result message
func STTResult(text string) Message {
	return Message{Type: TypeSTTResult, Text: text}
}

// LLMToken builds an llm_token message
func LLMToken(token string) Message {
	return Message{Type: TypeLLMToken, Token: token}
}

// AudioChunk builds an audio_chunk message from raw audio bytes
func AudioChunk(audio []byte) Message {
	return Message{Type: TypeAudioChunk, Data: base64.StdEncoding.EncodeToString(audio)}
}

// ResponseComplete builds a response_complete message
func ResponseComplete() Message {
	return Message{Type: TypeResponseComplete}
}

// ErrorMessage builds an error message
func ErrorMessage(msg string) Message {
	return Message{Type: TypeError, Error: msg}
}

// AudioBytes decodes the base64 audio payload of an audio message
func (m Message) AudioBytes() ([]byte, error) {
	if m.Data == "" {
		return nil, fmt.Errorf("message %q carries no audio data", m.Type)
	}
	audio, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	return audio, nil
}

// Encode marshals a message to its JSON wire form
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses and validates an inbound client message.
// Unknown or missing types are a validation error, reported back to the
// client without tearing down the connection.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}

	switch m.Type {
	case TypeAudioInput:
		if m.Data == "" {
			return Message{}, fmt.Errorf("audio_input requires a data field")
		}
	case TypeEndUtterance, TypeInterrupt:
		// no payload
	case "":
		return Message{}, fmt.Errorf("message has no type")
	default:
		return Message{}, fmt.Errorf("unknown message type %q", m.Type)
	}

	return m, nil
}
