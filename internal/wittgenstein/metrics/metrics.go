// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     metrics
// Description: Prometheus metrics for the voice gateway
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice gateway
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionsRejected *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Turn metrics
	TurnsTotal       prometheus.Counter
	TurnsInterrupted prometheus.Counter
	TurnsAbandoned   prometheus.Counter
	TurnDuration     prometheus.Histogram

	// Audio metrics
	AudioBytesIn    prometheus.Counter
	AudioChunksOut  prometheus.Counter
	UtteranceLength prometheus.Histogram

	// Provider metrics
	STTRequests prometheus.Counter
	STTFailures prometheus.Counter
	TTSRequests prometheus.Counter
	TTSFailures prometheus.Counter
	LLMTokens   prometheus.Counter
	LLMFailures prometheus.Counter
}

// New creates and registers all gateway metrics on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "swk_active_sessions",
			Help: "Current number of active voice sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_sessions_total",
			Help: "Total number of voice sessions accepted",
		}),
		SessionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swk_sessions_rejected_total",
			Help: "Total number of rejected connection attempts",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "swk_session_duration_seconds",
			Help:    "Duration of voice sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		TurnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_turns_total",
			Help: "Total number of conversation turns started",
		}),
		TurnsInterrupted: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_turns_interrupted_total",
			Help: "Total number of turns cancelled by barge-in",
		}),
		TurnsAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_turns_abandoned_total",
			Help: "Total number of turns abandoned with no recognized speech",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "swk_turn_duration_seconds",
			Help:    "End-to-end turn latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		AudioBytesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_audio_bytes_in_total",
			Help: "Total inbound audio bytes received",
		}),
		AudioChunksOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_audio_chunks_out_total",
			Help: "Total synthesized audio chunks sent",
		}),
		UtteranceLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "swk_utterance_bytes",
			Help:    "Size of committed utterances in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		}),

		STTRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_stt_requests_total",
			Help: "Total transcription requests",
		}),
		STTFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_stt_failures_total",
			Help: "Total transcription failures after failover",
		}),
		TTSRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_tts_requests_total",
			Help: "Total synthesis requests",
		}),
		TTSFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_tts_failures_total",
			Help: "Total synthesis failures after failover",
		}),
		LLMTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_llm_tokens_total",
			Help: "Total language model tokens streamed",
		}),
		LLMFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "swk_llm_failures_total",
			Help: "Total language model failures",
		}),
	}
}
