package cmd

import (
	"fmt"

	"github.com/msto63/sprechwerk/internal/llm"
	"github.com/msto63/sprechwerk/internal/stt"
	"github.com/msto63/sprechwerk/internal/tts"
	"github.com/msto63/sprechwerk/internal/wittgenstein/handler"
	"github.com/msto63/sprechwerk/internal/wittgenstein/history"
	"github.com/msto63/sprechwerk/internal/wittgenstein/server"
	"github.com/msto63/sprechwerk/internal/wittgenstein/session"
	"github.com/msto63/sprechwerk/pkg/core/cache"
	"github.com/msto63/sprechwerk/pkg/core/config"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// buildGatewayDeps wires the gateway provider chain from configuration
func buildGatewayDeps(cfg *config.Config) (handler.Deps, *history.Store, error) {
	logger := logging.New("swk-serve")

	sttProviders := []stt.Transcriber{
		stt.NewWhisperHTTP("whisper-primary", sttProviderConfig(cfg, cfg.STT.PrimaryURL, cfg.STT.PrimaryKey)),
	}
	if cfg.STT.FallbackURL != "" {
		sttProviders = append(sttProviders,
			stt.NewWhisperHTTP("whisper-fallback", sttProviderConfig(cfg, cfg.STT.FallbackURL, cfg.STT.FallbackKey)))
	}

	llmClient := llm.NewOllamaClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration,
	})

	var store *history.Store
	if cfg.History.Path != "" {
		var err error
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return handler.Deps{}, nil, err
		}
	}

	streamCfg := tts.Config{
		URL:        cfg.TTS.StreamURL,
		APIKey:     cfg.TTS.StreamKey,
		Voice:      cfg.TTS.Voice,
		Model:      cfg.TTS.Model,
		SampleRate: cfg.TTS.SampleRate,
		Timeout:    cfg.TTS.Timeout.Duration,
	}
	fallbackCfg := streamCfg
	fallbackCfg.URL = cfg.TTS.FallbackURL
	fallbackCfg.APIKey = cfg.TTS.FallbackKey
	if streamCfg.URL == "" && fallbackCfg.URL == "" {
		return handler.Deps{}, nil, fmt.Errorf("no TTS provider configured")
	}

	// One synthesis cache shared by all sessions
	audioCache := cache.New(cache.DefaultConfig())

	deps := handler.Deps{
		STT:     stt.NewChain(sttProviders...),
		LLM:     llmClient,
		History: store,
		NewSynthesizer: func() tts.Synthesizer {
			var fallback tts.Synthesizer
			if httpTTS, err := tts.NewHTTPTTS(fallbackCfg); err == nil {
				fallback = httpTTS
			}
			stream, err := tts.NewStreamTTS(streamCfg)
			if err != nil {
				logger.Warn("Streaming TTS unavailable", "error", err)
				if fallback == nil {
					return nil
				}
				return tts.NewCached(fallback, audioCache, streamCfg.Voice, streamCfg.Model)
			}
			var synth tts.Synthesizer = stream
			if fallback != nil {
				synth = tts.NewFailover(stream, fallback)
			}
			return tts.NewCached(synth, audioCache, streamCfg.Voice, streamCfg.Model)
		},
	}
	return deps, store, nil
}

func sttProviderConfig(cfg *config.Config, url, key string) stt.Config {
	return stt.Config{
		BaseURL:    url,
		APIKey:     key,
		Model:      cfg.STT.Model,
		Language:   cfg.STT.Language,
		SampleRate: cfg.Assistant.SampleRate,
		Timeout:    cfg.STT.Timeout.Duration,
	}
}

// gatewayServerConfig maps the file configuration onto the server
func gatewayServerConfig(cfg *config.Config) server.Config {
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Wittgenstein.Host
	srvCfg.Port = cfg.Wittgenstein.Port
	srvCfg.AuthToken = cfg.Wittgenstein.AuthToken
	srvCfg.MaxConnsPerUser = cfg.Wittgenstein.MaxConnsPerUser
	if cfg.Wittgenstein.ReadTimeout.Duration > 0 {
		srvCfg.ReadTimeout = cfg.Wittgenstein.ReadTimeout.Duration
	}
	if cfg.Wittgenstein.WriteTimeout.Duration > 0 {
		srvCfg.WriteTimeout = cfg.Wittgenstein.WriteTimeout.Duration
	}

	sessCfg := session.DefaultConfig()
	if cfg.Wittgenstein.SilenceTimeout.Duration > 0 {
		sessCfg.SilenceTimeout = cfg.Wittgenstein.SilenceTimeout.Duration
	}
	if cfg.Wittgenstein.HistoryTurns > 0 {
		sessCfg.HistoryTurns = cfg.Wittgenstein.HistoryTurns
	}
	srvCfg.Session = sessCfg

	return srvCfg
}
