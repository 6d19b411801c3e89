// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     main
// Description: Wittgenstein voice gateway entry point
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

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

func main() {
	godotenv.Load()

	logger := logging.New("wittgenstein")
	logger.Info("Starting Wittgenstein Voice Gateway")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Warn("No config file found, using defaults", "error", err)
		cfg = config.Default()
	}

	deps, store, err := buildDeps(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize providers", "error", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	srv, err := server.New(serverConfig(cfg), deps)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.StartAsync(); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	logger.Info("Wittgenstein Voice Gateway started", "address", srv.Address())

	// Prune old conversation turns periodically
	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	defer pruneCancel()
	if store != nil && cfg.History.RetentionDays > 0 {
		go pruneLoop(pruneCtx, store, cfg.History.RetentionDays, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Wittgenstein Voice Gateway stopped")
}

// buildDeps wires the provider chain from configuration
func buildDeps(cfg *config.Config, logger *logging.Logger) (handler.Deps, *history.Store, error) {
	sttProviders := []stt.Transcriber{
		stt.NewWhisperHTTP("whisper-primary", stt.Config{
			BaseURL:    cfg.STT.PrimaryURL,
			APIKey:     cfg.STT.PrimaryKey,
			Model:      cfg.STT.Model,
			Language:   cfg.STT.Language,
			SampleRate: cfg.Assistant.SampleRate,
			Timeout:    cfg.STT.Timeout.Duration,
		}),
	}
	if cfg.STT.FallbackURL != "" {
		sttProviders = append(sttProviders, stt.NewWhisperHTTP("whisper-fallback", stt.Config{
			BaseURL:    cfg.STT.FallbackURL,
			APIKey:     cfg.STT.FallbackKey,
			Model:      cfg.STT.Model,
			Language:   cfg.STT.Language,
			SampleRate: cfg.Assistant.SampleRate,
			Timeout:    cfg.STT.Timeout.Duration,
		}))
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

	ttsCfg := ttsConfig(cfg, logger)
	fallbackCfg := ttsCfg
	fallbackCfg.URL = cfg.TTS.FallbackURL
	fallbackCfg.APIKey = cfg.TTS.FallbackKey
	if ttsCfg.URL == "" && fallbackCfg.URL == "" {
		return handler.Deps{}, nil, fmt.Errorf("no TTS provider configured")
	}

	// One synthesis cache shared by all sessions
	audioCache := cache.New(cache.DefaultConfig())

	deps := handler.Deps{
		STT:     stt.NewChain(sttProviders...),
		LLM:     llmClient,
		History: store,
		NewSynthesizer: func() tts.Synthesizer {
			return newSynthesizer(ttsCfg, fallbackCfg, audioCache, logger)
		},
	}
	return deps, store, nil
}

// newSynthesizer builds the streaming synthesizer with its HTTP
// fallback for one session. At least one of the two URLs is validated
// to be set before this is called.
func newSynthesizer(streamCfg, fallbackCfg tts.Config, audioCache *cache.Cache, logger *logging.Logger) tts.Synthesizer {
	var fallback tts.Synthesizer
	if httpTTS, err := tts.NewHTTPTTS(fallbackCfg); err == nil {
		fallback = httpTTS
	}

	var synth tts.Synthesizer
	stream, err := tts.NewStreamTTS(streamCfg)
	if err != nil {
		logger.Warn("Streaming TTS unavailable", "error", err)
		if fallback == nil {
			return nil
		}
		synth = fallback
	} else if fallback == nil {
		synth = stream
	} else {
		synth = tts.NewFailover(stream, fallback)
	}

	return tts.NewCached(synth, audioCache, streamCfg.Voice, streamCfg.Model)
}

// ttsConfig resolves the configured voice, consulting the voice catalog
// when one is present
func ttsConfig(cfg *config.Config, logger *logging.Logger) tts.Config {
	out := tts.Config{
		URL:        cfg.TTS.StreamURL,
		APIKey:     cfg.TTS.StreamKey,
		Voice:      cfg.TTS.Voice,
		Model:      cfg.TTS.Model,
		SampleRate: cfg.TTS.SampleRate,
		Timeout:    cfg.TTS.Timeout.Duration,
	}

	if cfg.TTS.VoiceCatalog == "" {
		return out
	}

	catalog, err := tts.LoadCatalog(cfg.TTS.VoiceCatalog)
	if err != nil {
		logger.Warn("Failed to load voice catalog", "path", cfg.TTS.VoiceCatalog, "error", err)
		return out
	}

	voice, ok := catalog.Lookup(cfg.TTS.Voice)
	if !ok {
		logger.Warn("Voice not in catalog, using raw name", "voice", cfg.TTS.Voice)
		return out
	}

	out.Voice = voice.ProviderID
	if voice.Model != "" {
		out.Model = voice.Model
	}
	if voice.SampleRate > 0 {
		out.SampleRate = voice.SampleRate
	}
	return out
}

func serverConfig(cfg *config.Config) server.Config {
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

// pruneLoop deletes turns past the retention window once a day
func pruneLoop(ctx context.Context, store *history.Store, retentionDays int, logger *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(retention)
			if err != nil {
				logger.Warn("History prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Pruned conversation history", "deleted", n)
			}
		}
	}
}
