// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     handler
// Description: WebSocket accept handler for /voice/stream
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/sprechwerk/internal/llm"
	"github.com/msto63/sprechwerk/internal/stt"
	"github.com/msto63/sprechwerk/internal/tts"
	"github.com/msto63/sprechwerk/internal/wittgenstein/history"
	"github.com/msto63/sprechwerk/internal/wittgenstein/metrics"
	"github.com/msto63/sprechwerk/internal/wittgenstein/session"
	"github.com/msto63/sprechwerk/pkg/core/logging"
)

// WebSocket upgrader with permissive settings for local development
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Deps bundles the provider dependencies shared across sessions. The
// synthesizer is created per session because the streaming TTS client
// holds a persistent connection with per-session stop semantics.
type Deps struct {
	STT            stt.Transcriber
	LLM            llm.Client
	History        *history.Store
	NewSynthesizer func() tts.Synthesizer
}

// VoiceHandler upgrades /voice/stream requests and runs a voice session
// per connection
type VoiceHandler struct {
	authToken  string
	quota      *ConnQuota
	registry   *session.Registry
	sessionCfg session.Config
	deps       Deps
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewVoiceHandler creates the voice stream handler. An empty authToken
// disables authentication (local development only).
func NewVoiceHandler(authToken string, maxConnsPerUser int, sessionCfg session.Config, deps Deps, m *metrics.Metrics) *VoiceHandler {
	return &VoiceHandler{
		authToken:  authToken,
		quota:      NewConnQuota(maxConnsPerUser),
		registry:   session.NewRegistry(),
		sessionCfg: sessionCfg,
		deps:       deps,
		metrics:    m,
		logger:     logging.New("voice-handler"),
	}
}

// Registry returns the active session registry
func (h *VoiceHandler) Registry() *session.Registry {
	return h.registry
}

// ServeHTTP authenticates, enforces the per-user quota and hands the
// connection to a session
func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		// Reject before the upgrade so clients see a plain 401
		if h.metrics != nil {
			h.metrics.SessionsRejected.WithLabelValues("auth").Inc()
		}
		h.logger.Warn("unauthorized connection attempt", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !h.quota.Acquire(userID) {
		if h.metrics != nil {
			h.metrics.SessionsRejected.WithLabelValues("quota").Inc()
		}
		h.logger.Warn("connection quota exceeded", "user_id", userID)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection limit reached"),
			time.Now().Add(time.Second),
		)
		return
	}
	defer h.quota.Release(userID)

	synth := h.deps.NewSynthesizer()
	if synth == nil {
		h.logger.Error("no synthesizer available", "user_id", userID)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "synthesis unavailable"),
			time.Now().Add(time.Second),
		)
		return
	}
	defer synth.Close()

	sess := session.New(conn, userID, h.sessionCfg, session.Providers{
		STT:     h.deps.STT,
		TTS:     synth,
		LLM:     h.deps.LLM,
		History: h.deps.History,
	}, h.metrics)

	h.registry.Add(sess)
	defer h.registry.Remove(sess.ID)

	if h.metrics != nil {
		h.metrics.SessionsTotal.Inc()
		h.metrics.ActiveSessions.Inc()
		defer h.metrics.ActiveSessions.Dec()
	}

	start := time.Now()
	sess.Run(r.Context())
	if h.metrics != nil {
		h.metrics.SessionDuration.Observe(time.Since(start).Seconds())
	}
}

// authenticate validates the bearer token from the Authorization header
// or the token query parameter and derives the user identity
func (h *VoiceHandler) authenticate(r *http.Request) (string, bool) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else if qt := r.URL.Query().Get("token"); qt != "" {
		// Browser WebSocket clients cannot set headers
		token = qt
	}

	if h.authToken != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.authToken)) != 1 {
			return "", false
		}
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = "default"
	}
	return userID, true
}
