package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete application configuration
type Config struct {
	General      GeneralConfig      `toml:"general"`
	Wittgenstein WittgensteinConfig `toml:"wittgenstein"`
	STT          STTConfig          `toml:"stt"`
	TTS          TTSConfig          `toml:"tts"`
	LLM          LLMConfig          `toml:"llm"`
	History      HistoryConfig      `toml:"history"`
	Assistant    AssistantConfig    `toml:"assistant"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	DataDir     string `toml:"data_dir"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
}

// WittgensteinConfig holds voice gateway configuration
type WittgensteinConfig struct {
	Port            int      `toml:"port"`
	Host            string   `toml:"host"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	AuthToken       string   `toml:"auth_token"`
	MaxConnsPerUser int      `toml:"max_conns_per_user"`
	SilenceTimeout  Duration `toml:"silence_timeout"`
	HistoryTurns    int      `toml:"history_turns"`
}

// STTConfig holds speech-to-text provider configuration
type STTConfig struct {
	PrimaryURL   string   `toml:"primary_url"`
	PrimaryKey   string   `toml:"primary_key"`
	FallbackURL  string   `toml:"fallback_url"`
	FallbackKey  string   `toml:"fallback_key"`
	Model        string   `toml:"model"`
	Language     string   `toml:"language"`
	Timeout      Duration `toml:"timeout"`
}

// TTSConfig holds text-to-speech provider configuration
type TTSConfig struct {
	StreamURL    string   `toml:"stream_url"`
	StreamKey    string   `toml:"stream_key"`
	FallbackURL  string   `toml:"fallback_url"`
	FallbackKey  string   `toml:"fallback_key"`
	Voice        string   `toml:"voice"`
	Model        string   `toml:"model"`
	SampleRate   int      `toml:"sample_rate"`
	Timeout      Duration `toml:"timeout"`
	VoiceCatalog string   `toml:"voice_catalog"`
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	Temperature float32  `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
	Timeout     Duration `toml:"timeout"`
}

// HistoryConfig holds conversation history settings
type HistoryConfig struct {
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// AssistantConfig holds voice assistant client settings
type AssistantConfig struct {
	ServerURL    string  `toml:"server_url"`
	Token        string  `toml:"token"`
	SampleRate   int     `toml:"sample_rate"`
	VADEngine    string  `toml:"vad_engine"`
	VADThreshold float64 `toml:"vad_threshold"`
	ChunkMillis  int     `toml:"chunk_millis"`
	InputDevice  string  `toml:"input_device"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load loads configuration from a TOML file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	// Expand environment variables in sensitive fields
	cfg.expandEnvVars()

	return &cfg, nil
}

// LoadFromEnv loads configuration from the SWK_CONFIG environment variable
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("SWK_CONFIG")
	if path == "" {
		// Try default locations
		defaultPaths := []string{
			"./configs/config.toml",
			"./config.toml",
			filepath.Join(os.Getenv("HOME"), ".config/sprechwerk/config.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return nil, fmt.Errorf("no config file found, set SWK_CONFIG or create configs/config.toml")
	}

	return Load(path)
}

// Default returns a configuration with all defaults applied and no file read
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "sprechWERK"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Wittgenstein
	if c.Wittgenstein.Port == 0 {
		c.Wittgenstein.Port = 8090
	}
	if c.Wittgenstein.Host == "" {
		c.Wittgenstein.Host = "0.0.0.0"
	}
	if c.Wittgenstein.ReadTimeout.Duration == 0 {
		c.Wittgenstein.ReadTimeout.Duration = 30 * time.Second
	}
	if c.Wittgenstein.WriteTimeout.Duration == 0 {
		c.Wittgenstein.WriteTimeout.Duration = 120 * time.Second
	}
	if c.Wittgenstein.MaxConnsPerUser == 0 {
		c.Wittgenstein.MaxConnsPerUser = 5
	}
	if c.Wittgenstein.SilenceTimeout.Duration == 0 {
		c.Wittgenstein.SilenceTimeout.Duration = 500 * time.Millisecond
	}
	if c.Wittgenstein.HistoryTurns == 0 {
		c.Wittgenstein.HistoryTurns = 20
	}

	// STT
	if c.STT.PrimaryURL == "" {
		c.STT.PrimaryURL = "http://localhost:8000"
	}
	if c.STT.Model == "" {
		c.STT.Model = "whisper-1"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.Timeout.Duration == 0 {
		c.STT.Timeout.Duration = 30 * time.Second
	}

	// TTS
	if c.TTS.Voice == "" {
		c.TTS.Voice = "alloy"
	}
	if c.TTS.SampleRate == 0 {
		c.TTS.SampleRate = 22050
	}
	if c.TTS.Timeout.Duration == 0 {
		c.TTS.Timeout.Duration = 10 * time.Second
	}

	// LLM
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "mistral:7b"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.Timeout.Duration == 0 {
		c.LLM.Timeout.Duration = 120 * time.Second
	}

	// History
	if c.History.Path == "" {
		c.History.Path = "./data/history.db"
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = 30
	}

	// Assistant
	if c.Assistant.ServerURL == "" {
		c.Assistant.ServerURL = "ws://localhost:8090/voice/stream"
	}
	if c.Assistant.SampleRate == 0 {
		c.Assistant.SampleRate = 16000
	}
	if c.Assistant.VADEngine == "" {
		c.Assistant.VADEngine = "rms"
	}
	if c.Assistant.VADThreshold == 0 {
		c.Assistant.VADThreshold = 0.01
	}
	if c.Assistant.ChunkMillis == 0 {
		c.Assistant.ChunkMillis = 300
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.Wittgenstein.AuthToken = os.ExpandEnv(c.Wittgenstein.AuthToken)
	c.STT.PrimaryKey = os.ExpandEnv(c.STT.PrimaryKey)
	c.STT.FallbackKey = os.ExpandEnv(c.STT.FallbackKey)
	c.TTS.StreamKey = os.ExpandEnv(c.TTS.StreamKey)
	c.TTS.FallbackKey = os.ExpandEnv(c.TTS.FallbackKey)
	c.Assistant.Token = os.ExpandEnv(c.Assistant.Token)
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.History.Path = os.ExpandEnv(c.History.Path)
}

// GatewayAddress returns the listen address for the voice gateway
func (c *Config) GatewayAddress() string {
	return fmt.Sprintf("%s:%d", c.Wittgenstein.Host, c.Wittgenstein.Port)
}
