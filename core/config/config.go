// Package config builds the immutable SessionConfig a voice session runs
// with. Values are layered as defaults, then an optional YAML file, then the
// process environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

const (
	DefaultProvider        = "mock"
	DefaultVoice           = "alloy"
	DefaultLanguage        = "zh"
	DefaultSampleRate      = audio.DefaultSampleRate
	DefaultChannels        = audio.DefaultChannels
	DefaultVADThreshold    = 0.5
	DefaultSilenceDuration = 500 * time.Millisecond
	DefaultSilenceWindow   = 10 * time.Second
	DefaultTurnTimeout     = 60 * time.Second
	DefaultCaptureWindow   = 10 * time.Second
	DefaultAudioBackend    = AudioBackendPortAudio
	DefaultInstructions    = "你是一位温暖的回忆录访谈助手，用亲切的语气与老人交谈。"
)

const (
	AudioBackendPortAudio = "portaudio"
	AudioBackendMiniaudio = "miniaudio"
	AudioBackendStub      = "stub"
)

// Environment variables read by Load.
const (
	EnvConfigPath    = "MEMOIR_VOICE_CONFIG"
	EnvProvider      = "VOICE_PROVIDER"
	EnvModel         = "VOICE_MODEL"
	EnvVoice         = "VOICE_NAME"
	EnvLanguage      = "VOICE_LANGUAGE"
	EnvSampleRate    = "VOICE_SAMPLE_RATE"
	EnvVADThreshold  = "VOICE_VAD_THRESHOLD"
	EnvSilenceMillis = "VOICE_SILENCE_MS"
	EnvAudioBackend  = "VOICE_AUDIO_BACKEND"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvDashScopeKey  = "DASHSCOPE_API_KEY"
	EnvDeepgramKey   = "DEEPGRAM_API_KEY"
)

var supportedSampleRates = []int{8000, 16000, 22050, 24000, 44100, 48000}

// SessionConfig is built once at process start and passed by value to every
// component that needs it.
type SessionConfig struct {
	Provider string `yaml:"provider" json:"provider,omitempty" jsonschema:"enum=openai,enum=gemini,enum=dashscope,enum=deepgram,enum=mock,default=mock"`
	APIKey   string `yaml:"api_key" json:"api_key,omitempty" jsonschema:"description=Credential for the selected provider"`
	// Endpoint overrides the provider's default realtime URL.
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty" jsonschema:"format=uri"`
	// Workspace is sent as the DashScope workspace header when set.
	Workspace string `yaml:"workspace" json:"workspace,omitempty"`

	Model        string `yaml:"model" json:"model,omitempty"`
	Voice        string `yaml:"voice" json:"voice,omitempty" jsonschema:"default=alloy"`
	Language     string `yaml:"language" json:"language,omitempty" jsonschema:"default=zh"`
	Instructions string `yaml:"instructions" json:"instructions,omitempty"`

	SampleRate   int    `yaml:"sample_rate" json:"sample_rate,omitempty" jsonschema:"enum=8000,enum=16000,enum=22050,enum=24000,enum=44100,enum=48000,default=24000"`
	Channels     int    `yaml:"channels" json:"channels,omitempty" jsonschema:"minimum=1,maximum=2,default=1"`
	AudioBackend string `yaml:"audio_backend" json:"audio_backend,omitempty" jsonschema:"enum=portaudio,enum=miniaudio,enum=stub,default=portaudio"`

	VADThreshold float64 `yaml:"vad_threshold" json:"vad_threshold,omitempty" jsonschema:"minimum=0,maximum=1,default=0.5"`
	// SilenceDuration is how long trailing silence must last before the
	// local detector ends a turn.
	SilenceDuration time.Duration `yaml:"silence_duration" json:"silence_duration,omitempty"`
	// RemoteTurnDetection lets the provider decide when the user finished
	// speaking instead of the local detector.
	RemoteTurnDetection bool `yaml:"remote_turn_detection" json:"remote_turn_detection,omitempty"`

	SilenceWindow time.Duration `yaml:"silence_window" json:"silence_window,omitempty"`
	TurnTimeout   time.Duration `yaml:"turn_timeout" json:"turn_timeout,omitempty"`
	// CaptureWindow is how long a spoken turn records for.
	CaptureWindow time.Duration `yaml:"capture_window" json:"capture_window,omitempty"`
}

func Default() SessionConfig {
	return SessionConfig{
		Provider:        DefaultProvider,
		Voice:           DefaultVoice,
		Language:        DefaultLanguage,
		Instructions:    DefaultInstructions,
		SampleRate:      DefaultSampleRate,
		Channels:        DefaultChannels,
		AudioBackend:    DefaultAudioBackend,
		VADThreshold:    DefaultVADThreshold,
		SilenceDuration: DefaultSilenceDuration,
		SilenceWindow:   DefaultSilenceWindow,
		TurnTimeout:     DefaultTurnTimeout,
		CaptureWindow:   DefaultCaptureWindow,
	}
}

// Load builds a validated SessionConfig. An empty path falls back to
// MEMOIR_VOICE_CONFIG; when neither is set no file is read. lookupEnv is
// usually os.LookupEnv.
func Load(path string, lookupEnv func(string) (string, bool)) (SessionConfig, error) {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}

	cfg := Default()
	if path == "" {
		path, _ = lookupEnv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return SessionConfig{}, err
		}
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return SessionConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return SessionConfig{}, err
	}
	return cfg, nil
}

func (c *SessionConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "config", Reason: fmt.Sprintf("failed to read %s", path), Err: err}
	}
	if err := yaml.UnmarshalWithOptions(data, c, yaml.DisallowUnknownField()); err != nil {
		return &ConfigError{Field: "config", Reason: fmt.Sprintf("failed to parse %s", path), Err: err}
	}
	return nil
}

func (c *SessionConfig) applyEnv(lookupEnv func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	setString(EnvProvider, &c.Provider)
	setString(EnvModel, &c.Model)
	setString(EnvVoice, &c.Voice)
	setString(EnvLanguage, &c.Language)
	setString(EnvAudioBackend, &c.AudioBackend)

	if v, ok := lookupEnv(EnvSampleRate); ok && v != "" {
		rate, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Field: "sample_rate", Reason: fmt.Sprintf("%s is not an integer", EnvSampleRate), Err: err}
		}
		c.SampleRate = rate
	}
	if v, ok := lookupEnv(EnvVADThreshold); ok && v != "" {
		threshold, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return &ConfigError{Field: "vad_threshold", Reason: fmt.Sprintf("%s is not a number", EnvVADThreshold), Err: err}
		}
		c.VADThreshold = threshold
	}
	if v, ok := lookupEnv(EnvSilenceMillis); ok && v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Field: "silence_duration", Reason: fmt.Sprintf("%s is not an integer", EnvSilenceMillis), Err: err}
		}
		c.SilenceDuration = time.Duration(ms) * time.Millisecond
	}

	if key := credentialEnv(c.Provider); key != "" {
		setString(key, &c.APIKey)
	}
	return nil
}

func credentialEnv(name string) string {
	provider, _ := realtime.ParseProvider(name)
	switch provider {
	case realtime.ProviderOpenAI:
		return EnvOpenAIKey
	case realtime.ProviderGemini:
		return EnvGeminiKey
	case realtime.ProviderDashScope:
		return EnvDashScopeKey
	case realtime.ProviderDeepgram:
		return EnvDeepgramKey
	}
	return ""
}

// Validate reports the first invalid field as a *ConfigError. An unknown
// provider is not an error, it resolves to the stub provider.
func (c SessionConfig) Validate() error {
	provider, _ := realtime.ParseProvider(c.Provider)
	if provider.RequiresCredential() && strings.TrimSpace(c.APIKey) == "" {
		return &ConfigError{Field: "api_key", Reason: fmt.Sprintf("missing credential for provider %s, set %s", provider, credentialEnv(c.Provider))}
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return &ConfigError{Field: "vad_threshold", Reason: fmt.Sprintf("must be between 0 and 1, got %g", c.VADThreshold)}
	}
	if c.SilenceDuration <= 0 {
		return &ConfigError{Field: "silence_duration", Reason: fmt.Sprintf("must be positive, got %s", c.SilenceDuration)}
	}
	if c.SilenceWindow <= 0 {
		return &ConfigError{Field: "silence_window", Reason: fmt.Sprintf("must be positive, got %s", c.SilenceWindow)}
	}
	if c.TurnTimeout <= 0 {
		return &ConfigError{Field: "turn_timeout", Reason: fmt.Sprintf("must be positive, got %s", c.TurnTimeout)}
	}
	if c.CaptureWindow <= 0 {
		return &ConfigError{Field: "capture_window", Reason: fmt.Sprintf("must be positive, got %s", c.CaptureWindow)}
	}
	if !isSupportedSampleRate(c.SampleRate) {
		return &ConfigError{Field: "sample_rate", Reason: fmt.Sprintf("unsupported sample rate %d", c.SampleRate)}
	}
	if c.Channels < 1 || c.Channels > 2 {
		return &ConfigError{Field: "channels", Reason: fmt.Sprintf("must be 1 or 2, got %d", c.Channels)}
	}
	switch c.AudioBackend {
	case AudioBackendPortAudio, AudioBackendMiniaudio, AudioBackendStub:
	default:
		return &ConfigError{Field: "audio_backend", Reason: fmt.Sprintf("unknown audio backend %q", c.AudioBackend)}
	}
	if provider == realtime.ProviderOpenAI && (c.SampleRate != 24000 || c.Channels != 1) {
		return &ConfigError{Field: "sample_rate", Reason: fmt.Sprintf("provider %s requires 24000 Hz mono audio", provider)}
	}
	return nil
}

func isSupportedSampleRate(rate int) bool {
	for _, supported := range supportedSampleRates {
		if rate == supported {
			return true
		}
	}
	return false
}

// Encoding is the linear16 format the session streams in.
func (c SessionConfig) Encoding() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Format:     audio.EncodingLinear16,
	}
}

// CheckAudio fails when an audio adapter runs at a different rate or channel
// count than the session.
func (c SessionConfig) CheckAudio(adapter audio.EncodingInfo) error {
	if adapter.IsZero() {
		return nil
	}
	if err := c.Encoding().Compatible(adapter); err != nil {
		return &ConfigError{Field: "sample_rate", Reason: "audio device does not match session audio", Err: err}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c SessionConfig) Redacted() SessionConfig {
	c.APIKey = redact(c.APIKey)
	return c
}

func (c SessionConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("api_key", redact(c.APIKey)),
		slog.String("model", c.Model),
		slog.String("voice", c.Voice),
		slog.String("language", c.Language),
		slog.Int("sample_rate", c.SampleRate),
		slog.Int("channels", c.Channels),
		slog.String("audio_backend", c.AudioBackend),
	)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:3] + "****" + secret[len(secret)-4:]
}
