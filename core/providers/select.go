// Package providers turns a SessionConfig into the transport and audio
// device a session runs on. Selection never fails: anything that cannot be
// honored degrades to the stub variants.
package providers

import (
	"fmt"
	"io"
	"os"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/audio/miniaudio"
	"github.com/koscakluka/memoir-voice/core/audio/portaudio"
	audiostub "github.com/koscakluka/memoir-voice/core/audio/stub"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"github.com/koscakluka/memoir-voice/core/realtime/dashscope"
	"github.com/koscakluka/memoir-voice/core/realtime/deepgram"
	"github.com/koscakluka/memoir-voice/core/realtime/gemini"
	"github.com/koscakluka/memoir-voice/core/realtime/openai"
	"github.com/koscakluka/memoir-voice/core/realtime/stub"
)

// DeviceOpener opens a local audio device running at encoding.
type DeviceOpener func(encoding audio.EncodingInfo) (audio.Device, error)

type options struct {
	out     io.Writer
	openers map[string]DeviceOpener
}

type Option func(*options)

// WithOutput sets where the stub transport and stub device print, os.Stdout
// by default.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithDeviceOpener replaces how backend is opened.
func WithDeviceOpener(backend string, open DeviceOpener) Option {
	return func(o *options) {
		o.openers[backend] = open
	}
}

func newOptions(opts []Option) options {
	o := options{
		out: os.Stdout,
		openers: map[string]DeviceOpener{
			config.AudioBackendPortAudio: openPortAudio,
			config.AudioBackendMiniaudio: openMiniaudio,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Select returns the transport for cfg.Provider without performing any I/O.
// Unknown providers resolve to the stub transport.
func Select(cfg config.SessionConfig, opts ...Option) realtime.Transport {
	o := newOptions(opts)

	provider, known := realtime.ParseProvider(cfg.Provider)
	if !known {
		logger.Warn("unknown provider, falling back to stub", "provider", cfg.Provider)
	}

	switch provider {
	case realtime.ProviderOpenAI:
		var transportOpts []openai.TransportOption
		if cfg.Endpoint != "" {
			transportOpts = append(transportOpts, openai.WithURL(cfg.Endpoint))
		}
		if cfg.Model != "" {
			transportOpts = append(transportOpts, openai.WithModel(cfg.Model))
		}
		return openai.NewTransport(cfg.APIKey, transportOpts...)

	case realtime.ProviderDashScope:
		var transportOpts []dashscope.Option
		if cfg.Endpoint != "" {
			transportOpts = append(transportOpts, dashscope.WithURL(cfg.Endpoint))
		}
		if cfg.Model != "" {
			transportOpts = append(transportOpts, dashscope.WithModel(cfg.Model))
		}
		if cfg.Workspace != "" {
			transportOpts = append(transportOpts, dashscope.WithWorkspace(cfg.Workspace))
		}
		return dashscope.NewTransport(cfg.APIKey, transportOpts...)

	case realtime.ProviderGemini:
		var transportOpts []gemini.TransportOption
		if cfg.Endpoint != "" {
			transportOpts = append(transportOpts, gemini.WithBaseURL(cfg.Endpoint))
		}
		if cfg.Model != "" {
			transportOpts = append(transportOpts, gemini.WithModel(cfg.Model))
		}
		return gemini.NewTransport(cfg.APIKey, transportOpts...)

	case realtime.ProviderDeepgram:
		var transportOpts []deepgram.TransportOption
		if cfg.Endpoint != "" {
			transportOpts = append(transportOpts, deepgram.WithURL(cfg.Endpoint))
		}
		if cfg.Model != "" {
			transportOpts = append(transportOpts, deepgram.WithModel(cfg.Model))
		}
		return deepgram.NewTransport(cfg.APIKey, transportOpts...)
	}

	return stub.NewTransport(stub.WithOutput(o.out))
}

// Resolve fills in provider specific defaults that a generic config cannot
// know, such as a voice name the provider actually offers.
func Resolve(cfg config.SessionConfig) config.SessionConfig {
	provider, _ := realtime.ParseProvider(cfg.Provider)

	voice := ""
	switch provider {
	case realtime.ProviderGemini:
		voice = gemini.DefaultVoice
	case realtime.ProviderDashScope:
		voice = dashscope.DefaultVoice
	}
	if voice != "" && (cfg.Voice == "" || cfg.Voice == config.DefaultVoice) {
		cfg.Voice = voice
	}
	return cfg
}

// OpenAudio opens the configured audio backend. The stub device is returned
// instead when the backend is stub, when the provider is the text only stub,
// or when the device cannot be opened, so the session never has to handle
// missing audio. The returned error is only informational: the device is
// always usable.
func OpenAudio(cfg config.SessionConfig, opts ...Option) (audio.Device, error) {
	o := newOptions(opts)
	fallback := audiostub.New(audiostub.WithOutput(o.out), audiostub.WithEncodingInfo(cfg.Encoding()))

	if provider, _ := realtime.ParseProvider(cfg.Provider); provider == realtime.ProviderStub {
		logger.Info("text only provider, using stub device", "provider", cfg.Provider)
		return fallback, nil
	}

	open, ok := o.openers[cfg.AudioBackend]
	if !ok {
		if cfg.AudioBackend != config.AudioBackendStub {
			logger.Warn("unknown audio backend, using stub device", "backend", cfg.AudioBackend)
		}
		return fallback, nil
	}

	device, err := open(cfg.Encoding())
	if err != nil {
		logger.Warn("failed to open audio device, using stub device", "backend", cfg.AudioBackend, "error", err)
		return fallback, fmt.Errorf("failed to open %s audio device: %w", cfg.AudioBackend, err)
	}
	return device, nil
}

func openPortAudio(encoding audio.EncodingInfo) (audio.Device, error) {
	client, err := portaudio.NewClient(encoding, portaudio.DefaultFramesPerBuffer)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openMiniaudio(encoding audio.EncodingInfo) (audio.Device, error) {
	client, err := miniaudio.NewClient(encoding)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Describe summarizes where a session built from cfg will talk to.
func Describe(cfg config.SessionConfig) string {
	provider, known := realtime.ParseProvider(cfg.Provider)
	if provider == realtime.ProviderStub {
		if !known {
			return fmt.Sprintf("stub (unknown provider %q), text only, audio %s", cfg.Provider, cfg.AudioBackend)
		}
		return fmt.Sprintf("stub, text only, audio %s", cfg.AudioBackend)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel(provider)
	}
	return fmt.Sprintf("%s %s, voice %s, language %s, %d Hz, audio %s",
		provider, model, Resolve(cfg).Voice, cfg.Language, cfg.SampleRate, cfg.AudioBackend)
}

func defaultModel(provider realtime.Provider) string {
	switch provider {
	case realtime.ProviderOpenAI:
		return openai.DefaultModel
	case realtime.ProviderDashScope:
		return dashscope.DefaultModel
	case realtime.ProviderGemini:
		return gemini.DefaultModel
	case realtime.ProviderDeepgram:
		return deepgram.DefaultModel
	}
	return ""
}
