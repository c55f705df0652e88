// Package dashscope connects to Qwen-Omni realtime models on DashScope. The
// endpoint speaks the OpenAI Realtime protocol, so the transport is the
// OpenAI one with DashScope's endpoint, credentials and defaults.
package dashscope

import (
	"github.com/koscakluka/memoir-voice/core/realtime"
	"github.com/koscakluka/memoir-voice/core/realtime/openai"
)

const (
	DefaultURL                = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	DefaultModel              = "qwen-omni-turbo-realtime"
	DefaultVoice              = "Chelsie"
	DefaultTranscriptionModel = "gummy-realtime-v1"
)

type config struct {
	url         string
	model       string
	workspaceID string
}

type Option func(*config)

func WithURL(url string) Option {
	return func(c *config) {
		c.url = url
	}
}

func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

func WithWorkspace(id string) Option {
	return func(c *config) {
		c.workspaceID = id
	}
}

// NewTransport returns a transport bound to DashScope. Synthesis outside of
// turns is not offered by the realtime endpoint.
func NewTransport(apiKey string, opts ...Option) *openai.Transport {
	cfg := config{url: DefaultURL, model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	transportOpts := []openai.TransportOption{
		openai.WithProvider(realtime.ProviderDashScope),
		openai.WithURL(cfg.url),
		openai.WithModel(cfg.model),
		openai.WithTranscriptionModel(DefaultTranscriptionModel),
		openai.WithoutSpeech(),
	}
	if cfg.workspaceID != "" {
		transportOpts = append(transportOpts, openai.WithHeader("X-DashScope-WorkSpace", cfg.workspaceID))
	}
	return openai.NewTransport(apiKey, transportOpts...)
}
