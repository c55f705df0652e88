// Package openai implements realtime transports speaking the OpenAI Realtime
// wire protocol. Providers exposing a compatible endpoint reuse it through
// options.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL                = "wss://api.openai.com/v1/realtime"
	DefaultModel              = "gpt-4o-realtime-preview"
	DefaultVoice              = "alloy"
	DefaultTranscriptionModel = "whisper-1"
	SampleRate                = 24000
)

type Transport struct {
	provider realtime.Provider
	apiKey   string

	url                string
	model              string
	transcriptionModel string
	header             http.Header
	handshakeTimeout   time.Duration

	speechEnabled    bool
	speechBaseURL    string
	speechHTTPClient *http.Client
	speech           *speechClient
}

type TransportOption func(*Transport)

func WithURL(url string) TransportOption {
	return func(t *Transport) {
		t.url = url
	}
}

func WithModel(model string) TransportOption {
	return func(t *Transport) {
		t.model = model
	}
}

// WithProvider reports connections under a different provider identity, for
// endpoints compatible with the OpenAI protocol.
func WithProvider(provider realtime.Provider) TransportOption {
	return func(t *Transport) {
		t.provider = provider
	}
}

func WithTranscriptionModel(model string) TransportOption {
	return func(t *Transport) {
		t.transcriptionModel = model
	}
}

func WithHeader(key, value string) TransportOption {
	return func(t *Transport) {
		t.header.Set(key, value)
	}
}

func WithHandshakeTimeout(timeout time.Duration) TransportOption {
	return func(t *Transport) {
		t.handshakeTimeout = timeout
	}
}

// WithoutSpeech disables synthesis outside of turns.
func WithoutSpeech() TransportOption {
	return func(t *Transport) {
		t.speechEnabled = false
	}
}

// WithSpeechEndpoint overrides where synthesis requests go and with which
// HTTP client.
func WithSpeechEndpoint(baseURL string, client *http.Client) TransportOption {
	return func(t *Transport) {
		t.speechBaseURL = baseURL
		if client != nil {
			t.speechHTTPClient = client
		}
	}
}

func NewTransport(apiKey string, opts ...TransportOption) *Transport {
	t := &Transport{
		provider:           realtime.ProviderOpenAI,
		apiKey:             apiKey,
		url:                DefaultURL,
		model:              DefaultModel,
		transcriptionModel: DefaultTranscriptionModel,
		header:             http.Header{},
		speechEnabled:      true,
		speechHTTPClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	t.header.Set("OpenAI-Beta", "realtime=v1")
	for _, opt := range opts {
		opt(t)
	}

	if t.speechEnabled {
		t.speech = newSpeechClient(apiKey, t.speechBaseURL, t.speechHTTPClient)
	}
	return t
}

func (t *Transport) Provider() realtime.Provider {
	return t.provider
}

func (t *Transport) Connect(ctx context.Context, handshake realtime.Handshake) (realtime.Connection, error) {
	ctx, span := tracer.Start(ctx, "connect", trace.WithAttributes(
		attribute.String("provider", t.provider.String()),
		attribute.String("model", t.modelFor(handshake)),
	))
	defer span.End()

	conn, err := t.connect(ctx, handshake)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return conn, nil
}

func (t *Transport) connect(ctx context.Context, handshake realtime.Handshake) (*connection, error) {
	if err := handshake.Validate(); err != nil {
		return nil, realtime.NewFatalError(t.provider, realtime.OperationConnect, err)
	}
	if err := checkAudio(handshake.Audio); err != nil {
		return nil, realtime.NewFatalError(t.provider, realtime.OperationConnect, err)
	}

	endpoint, err := url.Parse(t.url)
	if err != nil {
		return nil, realtime.NewFatalError(t.provider, realtime.OperationConnect, fmt.Errorf("invalid url: %w", err))
	}
	query := endpoint.Query()
	query.Set("model", t.modelFor(handshake))
	endpoint.RawQuery = query.Encode()

	header := t.header.Clone()
	header.Set("Authorization", "Bearer "+t.apiKey)

	socket, err := realtime.DialSocket(ctx, t.provider, realtime.SocketConfig{
		URL:              endpoint.String(),
		Header:           header,
		HandshakeTimeout: t.handshakeTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := socket.WriteHandshake(ctx, newSessionUpdate(handshake, t.transcriptionModel)); err != nil {
		_ = socket.Close()
		return nil, err
	}
	logger.Debug("session configured", "provider", t.provider, "voice", handshake.Voice, "language", handshake.Language)

	return &connection{
		provider: t.provider,
		socket:   socket,
		speech:   t.speech,
		voice:    handshake.Voice,
	}, nil
}

func (t *Transport) modelFor(handshake realtime.Handshake) string {
	if handshake.Model != "" {
		return handshake.Model
	}
	return t.model
}

func checkAudio(encoding audio.EncodingInfo) error {
	if encoding.Format != audio.EncodingLinear16 || encoding.SampleRate != SampleRate || encoding.Channels > 1 {
		return fmt.Errorf("unsupported audio %s: pcm16 at %dHz mono is required", encoding, SampleRate)
	}
	return nil
}
