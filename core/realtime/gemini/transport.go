// Package gemini implements a realtime transport over the Gemini Live API.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.0-flash-exp"
	DefaultVoice = "Puck"

	// OutputSampleRate is fixed by the Live API regardless of input.
	OutputSampleRate = 24000
)

type Transport struct {
	apiKey     string
	model      string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

type TransportOption func(*Transport)

func WithModel(model string) TransportOption {
	return func(t *Transport) {
		t.model = model
	}
}

// WithBaseURL overrides the API endpoint, a ws:// or wss:// scheme is kept
// as is.
func WithBaseURL(baseURL string) TransportOption {
	return func(t *Transport) {
		t.baseURL = baseURL
	}
}

func WithAPIVersion(version string) TransportOption {
	return func(t *Transport) {
		t.apiVersion = version
	}
}

func NewTransport(apiKey string, opts ...TransportOption) *Transport {
	t := &Transport{
		apiKey:     apiKey,
		model:      DefaultModel,
		apiVersion: "v1beta",
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Provider() realtime.Provider {
	return realtime.ProviderGemini
}

func (t *Transport) Connect(ctx context.Context, handshake realtime.Handshake) (realtime.Connection, error) {
	model := handshake.Model
	if model == "" {
		model = t.model
	}

	ctx, span := tracer.Start(ctx, "connect", trace.WithAttributes(
		attribute.String("provider", realtime.ProviderGemini.String()),
		attribute.String("model", model),
	))
	defer span.End()

	conn, err := t.connect(ctx, model, handshake)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return conn, nil
}

func (t *Transport) connect(ctx context.Context, model string, handshake realtime.Handshake) (*connection, error) {
	if err := handshake.Validate(); err != nil {
		return nil, realtime.NewFatalError(realtime.ProviderGemini, realtime.OperationConnect, err)
	}
	if handshake.Audio.Format != audio.EncodingLinear16 || handshake.Audio.Channels > 1 {
		return nil, realtime.NewFatalError(realtime.ProviderGemini, realtime.OperationConnect,
			fmt.Errorf("unsupported audio %s: mono pcm16 is required", handshake.Audio))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     t.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: t.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    t.baseURL,
			APIVersion: t.apiVersion,
		},
	})
	if err != nil {
		return nil, realtime.NewFatalError(realtime.ProviderGemini, realtime.OperationConnect, fmt.Errorf("failed to create client: %w", err))
	}

	// Live.Connect writes the setup message, which is the handshake.
	session, err := client.Live.Connect(ctx, model, newConnectConfig(handshake))
	if err != nil {
		return nil, realtime.ClassifyError(realtime.ProviderGemini, realtime.OperationConnect, err)
	}

	conn := newConnection(session, handshake)
	if err := conn.awaitSetup(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Debug("session configured", "model", model, "voice", handshake.Voice, "language", handshake.Language)
	return conn, nil
}

func newConnectConfig(handshake realtime.Handshake) *genai.LiveConnectConfig {
	voice := handshake.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
			LanguageCode: languageCode(handshake.Language),
		},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		RealtimeInputConfig: &genai.RealtimeInputConfig{
			AutomaticActivityDetection: &genai.AutomaticActivityDetection{
				Disabled: !handshake.TurnDetection.Remote,
			},
		},
	}
	if handshake.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(handshake.Instructions, genai.RoleUser)
	}

	if detection := handshake.TurnDetection; detection.Remote {
		activity := config.RealtimeInputConfig.AutomaticActivityDetection
		activity.PrefixPaddingMs = genai.Ptr(int32(detection.PrefixPaddingOrDefault().Milliseconds()))
		if detection.SilenceDuration > 0 {
			activity.SilenceDurationMs = genai.Ptr(int32(detection.SilenceDuration.Milliseconds()))
		}
	}
	return config
}

// languageCode expands bare language tags to the BCP-47 codes the Live API
// expects for speech.
func languageCode(language string) string {
	switch language {
	case "zh":
		return "cmn-CN"
	case "en":
		return "en-US"
	}
	return language
}
