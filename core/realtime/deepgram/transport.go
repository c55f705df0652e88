// Package deepgram implements a transcribe only realtime transport over
// Deepgram live listening. Turns carry the user's transcript back as the
// reply text and never carry audio. Text input and synthesis fail with a
// CapabilityError.
package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/koscakluka/memoir-voice/core/realtime"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL   = "wss://api.deepgram.com/v1/listen"
	DefaultModel = "nova-3"
)

type Transport struct {
	apiKey           string
	url              string
	model            string
	handshakeTimeout time.Duration
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

func NewTransport(apiKey string, opts ...TransportOption) *Transport {
	t := &Transport{
		apiKey: apiKey,
		url:    DefaultURL,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Provider() realtime.Provider {
	return realtime.ProviderDeepgram
}

// Connect opens a listening session. Deepgram takes its configuration on the
// upgrade request, so that request is the handshake.
func (t *Transport) Connect(ctx context.Context, handshake realtime.Handshake) (realtime.Connection, error) {
	ctx, span := tracer.Start(ctx, "connect")
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
		return nil, realtime.NewFatalError(realtime.ProviderDeepgram, realtime.OperationConnect, err)
	}
	if err := checkEncoding(handshake.Audio); err != nil {
		return nil, realtime.NewFatalError(realtime.ProviderDeepgram, realtime.OperationConnect, err)
	}

	listenURL, err := t.listenURL(handshake)
	if err != nil {
		return nil, realtime.NewFatalError(realtime.ProviderDeepgram, realtime.OperationConnect, err)
	}

	socket, err := realtime.DialSocket(ctx, realtime.ProviderDeepgram, realtime.SocketConfig{
		URL:              listenURL,
		Header:           http.Header{"Authorization": {"Token " + t.apiKey}},
		HandshakeTimeout: t.handshakeTimeout,
	})
	if err != nil {
		return nil, err
	}
	socket.MarkConfigured()

	return &connection{socket: socket}, nil
}

func (t *Transport) listenURL(handshake realtime.Handshake) (string, error) {
	listenURL, err := url.Parse(t.url)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	model := handshake.Model
	if model == "" {
		model = t.model
	}
	channels := max(handshake.Audio.Channels, 1)

	queryParams := listenURL.Query()
	queryParams.Set("encoding", handshake.Audio.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(handshake.Audio.SampleRate))
	queryParams.Set("channels", strconv.Itoa(channels))
	queryParams.Set("model", model)
	queryParams.Set("smart_format", "true")
	if handshake.Language != "" {
		queryParams.Set("language", handshake.Language)
	}
	if handshake.TurnDetection.Remote {
		queryParams.Set("interim_results", "true")
		queryParams.Set("vad_events", "true")
		queryParams.Set("utterance_end_ms", strconv.FormatInt(max(handshake.TurnDetection.SilenceDuration.Milliseconds(), 1000), 10))
	}
	queryParams.Set("endpointing", "300")

	listenURL.RawQuery = queryParams.Encode()
	return listenURL.String(), nil
}
