package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/memoir-voice/core/realtime"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/codes"
)

type speechClient struct {
	client openai.Client
}

func newSpeechClient(apiKey, baseURL string, httpClient *http.Client) *speechClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &speechClient{client: openai.NewClient(opts...)}
}

// synthesize returns 24kHz mono pcm16 speech for text.
func (s *speechClient) synthesize(ctx context.Context, provider realtime.Provider, text, voice string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()

	if voice == "" {
		voice = DefaultVoice
	}

	audio, err := s.request(ctx, text, voice)
	if err != nil {
		err = classifySpeechError(provider, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return audio, nil
}

func (s *speechClient) request(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	return audio, nil
}

func classifySpeechError(provider realtime.Provider, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return realtime.ClassifyStatus(provider, realtime.OperationSpeak, apiErr.StatusCode, err)
	}
	return realtime.ClassifyError(provider, realtime.OperationSpeak, err)
}
