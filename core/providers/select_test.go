package providers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	audiostub "github.com/koscakluka/memoir-voice/core/audio/stub"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

func TestSelectMapsProviders(t *testing.T) {
	testCases := []struct {
		name     string
		provider string
		expected realtime.Provider
	}{
		{name: "openai", provider: "openai", expected: realtime.ProviderOpenAI},
		{name: "gemini alias", provider: "Google", expected: realtime.ProviderGemini},
		{name: "dashscope", provider: "dashscope", expected: realtime.ProviderDashScope},
		{name: "deepgram", provider: "deepgram", expected: realtime.ProviderDeepgram},
		{name: "mock", provider: "mock", expected: realtime.ProviderStub},
		{name: "empty", provider: "", expected: realtime.ProviderStub},
		{name: "unknown", provider: "carrier-pigeon", expected: realtime.ProviderStub},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = testCase.provider
			cfg.APIKey = "key"

			if got := Select(cfg, WithOutput(&bytes.Buffer{})).Provider(); got != testCase.expected {
				t.Fatalf("expected provider %s, got %s", testCase.expected, got)
			}
		})
	}
}

func TestUnknownProviderDegradesToStub(t *testing.T) {
	out := &bytes.Buffer{}
	cfg := config.Default()
	cfg.Provider = "carrier-pigeon"

	transport := Select(cfg, WithOutput(out))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := transport.Connect(ctx, realtime.Handshake{})
	if err != nil {
		t.Fatalf("expected stub connect to succeed, got %v", err)
	}
	defer conn.Close()

	device, err := OpenAudio(cfg, WithOutput(out), WithDeviceOpener(config.AudioBackendPortAudio, func(audio.EncodingInfo) (audio.Device, error) {
		t.Fatalf("expected no device to be opened for the stub provider")
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("expected stub device without error, got %v", err)
	}

	recorded, err := device.Record(ctx, time.Second)
	if err != nil {
		t.Fatalf("expected record to succeed, got %v", err)
	}
	if recorded == nil || len(recorded) != 0 {
		t.Fatalf("expected empty non-nil buffer, got %v", recorded)
	}

	if err := device.Play(ctx, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected play to succeed, got %v", err)
	}
	if !strings.Contains(out.String(), "[语音输出]") {
		t.Fatalf("expected play to be observable, got %q", out.String())
	}
	if stubDevice, ok := device.(*audiostub.Device); !ok || stubDevice.Played() != 1 {
		t.Fatalf("expected one stub playback, got %T", device)
	}
}

func TestOpenAudioFallsBackWhenDeviceFails(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "openai"
	cfg.APIKey = "key"

	noDevice := errors.New("no default input device")
	device, err := OpenAudio(cfg,
		WithOutput(&bytes.Buffer{}),
		WithDeviceOpener(config.AudioBackendPortAudio, func(audio.EncodingInfo) (audio.Device, error) {
			return nil, noDevice
		}),
	)
	if !errors.Is(err, noDevice) {
		t.Fatalf("expected the open failure to be reported, got %v", err)
	}
	if _, ok := device.(*audiostub.Device); !ok {
		t.Fatalf("expected stub device fallback, got %T", device)
	}
	if err := cfg.CheckAudio(device.EncodingInfo()); err != nil {
		t.Fatalf("expected fallback device to match session audio, got %v", err)
	}
}

func TestOpenAudioUsesConfiguredBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "gemini"
	cfg.APIKey = "key"
	cfg.AudioBackend = config.AudioBackendMiniaudio

	var opened audio.EncodingInfo
	want := audiostub.New(audiostub.WithOutput(&bytes.Buffer{}))
	device, err := OpenAudio(cfg, WithDeviceOpener(config.AudioBackendMiniaudio, func(encoding audio.EncodingInfo) (audio.Device, error) {
		opened = encoding
		return want, nil
	}))
	if err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}
	if device != want {
		t.Fatalf("expected the opened device to be returned")
	}
	if opened != cfg.Encoding() {
		t.Fatalf("expected device to be opened at %s, got %s", cfg.Encoding(), opened)
	}
}

func TestResolveUsesProviderVoices(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "gemini"
	if got := Resolve(cfg).Voice; got != "Puck" {
		t.Fatalf("expected Puck, got %s", got)
	}

	cfg.Voice = "Kore"
	if got := Resolve(cfg).Voice; got != "Kore" {
		t.Fatalf("expected explicit voice to be kept, got %s", got)
	}

	cfg = config.Default()
	cfg.Provider = "openai"
	if got := Resolve(cfg).Voice; got != "alloy" {
		t.Fatalf("expected alloy, got %s", got)
	}
}

func TestDescribe(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "carrier-pigeon"
	if got := Describe(cfg); !strings.Contains(got, "unknown provider") {
		t.Fatalf("expected unknown provider to be described, got %q", got)
	}

	cfg.Provider = "openai"
	if got := Describe(cfg); !strings.Contains(got, "gpt-4o-realtime-preview") {
		t.Fatalf("expected default model in description, got %q", got)
	}
}
