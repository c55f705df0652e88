package realtime

import "strings"

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderDashScope Provider = "dashscope"
	ProviderDeepgram  Provider = "deepgram"
	ProviderStub      Provider = "mock"
)

// ParseProvider resolves a configured provider name. Unknown names resolve
// to ProviderStub with known set to false.
func ParseProvider(name string) (provider Provider, known bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(ProviderOpenAI):
		return ProviderOpenAI, true
	case string(ProviderGemini), "google":
		return ProviderGemini, true
	case string(ProviderDashScope), "qwen":
		return ProviderDashScope, true
	case string(ProviderDeepgram):
		return ProviderDeepgram, true
	case string(ProviderStub), "stub", "":
		return ProviderStub, true
	}
	return ProviderStub, false
}

// RequiresCredential reports whether connecting needs an API key.
func (p Provider) RequiresCredential() bool {
	return p != ProviderStub
}

func (p Provider) String() string {
	return string(p)
}
