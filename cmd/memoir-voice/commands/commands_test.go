package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/koscakluka/memoir-voice/core/conversations"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func runCommand(t *testing.T, env map[string]string, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(envMap(env))
	out := &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTextConversationRunsOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	out, err := runCommand(t, nil, "我叫王芳\n\n再见\n", "--text", "--history", path)
	if err != nil {
		t.Fatalf("expected conversation to succeed, got %v", err)
	}
	if !strings.Contains(out, "收到：我叫王芳") {
		t.Fatalf("expected acknowledgement in output, got %q", out)
	}
	if !strings.Contains(out, "检测到结束信号") {
		t.Fatalf("expected end word to stop the conversation, got %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected history file, got %v", err)
	}
	var saved struct {
		Turns []json.RawMessage `json:"turns"`
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("expected valid JSON history, got %v", err)
	}
	if len(saved.Turns) != 2 {
		t.Fatalf("expected 2 saved turns, got %d", len(saved.Turns))
	}
}

func TestResumedHistoryPersonalizesGreeting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	saved := `{"profile": {"name": "王芳", "hometown": "绍兴"}, "turns": []}`
	if err := os.WriteFile(path, []byte(saved), 0o644); err != nil {
		t.Fatalf("expected session file to be written, got %v", err)
	}

	out, err := runCommand(t, nil, "再见\n", "--text", "--history", path)
	if err != nil {
		t.Fatalf("expected conversation to succeed, got %v", err)
	}
	if !strings.Contains(out, "您好，王芳！") {
		t.Fatalf("expected greeting by name, got %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected history file, got %v", err)
	}
	if !strings.Contains(string(data), "绍兴") {
		t.Fatalf("expected profile to be kept in the history, got %s", data)
	}
}

func TestGreetingFor(t *testing.T) {
	if got := greetingFor(conversations.Profile{}); got != greeting {
		t.Fatalf("expected default greeting, got %q", got)
	}
	if got := greetingFor(conversations.Profile{Name: "李明"}); !strings.HasPrefix(got, "您好，李明！") {
		t.Fatalf("expected greeting by name, got %q", got)
	}
}

func TestTurnsFlagLimitsConversation(t *testing.T) {
	out, err := runCommand(t, nil, "一\n二\n三\n", "--text", "--turns", "2")
	if err != nil {
		t.Fatalf("expected conversation to succeed, got %v", err)
	}
	if strings.Contains(out, "收到：三") {
		t.Fatalf("expected third line to be ignored, got %q", out)
	}
	if !strings.Contains(out, "收到：二") {
		t.Fatalf("expected second turn to run, got %q", out)
	}
}

func TestSmokeTestWithStubProvider(t *testing.T) {
	out, err := runCommand(t, map[string]string{"VOICE_PROVIDER": "mock"}, "", "--test")
	if err != nil {
		t.Fatalf("expected smoke test to pass, got %v", err)
	}
	if !strings.Contains(out, "[语音输出] "+greeting) {
		t.Fatalf("expected greeting to be spoken, got %q", out)
	}
	if !strings.Contains(out, "语音合成成功") {
		t.Fatalf("expected success line, got %q", out)
	}
}

func TestInvalidConfigurationFails(t *testing.T) {
	_, err := runCommand(t, map[string]string{"VOICE_VAD_THRESHOLD": "2"}, "", "--text")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMissingCredentialFails(t *testing.T) {
	_, err := runCommand(t, map[string]string{"VOICE_PROVIDER": "openai"}, "", "--test")
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing credential error, got %v", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := runCommand(t, nil, "", "schema")
	if err != nil {
		t.Fatalf("expected schema to print, got %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("expected JSON schema, got %v", err)
	}
	if !strings.Contains(out, "vad_threshold") {
		t.Fatalf("expected schema to describe vad_threshold")
	}
}

func TestIsEndOfConversation(t *testing.T) {
	testCases := map[string]bool{
		"好的，再见":    true,
		"今天就到这里结束吧": true,
		"拜拜":       true,
		"我再想想":     false,
		"":         false,
	}

	for text, expected := range testCases {
		if got := isEndOfConversation(text); got != expected {
			t.Fatalf("expected isEndOfConversation(%q) to be %v, got %v", text, expected, got)
		}
	}
}

func TestRenderReplyWrapsUnspacedText(t *testing.T) {
	rendered := renderReply(strings.Repeat("我小时候住在江南的一个小镇上", 10))

	lines := strings.Split(rendered, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected reply to be wrapped, got %d lines", len(lines))
	}
	for _, line := range lines[1:] {
		if width := lipgloss.Width(line); width > replyWidth+2 {
			t.Fatalf("expected lines of at most %d cells, got %d", replyWidth+2, width)
		}
	}
}
