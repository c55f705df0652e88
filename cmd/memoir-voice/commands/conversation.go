package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	orchestration "github.com/koscakluka/memoir-voice/core"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/events"
	"github.com/koscakluka/memoir-voice/core/providers"
)

const greeting = "您好，我是记忆星河的AI助手，很高兴为您服务。"

// greetingFor addresses the interviewee by name when the profile knows it.
func greetingFor(profile conversations.Profile) string {
	if profile.Name == "" {
		return greeting
	}
	return "您好，" + profile.Name + "！我是记忆星河的AI助手，很高兴为您服务。"
}

var endWords = []string{"再见", "结束", "拜拜"}

func isEndOfConversation(text string) bool {
	for _, word := range endWords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func runConversation(ctx context.Context, in io.Reader, out io.Writer, cfg config.SessionConfig, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg = providers.Resolve(cfg)
	printBanner(out, providers.Describe(cfg))

	device, err := providers.OpenAudio(cfg, providers.WithOutput(out))
	if err != nil {
		slog.Warn("audio device unavailable, continuing without audio", "error", err)
	}
	defer device.Close()

	history, err := openHistory(opts.historyFile)
	if err != nil {
		return err
	}

	sessionOpts := []orchestration.SessionOption{
		orchestration.WithAudioDevice(device),
		orchestration.WithHistory(history),
		orchestration.WithEventHandler(func(event events.Event) {
			switch typed := event.(type) {
			case events.ConnectionReconnecting:
				printStatus(out, "连接中断，正在重连…")
			case events.SessionStateChanged:
				slog.Debug("session state changed", "from", typed.From, "to", typed.To)
			}
		}),
	}
	var profile conversations.Profile
	if source, ok := history.(conversations.ProfileSource); ok {
		profile = source.ProfileSnapshot()
		sessionOpts = append(sessionOpts, orchestration.WithProfile(source))
	}
	session := orchestration.NewSession(cfg, providers.Select(cfg, providers.WithOutput(out)), sessionOpts...)

	if err := session.StartConversation(ctx); err != nil {
		return describeError(err)
	}
	defer session.StopConversation()
	go func() {
		<-ctx.Done()
		session.StopConversation()
	}()

	opening := greetingFor(profile)
	if opts.textMode {
		printReply(out, opening, false)
	}

	lines := bufio.NewScanner(in)
	for turn := 1; turn <= opts.turns; turn++ {
		printStatus(out, "--- 第 %d 轮 ---", turn)

		var (
			result conversations.Turn
			input  string
		)
		if opts.textMode {
			fmt.Fprint(out, userPrompt())
			if !lines.Scan() {
				break
			}
			input = strings.TrimSpace(lines.Text())
			if input == "" {
				turn--
				continue
			}
			result, err = session.SendText(ctx, input)
		} else {
			prompt := ""
			if turn == 1 {
				prompt = opening
			}
			result, err = session.SpeakTurn(ctx, prompt)
		}

		var turnErr *orchestration.TurnError
		switch {
		case errors.Is(err, orchestration.ErrConversationStopped):
			printStatus(out, "对话已中止")
			return nil
		case errors.As(err, &turnErr):
			printFailure(out, "本轮失败：%v", turnErr.Reason)
			continue
		case err != nil && session.State() == orchestration.StateFailed:
			return describeError(err)
		case err != nil:
			// History failures leave the turn intact.
			printFailure(out, "%v", err)
		}

		printReply(out, result.Text, result.TimedOut)
		if isEndOfConversation(input) || isEndOfConversation(result.Text) {
			printStatus(out, "检测到结束信号")
			break
		}
	}

	if fileHistory, ok := history.(*conversations.FileHistory); ok {
		printStatus(out, "会话已保存：%s", fileHistory.Path())
	}
	fmt.Fprintln(out, assistantLabel.Render("感谢使用记忆星河语音版！再见"))
	return nil
}

func openHistory(path string) (conversations.History, error) {
	if path == "" {
		return conversations.NewMemoryHistory(), nil
	}
	history, err := conversations.OpenFileHistory(path, conversations.Profile{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return history, nil
}
