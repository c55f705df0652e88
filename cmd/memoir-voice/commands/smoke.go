package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	orchestration "github.com/koscakluka/memoir-voice/core"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/providers"
)

const smokeTestTimeout = 30 * time.Second

// runSmokeTest connects, synthesizes the greeting once and disconnects.
func runSmokeTest(ctx context.Context, out io.Writer, cfg config.SessionConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, smokeTestTimeout)
	defer cancel()

	cfg = providers.Resolve(cfg)
	printStatus(out, "语音功能测试：%s", providers.Describe(cfg))
	printStatus(out, "合成文本：%s", greeting)

	session := orchestration.NewSession(cfg, providers.Select(cfg, providers.WithOutput(out)))
	if err := session.StartConversation(ctx); err != nil {
		printFailure(out, "测试失败：%v", err)
		return describeError(err)
	}
	defer session.StopConversation()

	speech, err := session.Speak(ctx, greeting)
	if err != nil {
		printFailure(out, "测试失败：%v", err)
		return describeError(err)
	}

	fmt.Fprintln(out, assistantLabel.Render(fmt.Sprintf("语音合成成功，音频大小：%d bytes", len(speech))))
	return nil
}
