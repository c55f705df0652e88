package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const replyWidth = 56

var (
	accentColor = lipgloss.Color("#00ff9f")
	userColor   = lipgloss.Color("#5fafff")
	dimColor    = lipgloss.Color("#6e7681")
	errorColor  = lipgloss.Color("#ff5f5f")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	bannerStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(0, 2)
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(userColor)
	statusStyle    = lipgloss.NewStyle().Foreground(dimColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
)

func printBanner(w io.Writer, description string) {
	body := strings.Join([]string{
		titleStyle.Render("记忆星河 · 语音版"),
		"",
		"语音交互 · 自然对话 · 智能记录",
		statusStyle.Render(description),
		statusStyle.Render(`说"再见"或"结束"退出`),
	}, "\n")
	fmt.Fprintln(w, bannerStyle.Render(body))
}

// renderReply wraps reply text, which is mostly unspaced CJK, to the reply
// width and indents it under the speaker label.
func renderReply(text string) string {
	wrapped := wrap.String(wordwrap.String(text, replyWidth), replyWidth)
	return assistantLabel.Render("AI：") + "\n" + indent.String(wrapped, 2)
}

func printReply(w io.Writer, text string, incomplete bool) {
	fmt.Fprintln(w, renderReply(text))
	if incomplete {
		fmt.Fprintln(w, statusStyle.Render("  (回复未完整结束)"))
	}
}

func printStatus(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf(format, args...)))
}

func printFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func userPrompt() string {
	return userLabel.Render("您：")
}
