package bot

import (
	"fmt"
	"strings"

	"github.com/xaenox/botchat/internal/models"
)

var markdownSpecial = []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	escaped := text
	for _, char := range markdownSpecial {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func formatLine(m models.Message) string {
	return fmt.Sprintf("*%s*: %s", escapeMarkdown(m.Author), escapeMarkdown(m.Text))
}

func describeBot(bot models.Bot) string {
	status := "online"
	if !bot.Online {
		status = "offline"
	}
	last := "never"
	if !bot.LastSpokeAt.IsZero() {
		last = bot.LastSpokeAt.Format("15:04")
	}
	return fmt.Sprintf("%s (%s, %s-%s, %.0f/h, last talked %s)",
		bot.Name, status, bot.ActiveStart, bot.ActiveEnd, bot.TalkFrequency, last)
}
