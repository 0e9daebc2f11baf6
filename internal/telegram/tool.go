package telegram

import "strings"

// markdown模式下有意义的特殊字符
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// escapeMarkdown 转义会破坏Markdown消息格式的字符
func escapeMarkdown(input string) string {
	return markdownEscaper.Replace(input)
}
