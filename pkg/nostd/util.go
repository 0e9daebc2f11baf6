package nostd

import (
	"strings"
)

// NormalizeSymbol 规范化用户输入的币种符号（大写、去空白、去计价后缀）
func NormalizeSymbol(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	for _, suffix := range []string{"USDT", "TRY", "USD"} {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return s
}

// TruncateString 截断字符串
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
