package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "BTC", escapeMarkdown("BTC"))
	assert.Equal(t, "A\\_B", escapeMarkdown("A_B"))
	assert.Equal(t, "\\*bold\\*", escapeMarkdown("*bold*"))
	assert.Equal(t, "\\`code\\`", escapeMarkdown("`code`"))
	assert.Equal(t, "\\[link", escapeMarkdown("[link"))

	// 非Markdown特殊字符保持原样
	assert.Equal(t, "a.b-c(d)", escapeMarkdown("a.b-c(d)"))
}
