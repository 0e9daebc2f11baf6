package nostd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"btc", "BTC"},
		{" eth ", "ETH"},
		{"BTCUSDT", "BTC"},
		{"btctry", "BTC"},
		{"SOLUSD", "SOL"},
		{"", ""},
		// 整个符号就是计价货币时不裁剪
		{"TRY", "TRY"},
		{"USDT", "USDT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeSymbol(tt.input), "input=%q", tt.input)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc...", TruncateString("abcdef", 3))
}
