package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luoxq/beacon/internal/config"
)

type stubNotifier struct {
	sent []string
	err  error
}

func (s *stubNotifier) Notify(chatId, msg string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestScanLoop(t *testing.T, notifier Notifier) *ScanLoop {
	t.Helper()
	conf := testConfig()
	conf.Telegram = config.TelegramConf{Enabled: true, Token: "token", ChatID: "12345"}
	return NewScanLoop(conf, nil, nil, notifier, zap.NewNop())
}

func TestDispatchAlerts_OnlyActionableWithConfidence(t *testing.T) {
	notifier := &stubNotifier{}
	loop := newTestScanLoop(t, notifier)

	results := []*Analysis{
		{Symbol: "BTC", Action: ActionStrongBuy, Confidence: ConfidenceHigh, FinalScore: 80},
		{Symbol: "ETH", Action: ActionBuy, Confidence: ConfidenceMedium, FinalScore: 68},
		{Symbol: "SOL", Action: ActionWatch, Confidence: ConfidenceHigh, FinalScore: 55},
		{Symbol: "DOGE", Action: ActionSell, Confidence: ConfidenceLow, FinalScore: 20},
		{Symbol: "AVAX", Action: ActionAvoid, Confidence: ConfidenceMedium, FinalScore: 30},
	}

	alerted := loop.dispatchAlerts(results)

	assert.Equal(t, 3, alerted)
	require.Len(t, notifier.sent, 3)
	assert.Contains(t, notifier.sent[0], "BTC")
	assert.Contains(t, notifier.sent[1], "ETH")
	assert.Contains(t, notifier.sent[2], "AVAX")
}

func TestDispatchAlerts_NoNotifier(t *testing.T) {
	loop := newTestScanLoop(t, nil)

	results := []*Analysis{
		{Symbol: "BTC", Action: ActionStrongBuy, Confidence: ConfidenceHigh},
	}
	assert.Equal(t, 0, loop.dispatchAlerts(results))
}

func TestDispatchAlerts_NoChatID(t *testing.T) {
	notifier := &stubNotifier{}
	loop := newTestScanLoop(t, notifier)
	loop.telegramConf.ChatID = ""

	results := []*Analysis{
		{Symbol: "BTC", Action: ActionStrongBuy, Confidence: ConfidenceHigh},
	}
	assert.Equal(t, 0, loop.dispatchAlerts(results))
	assert.Empty(t, notifier.sent)
}

func TestDispatchAlerts_NotifyErrorContinues(t *testing.T) {
	notifier := &stubNotifier{err: assert.AnError}
	loop := newTestScanLoop(t, notifier)

	results := []*Analysis{
		{Symbol: "BTC", Action: ActionStrongBuy, Confidence: ConfidenceHigh},
		{Symbol: "ETH", Action: ActionBuy, Confidence: ConfidenceMedium},
	}
	assert.Equal(t, 0, loop.dispatchAlerts(results))
}

func TestFormatSignalMessage(t *testing.T) {
	analysis := &Analysis{
		Symbol:     "BTC",
		FinalScore: 78,
		Action:     ActionStrongBuy,
		Confidence: ConfidenceHigh,
		Alignment:  AlignmentBullish,
		Price:      65000,
		PumpRisk:   10,
		Signals:    []string{"sig1", "sig2", "sig3", "sig4", "sig5", "sig6"},
	}

	msg := FormatSignalMessage(analysis)

	assert.Contains(t, msg, "*BTC*")
	assert.Contains(t, msg, "Score: *78* / 100")
	assert.Contains(t, msg, "Action: *STRONG_BUY*")
	assert.Contains(t, msg, "Confidence: HIGH")
	assert.Contains(t, msg, "Price: 65000 USD")
	assert.Contains(t, msg, "Pump risk: 10")

	// 信号最多显示5条
	assert.Equal(t, 5, strings.Count(msg, "- sig"))
	assert.NotContains(t, msg, "sig6")
}

func TestFormatSignalMessage_Minimal(t *testing.T) {
	analysis := &Analysis{
		Symbol:     "ETH",
		FinalScore: 50,
		Action:     ActionNeutral,
		Confidence: ConfidenceLow,
		Alignment:  AlignmentNone,
	}

	msg := FormatSignalMessage(analysis)

	assert.NotContains(t, msg, "Price:")
	assert.NotContains(t, msg, "Pump risk:")
}
