package service

import (
	"context"
	"testing"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalyzer(m MarketSource, sentiment SentimentSource) *AnalyzerService {
	return NewAnalyzerService(
		testConfig(),
		m,
		NewIndicatorService(),
		NewPatternService(),
		sentiment,
		nil,
		newFixedClock(),
		zap.NewNop(),
	)
}

func TestScoreTimeframe_OversoldBullishSetup(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	ind := &Indicators{
		RSI14:    22,
		MACD:     ta.MACDResult{Hist: 0.4, Crossover: ta.CrossoverUp},
		EMAStack: ta.StackBullish,
	}
	flags := &PatternFlags{CandleStrength: StrengthWeak}

	// 50 +15(rsi<25) +10(macd) +8(crossover) +6(stack) = 89
	score, reasons := s.scoreTimeframe(ind, flags)
	assert.Equal(t, 89, score)
	assert.Len(t, reasons, 2)
	assert.Equal(t, "deeply oversold RSI", reasons[0])
}

func TestScoreTimeframe_RSITiersAreExclusive(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})
	flags := &PatternFlags{CandleStrength: StrengthWeak}

	// rsi=22 只触发 +15，不叠加 +8
	score, _ := s.scoreTimeframe(&Indicators{RSI14: 22, EMAStack: ta.StackNeutral}, flags)
	assert.Equal(t, 65, score)

	score, _ = s.scoreTimeframe(&Indicators{RSI14: 30, EMAStack: ta.StackNeutral}, flags)
	assert.Equal(t, 58, score)

	score, _ = s.scoreTimeframe(&Indicators{RSI14: 80, EMAStack: ta.StackNeutral}, flags)
	assert.Equal(t, 38, score)

	score, _ = s.scoreTimeframe(&Indicators{RSI14: 70, EMAStack: ta.StackNeutral}, flags)
	assert.Equal(t, 45, score)
}

func TestScoreTimeframe_PostPumpExhaustion(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	ind := &Indicators{
		RSI14:    78,
		MACD:     ta.MACDResult{Hist: -0.2, Crossover: ta.CrossoverNone},
		EMAStack: ta.StackBearish,
	}
	flags := &PatternFlags{
		CandleStrength: StrengthMedium,
		PostPumpDump:   true,
		PumpRisk:       70,
	}

	// 50 -12(rsi) -8(macd) -5(stack) -35(pump 70/2) = -10 → clamp 0
	score, _ := s.scoreTimeframe(ind, flags)
	assert.Equal(t, 0, score)
	assert.LessOrEqual(t, score, 20)
}

func TestScoreTimeframe_ClampedToUpperBound(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	ind := &Indicators{
		RSI14:    20,
		MACD:     ta.MACDResult{Hist: 1, Crossover: ta.CrossoverUp},
		EMAStack: ta.StackBullishStrong,
	}
	flags := &PatternFlags{
		CandleStrength:   StrengthStrong,
		BullishEngulfing: true,
		OversoldZone:     true,
	}

	// 50+15+10+8+12+15+8 = 118 → clamp 100
	score, reasons := s.scoreTimeframe(ind, flags)
	assert.Equal(t, 100, score)
	assert.Len(t, reasons, 2)
}

func TestWeightedScore_RenormalizesOverPresentTimeframes(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	results := []*TimeframeResult{
		{Timeframe: market.Timeframe15m, SubScore: 80},
		{Timeframe: market.Timeframe1h, SubScore: 60},
		{Timeframe: market.Timeframe4h, SubScore: 40},
	}

	// (0.15*80 + 0.25*60 + 0.35*40) / 0.75
	assert.InDelta(t, 54.6667, s.weightedScore(results), 1e-3)

	// 全部缺失时退回中性
	assert.Equal(t, 50.0, s.weightedScore(nil))

	// 单个时间框架权重归一化为1
	single := []*TimeframeResult{{Timeframe: market.Timeframe1d, SubScore: 70}}
	assert.InDelta(t, 70.0, s.weightedScore(single), 1e-9)
}

func TestDetectAlignment(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	bullish := []*TimeframeResult{
		{Indicators: &Indicators{EMAStack: ta.StackBullish}},
		{Indicators: &Indicators{EMAStack: ta.StackBullishStrong}},
	}
	assert.Equal(t, AlignmentBullish, s.detectAlignment(bullish))

	bearish := []*TimeframeResult{
		{Indicators: &Indicators{EMAStack: ta.StackBearish}},
		{Indicators: &Indicators{EMAStack: ta.StackBearishStrong}},
	}
	assert.Equal(t, AlignmentBearish, s.detectAlignment(bearish))

	mixed := []*TimeframeResult{
		{Indicators: &Indicators{EMAStack: ta.StackBullish}},
		{Indicators: &Indicators{EMAStack: ta.StackNeutral}},
	}
	assert.Equal(t, AlignmentNone, s.detectAlignment(mixed))

	assert.Equal(t, AlignmentNone, s.detectAlignment(nil))
}

func TestMapAction(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	tests := []struct {
		score     int
		alignment string
		expected  string
	}{
		{80, AlignmentBullish, ActionStrongBuy},
		{75, AlignmentBullish, ActionStrongBuy},
		{80, AlignmentNone, ActionBuy}, // 缺少多头一致性时降级
		{70, AlignmentNone, ActionBuy},
		{65, AlignmentNone, ActionBuy},
		{55, AlignmentNone, ActionWatch},
		{50, AlignmentNone, ActionWatch},
		{45, AlignmentNone, ActionNeutral},
		{30, AlignmentNone, ActionAvoid},
		{25, AlignmentNone, ActionAvoid},
		{24, AlignmentNone, ActionSell},
		{0, AlignmentBearish, ActionSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.mapAction(tt.score, tt.alignment),
			"score=%d alignment=%s", tt.score, tt.alignment)
	}
}

func TestMapConfidence(t *testing.T) {
	s := newTestAnalyzer(&stubMarket{}, &stubSentiment{})

	aligned := &Analysis{
		Alignment:  AlignmentBullish,
		PumpRisk:   10,
		Timeframes: []*TimeframeResult{{}, {}, {}},
	}
	assert.Equal(t, ConfidenceHigh, s.mapConfidence(aligned, false))

	// 超时后强制降级
	assert.Equal(t, ConfidenceLow, s.mapConfidence(aligned, true))

	risky := &Analysis{
		Alignment:  AlignmentBullish,
		PumpRisk:   60,
		Timeframes: []*TimeframeResult{{}, {}},
	}
	assert.Equal(t, ConfidenceMedium, s.mapConfidence(risky, false))

	sparse := &Analysis{
		Alignment:  AlignmentNone,
		Timeframes: []*TimeframeResult{{}},
	}
	assert.Equal(t, ConfidenceLow, s.mapConfidence(sparse, false))
}

func TestAnalyze_UptrendAcrossAllTimeframes(t *testing.T) {
	frames := make(map[string]*market.Frame)
	for _, tf := range market.AllTimeframes {
		frames["BTC:"+tf.String()] = risingFrame("BTC", tf, 60)
	}
	m := &stubMarket{
		frames: frames,
		ticker: &market.Ticker{Symbol: "BTC", Price: 160, Venue: "test"},
	}

	s := newTestAnalyzer(m, &stubSentiment{})
	analysis, err := s.Analyze(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, AlignmentBullish, analysis.Alignment)
	assert.Equal(t, ConfidenceHigh, analysis.Confidence)
	assert.Len(t, analysis.Subscores, len(market.AllTimeframes))
	assert.Equal(t, 160.0, analysis.Price)
	assert.False(t, analysis.Persisted)

	// 每个时间框架: 50 -12(超买RSI) +10(macd) +12(强多头排列) -8(区间顶部) = 52
	for tf, sub := range analysis.Subscores {
		assert.Equal(t, 52, sub, "timeframe %s", tf)
	}
	// 52 + 10(一致性加成) = 62
	assert.Equal(t, 62, analysis.FinalScore)
	assert.Equal(t, ActionWatch, analysis.Action)
}

func TestAnalyze_DeterministicWithinCacheWindow(t *testing.T) {
	frames := make(map[string]*market.Frame)
	for _, tf := range market.AllTimeframes {
		frames["BTC:"+tf.String()] = risingFrame("BTC", tf, 60)
	}
	m := &stubMarket{
		frames: frames,
		ticker: &market.Ticker{Symbol: "BTC", Price: 160, Venue: "test"},
	}

	tracker, _, _, _ := newTestTracker(t, m)
	s := NewAnalyzerService(
		testConfig(),
		m,
		NewIndicatorService(),
		NewPatternService(),
		&stubSentiment{},
		tracker,
		newFixedClock(),
		zap.NewNop(),
	)

	a1, err := s.Analyze(context.Background(), "BTC")
	require.NoError(t, err)
	a2, err := s.Analyze(context.Background(), "BTC")
	require.NoError(t, err)

	// 每次分析生成独立的预测记录，除此之外输入不变时结果完全一致
	assert.True(t, a1.Persisted)
	assert.True(t, a2.Persisted)
	assert.NotEmpty(t, a1.PredictionID)
	assert.NotEqual(t, a1.PredictionID, a2.PredictionID)

	a2.PredictionID = a1.PredictionID
	assert.Equal(t, a1, a2)
}

func TestAnalyze_SentimentContributionClamped(t *testing.T) {
	frames := make(map[string]*market.Frame)
	for _, tf := range market.AllTimeframes {
		frames["BTC:"+tf.String()] = risingFrame("BTC", tf, 60)
	}
	m := &stubMarket{frames: frames, ticker: &market.Ticker{Price: 160}}

	extreme := newTestAnalyzer(m, &stubSentiment{state: &MarketState{Adjustment: 25}})
	capped := newTestAnalyzer(m, &stubSentiment{state: &MarketState{Adjustment: 10}})

	a1, err := extreme.Analyze(context.Background(), "BTC")
	require.NoError(t, err)
	a2, err := capped.Analyze(context.Background(), "BTC")
	require.NoError(t, err)

	// 情绪净贡献超过 +10 的部分被裁剪
	assert.Equal(t, a2.FinalScore, a1.FinalScore)
	assert.Equal(t, 72, a1.FinalScore)

	negExtreme := newTestAnalyzer(m, &stubSentiment{state: &MarketState{Adjustment: -25}})
	negCapped := newTestAnalyzer(m, &stubSentiment{state: &MarketState{Adjustment: -10}})

	a3, err := negExtreme.Analyze(context.Background(), "BTC")
	require.NoError(t, err)
	a4, err := negCapped.Analyze(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, a4.FinalScore, a3.FinalScore)
}

func TestAnalyze_AllSourcesDown(t *testing.T) {
	m := &stubMarket{
		frameErr:  market.ErrVenueUnavailable,
		tickerErr: market.ErrVenueUnavailable,
	}

	// 情绪数据可用也不影响降级结果
	s := newTestAnalyzer(m, &stubSentiment{state: &MarketState{Adjustment: 8}})
	analysis, err := s.Analyze(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, 50, analysis.FinalScore)
	assert.Equal(t, ActionNeutral, analysis.Action)
	assert.Equal(t, ConfidenceLow, analysis.Confidence)
	assert.Equal(t, AlignmentNone, analysis.Alignment)
	assert.Empty(t, analysis.Subscores)
	assert.Equal(t, 0.0, analysis.Price)

	found := false
	for _, signal := range analysis.Signals {
		if len(signal) >= 7 && signal[:7] == "missing" {
			found = true
		}
	}
	assert.True(t, found, "signals should name the missing inputs: %v", analysis.Signals)
}

func TestAnalyze_UnknownSymbol(t *testing.T) {
	m := &stubMarket{frameErr: market.ErrSymbolNotListed}

	s := newTestAnalyzer(m, &stubSentiment{})
	_, err := s.Analyze(context.Background(), "NOPE")
	assert.ErrorIs(t, err, market.ErrSymbolNotListed)
}

func TestAnalyze_DeadlinePartialResult(t *testing.T) {
	frames := make(map[string]*market.Frame)
	for _, tf := range market.AllTimeframes {
		frames["BTC:"+tf.String()] = risingFrame("BTC", tf, 60)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &stubMarket{
		frames:     frames,
		ticker:     &market.Ticker{Price: 160},
		onGetFrame: cancel, // 第一个时间框架取完即超时
	}

	s := newTestAnalyzer(m, &stubSentiment{})
	analysis, err := s.Analyze(ctx, "BTC")
	require.NoError(t, err)

	assert.Len(t, analysis.Subscores, 1)
	assert.Equal(t, ConfidenceLow, analysis.Confidence)
}

func TestScanAll_SortsByScoreAndSkipsFailures(t *testing.T) {
	frames := make(map[string]*market.Frame)
	for _, tf := range market.AllTimeframes {
		frames["BTC:"+tf.String()] = risingFrame("BTC", tf, 60)
		// ETH 无数据，降级为中性50分
	}
	m := &stubMarket{
		frames:   frames,
		frameErr: market.ErrInsufficientData,
		ticker:   &market.Ticker{Price: 160},
	}

	s := newTestAnalyzer(m, &stubSentiment{})
	results, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// BTC 62分在前，ETH 中性50分在后
	assert.Equal(t, "BTC", results[0].Symbol)
	assert.Equal(t, "ETH", results[1].Symbol)
	assert.GreaterOrEqual(t, results[0].FinalScore, results[1].FinalScore)
}
