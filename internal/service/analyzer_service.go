package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
	"go.uber.org/zap"
)

// 操作建议，按阈值从高到低
const (
	ActionStrongBuy = "STRONG_BUY"
	ActionBuy       = "BUY"
	ActionWatch     = "WATCH"
	ActionNeutral   = "NEUTRAL"
	ActionAvoid     = "AVOID"
	ActionSell      = "SELL"
)

// 多时间框架趋势一致性
const (
	AlignmentBullish = "BULLISH"
	AlignmentBearish = "BEARISH"
	AlignmentNone    = "NONE"
)

// 置信度
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// 操作建议阈值（固定，降序匹配）
var actionThresholds = []struct {
	Action   string
	MinScore int
}{
	{ActionStrongBuy, 75},
	{ActionBuy, 65},
	{ActionWatch, 50},
	{ActionNeutral, 40},
	{ActionAvoid, 25},
}

// 每个时间框架抓取的K线数量，需覆盖EMA50的计算窗口
const frameFetchLimit = 120

// AnalyzerService 综合信号评分服务，整个分析流程的核心
type AnalyzerService struct {
	logger *zap.Logger

	conf             config.AnalyzerConf
	marketSource     MarketSource
	indicatorService *IndicatorService
	patternService   *PatternService
	sentimentSource  SentimentSource
	trackerService   *TrackerService
	clock            Clock
}

// NewAnalyzerService 创建综合评分服务
func NewAnalyzerService(
	conf *config.Config,
	marketSource MarketSource,
	indicatorService *IndicatorService,
	patternService *PatternService,
	sentimentSource SentimentSource,
	trackerService *TrackerService,
	clock Clock,
	logger *zap.Logger,
) *AnalyzerService {
	return &AnalyzerService{
		logger:           logger,
		conf:             conf.Analyzer,
		marketSource:     marketSource,
		indicatorService: indicatorService,
		patternService:   patternService,
		sentimentSource:  sentimentSource,
		trackerService:   trackerService,
		clock:            clock,
	}
}

// TimeframeResult 单个时间框架的评分明细
type TimeframeResult struct {
	Timeframe  market.Timeframe `json:"timeframe"`
	SubScore   int              `json:"sub_score"` // [0,100]
	Indicators *Indicators      `json:"indicators"`
	Patterns   *PatternFlags    `json:"patterns"`
	Reasons    []string         `json:"reasons"` // 最多两条
}

// Analysis 综合分析结果
type Analysis struct {
	Symbol       string                   `json:"symbol"`
	Timestamp    time.Time                `json:"timestamp"`
	FinalScore   int                      `json:"final_score"` // [0,100]
	Action       string                   `json:"action"`
	Alignment    string                   `json:"alignment"`
	Confidence   string                   `json:"confidence"`
	PumpRisk     int                      `json:"pump_risk"` // 各时间框架的最大值
	Price        float64                  `json:"price"`     // 分析时价格，行情不可用时为0
	Subscores    map[market.Timeframe]int `json:"per_tf_subscores"`
	Timeframes   []*TimeframeResult       `json:"timeframes"`
	Signals      []string                 `json:"signals"`
	MarketState  *MarketState             `json:"market_state"`
	Persisted    bool                     `json:"persisted"`
	PredictionID string                   `json:"prediction_id,omitempty"`
}

// Analyze 对单个币种执行完整的多时间框架综合分析并记录预测
// 尊重调用方的deadline：超时后以已完成的子评分出结果，置信度降为LOW
func (s *AnalyzerService) Analyze(ctx context.Context, symbol string) (*Analysis, error) {
	analysis := &Analysis{
		Symbol:    symbol,
		Timestamp: s.clock.Now(),
		Alignment: AlignmentNone,
		Subscores: make(map[market.Timeframe]int),
		Signals:   make([]string, 0, 8),
	}

	// Step 1: 逐时间框架计算指标、形态与子评分
	deadlineHit := false
	notListed := 0
	missing := make([]string, 0, len(market.AllTimeframes))
	for _, tf := range market.AllTimeframes {
		if ctx.Err() != nil {
			deadlineHit = true
			break
		}

		frame, err := s.marketSource.GetFrame(ctx, symbol, tf, frameFetchLimit)
		if err != nil {
			if errors.Is(err, market.ErrSymbolNotListed) {
				notListed++
			}
			missing = append(missing, fmt.Sprintf("%s ohlcv", tf))
			continue
		}

		indicators := s.indicatorService.Calculate(frame, s.conf.RequiredBars)
		if indicators.Insufficient {
			missing = append(missing, fmt.Sprintf("%s ohlcv", tf))
			continue
		}
		if issues := s.indicatorService.Validate(indicators); len(issues) > 0 {
			s.logger.Warn("data quality issues",
				zap.String("symbol", symbol),
				zap.String("timeframe", tf.String()),
				zap.Strings("issues", issues))
		}

		patterns := s.patternService.Detect(frame, indicators.RangePos)
		subScore, reasons := s.scoreTimeframe(indicators, patterns)

		result := &TimeframeResult{
			Timeframe:  tf,
			SubScore:   subScore,
			Indicators: indicators,
			Patterns:   patterns,
			Reasons:    reasons,
		}
		analysis.Timeframes = append(analysis.Timeframes, result)
		analysis.Subscores[tf] = subScore
		if patterns.PumpRisk > analysis.PumpRisk {
			analysis.PumpRisk = patterns.PumpRisk
		}
		for _, reason := range reasons {
			analysis.Signals = append(analysis.Signals, fmt.Sprintf("%s: %s", tf, reason))
		}
	}

	// 所有时间框架都查不到该交易对时视为币种不存在
	if notListed == len(market.AllTimeframes) {
		return nil, market.ErrSymbolNotListed
	}

	for _, m := range missing {
		analysis.Signals = append(analysis.Signals, "missing "+m)
	}

	if len(analysis.Timeframes) == 0 {
		// 所有时间框架都无可用数据：固定中性结果，不再叠加任何调整
		analysis.FinalScore = 50
		analysis.Action = ActionNeutral
		analysis.Confidence = ConfidenceLow
		if s.sentimentSource != nil {
			analysis.MarketState = s.sentimentSource.GetMarketState(ctx)
		}
	} else {
		// Step 2: 加权合成，权重在可用时间框架上重新归一化
		raw := s.weightedScore(analysis.Timeframes)

		// Step 3: 多时间框架一致性加成
		analysis.Alignment = s.detectAlignment(analysis.Timeframes)
		switch analysis.Alignment {
		case AlignmentBullish:
			raw += 10
			analysis.Signals = append(analysis.Signals, "all timeframes aligned bullish")
		case AlignmentBearish:
			raw -= 10
			analysis.Signals = append(analysis.Signals, "all timeframes aligned bearish")
		}

		// Step 4: 拉盘风险惩罚
		if analysis.PumpRisk > 60 {
			raw -= 15
			analysis.Signals = append(analysis.Signals, fmt.Sprintf("pump risk %d, discounting score", analysis.PumpRisk))
		}

		// Step 5: 市场情绪叠加，净贡献限制在 [-10, +10]
		if s.sentimentSource != nil {
			state := s.sentimentSource.GetMarketState(ctx)
			analysis.MarketState = state
			raw += ta.Clamp(state.Adjustment, -10, 10)
			analysis.Signals = append(analysis.Signals, state.Signals...)
		}

		// Step 6: 裁剪并映射为操作建议与置信度
		analysis.FinalScore = int(math.Round(ta.Clamp(raw, 0, 100)))
		analysis.Action = s.mapAction(analysis.FinalScore, analysis.Alignment)
		analysis.Confidence = s.mapConfidence(analysis, deadlineHit)
	}

	// Step 7: 获取当前价格并落库为预测记录
	if ticker, err := s.marketSource.GetTicker(ctx, symbol); err == nil {
		analysis.Price = ticker.Price
	} else if len(analysis.Timeframes) > 0 {
		analysis.Price = analysis.Timeframes[0].Indicators.Price
	}

	if s.trackerService != nil {
		prediction, err := s.trackerService.Record(ctx, analysis, time.Duration(s.conf.PredictionHorizonHours)*time.Hour)
		if err != nil {
			s.logger.Error("failed to persist prediction",
				zap.String("symbol", symbol),
				zap.Error(err))
			analysis.Persisted = false
		} else {
			analysis.Persisted = true
			analysis.PredictionID = prediction.ID
		}
	}

	return analysis, nil
}

// scoreRule 子评分规则，条件满足时叠加delta
type scoreRule struct {
	applies bool
	delta   int
	reason  string
}

// scoreTimeframe 按规则表计算单个时间框架的子评分，返回评分与最多两条依据
func (s *AnalyzerService) scoreTimeframe(ind *Indicators, flags *PatternFlags) (int, []string) {
	rules := []scoreRule{
		{ind.RSI14 < 25, +15, "deeply oversold RSI"},
		{ind.RSI14 >= 25 && ind.RSI14 < 35, +8, "oversold RSI"},
		{ind.RSI14 > 75, -12, "deeply overbought RSI"},
		{ind.RSI14 <= 75 && ind.RSI14 > 65, -5, "overbought RSI"},
		{ind.MACD.Hist > 0, +10, "MACD bullish"},
		{ind.MACD.Hist < 0, -8, "MACD bearish"},
		{ind.MACD.Crossover == ta.CrossoverUp, +8, "fresh MACD crossover up"},
		{ind.MACD.Crossover == ta.CrossoverDown, -5, "fresh MACD crossover down"},
		{ind.EMAStack == ta.StackBullishStrong, +12, "strong bullish EMA stack"},
		{ind.EMAStack == ta.StackBullish, +6, "bullish EMA stack"},
		{ind.EMAStack == ta.StackBearishStrong, -10, "strong bearish EMA stack"},
		{ind.EMAStack == ta.StackBearish, -5, "bearish EMA stack"},
		{flags.PumpRisk >= 50, -flags.PumpRisk / 2, fmt.Sprintf("pump/dump risk %d", flags.PumpRisk)},
		{flags.StrongBearishCandle(), -15, "strong bearish candle"},
		{flags.StrongBullishCandle(), +15, "strong bullish candle"},
		{flags.OversoldZone, +8, "near bottom of 30-bar range"},
		{flags.OverboughtZone, -8, "near top of 30-bar range"},
	}

	score := 50
	fired := make([]scoreRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.applies {
			continue
		}
		score += rule.delta
		fired = append(fired, rule)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// 只保留影响最大的两条依据
	sort.SliceStable(fired, func(i, j int) bool {
		return abs(fired[i].delta) > abs(fired[j].delta)
	})
	reasons := make([]string, 0, 2)
	for _, rule := range fired {
		reasons = append(reasons, rule.reason)
		if len(reasons) == 2 {
			break
		}
	}

	return score, reasons
}

// weightedScore 对可用时间框架加权求和，权重重新归一化后总和为1
func (s *AnalyzerService) weightedScore(results []*TimeframeResult) float64 {
	if len(results) == 0 {
		return 50
	}

	totalWeight := 0.0
	for _, r := range results {
		totalWeight += s.conf.Weight(r.Timeframe)
	}
	if totalWeight <= 0 {
		return 50
	}

	raw := 0.0
	for _, r := range results {
		raw += s.conf.Weight(r.Timeframe) / totalWeight * float64(r.SubScore)
	}
	return raw
}

// detectAlignment 所有可用时间框架的EMA趋势方向一致时返回对应方向
func (s *AnalyzerService) detectAlignment(results []*TimeframeResult) string {
	if len(results) == 0 {
		return AlignmentNone
	}

	bullish, bearish := 0, 0
	for _, r := range results {
		switch r.Indicators.EMAStack {
		case ta.StackBullish, ta.StackBullishStrong:
			bullish++
		case ta.StackBearish, ta.StackBearishStrong:
			bearish++
		}
	}

	if bullish == len(results) {
		return AlignmentBullish
	}
	if bearish == len(results) {
		return AlignmentBearish
	}
	return AlignmentNone
}

// mapAction 评分映射为操作建议，STRONG_BUY额外要求多头一致性
func (s *AnalyzerService) mapAction(score int, alignment string) string {
	for _, t := range actionThresholds {
		if score < t.MinScore {
			continue
		}
		if t.Action == ActionStrongBuy && alignment != AlignmentBullish {
			return ActionBuy
		}
		return t.Action
	}
	return ActionSell
}

// mapConfidence 置信度判定
func (s *AnalyzerService) mapConfidence(analysis *Analysis, deadlineHit bool) string {
	if deadlineHit {
		return ConfidenceLow
	}
	if analysis.Alignment != AlignmentNone && analysis.PumpRisk < 30 {
		return ConfidenceHigh
	}
	if len(analysis.Timeframes) >= 2 {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// ScanAll 扫描全部配置币种，按评分降序返回
func (s *AnalyzerService) ScanAll(ctx context.Context) ([]*Analysis, error) {
	results := make([]*Analysis, 0, len(s.conf.Symbols))
	for _, symbol := range s.conf.Symbols {
		if ctx.Err() != nil {
			break
		}
		analysis, err := s.Analyze(ctx, symbol)
		if err != nil {
			s.logger.Error("failed to analyze symbol",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		results = append(results, analysis)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no symbol could be analyzed")
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	return results, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
