package service

import (
	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
)

// IndicatorService 技术指标计算服务
type IndicatorService struct{}

// NewIndicatorService 创建技术指标服务
func NewIndicatorService() *IndicatorService {
	return &IndicatorService{}
}

// Indicators 单个时间框架的指标快照
type Indicators struct {
	Timeframe   market.Timeframe   `json:"timeframe"`
	Price       float64            `json:"price"`
	RSI14       float64            `json:"rsi14"`
	MACD        ta.MACDResult      `json:"macd"`
	EMAStack    string             `json:"ema_stack"` // bullish_strong/bullish/neutral/bearish/bearish_strong
	Bollinger   ta.BollingerResult `json:"bollinger"`
	ATR14       float64            `json:"atr14"`
	VolumeRatio float64            `json:"volume_ratio"` // 最新量相对此前20根均量
	RangePos    float64            `json:"range_pos"`    // 收盘价在30根区间中的位置 [0,1]

	// Insufficient K线不足required bars时为true，全部指标为中性占位值
	Insufficient bool `json:"insufficient"`
}

// Calculate 计算指标快照，数据不足时返回中性占位结果而不是报错
func (s *IndicatorService) Calculate(frame *market.Frame, requiredBars int) *Indicators {
	ind := &Indicators{
		RSI14:       50,
		MACD:        ta.MACDResult{Crossover: ta.CrossoverNone},
		EMAStack:    ta.StackNeutral,
		Bollinger:   ta.BollingerResult{PctB: 0.5},
		VolumeRatio: 1,
		RangePos:    0.5,
	}
	if frame == nil {
		ind.Insufficient = true
		return ind
	}

	ind.Timeframe = frame.Timeframe
	if last := frame.Last(); last != nil {
		ind.Price = last.Close
	}

	if len(frame.Candles) < requiredBars {
		ind.Insufficient = true
		return ind
	}

	closes := frame.Closes()
	highs := frame.Highs()
	lows := frame.Lows()
	volumes := frame.Volumes()

	ind.RSI14 = ta.RSI(closes, 14)
	ind.MACD = ta.MACD(closes)
	ind.EMAStack = ta.EMAStack(closes)
	ind.Bollinger = ta.Bollinger(closes, 20, 2)
	ind.ATR14 = ta.ATR(highs, lows, closes, 14)
	ind.VolumeRatio = ta.VolumeRatio(volumes)
	ind.RangePos = ta.RangePos(highs, lows, ind.Price, 30)

	return ind
}

// Validate 验证指标数据质量
func (s *IndicatorService) Validate(ind *Indicators) []string {
	issues := make([]string, 0)

	if ind.Price <= 0 {
		issues = append(issues, "invalid price")
	}
	if ind.RSI14 < 0 || ind.RSI14 > 100 {
		issues = append(issues, "RSI14 out of range")
	}
	if ind.Bollinger.PctB < 0 || ind.Bollinger.PctB > 1 {
		issues = append(issues, "pct_b out of range")
	}
	if ind.RangePos < 0 || ind.RangePos > 1 {
		issues = append(issues, "range_pos out of range")
	}
	if ind.VolumeRatio < 0 {
		issues = append(issues, "negative volume ratio")
	}

	return issues
}
