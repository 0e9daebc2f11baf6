package service

import (
	"math"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
)

// 形态强度
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// PatternService K线形态与拉盘/砸盘检测服务
type PatternService struct{}

// NewPatternService 创建形态检测服务
func NewPatternService() *PatternService {
	return &PatternService{}
}

// PatternFlags 单个时间框架的形态标记
type PatternFlags struct {
	Doji             bool   `json:"doji"`
	Hammer           bool   `json:"hammer"`
	ShootingStar     bool   `json:"shooting_star"`
	BullishEngulfing bool   `json:"bullish_engulfing"`
	BearishEngulfing bool   `json:"bearish_engulfing"`
	CandleStrength   string `json:"candle_strength"` // weak/medium/strong

	PumpActive   bool `json:"pump_active"`
	PostPumpDump bool `json:"post_pump_dump"`
	PumpRisk     int  `json:"pump_risk"` // [0,100]

	OverboughtZone  bool `json:"overbought_zone"`
	OversoldZone    bool `json:"oversold_zone"`
	DowntrendActive bool `json:"downtrend_active"`
}

// StrongBullishCandle 是否出现强看涨K线形态
func (p *PatternFlags) StrongBullishCandle() bool {
	return p.CandleStrength == StrengthStrong && (p.BullishEngulfing || p.Hammer)
}

// StrongBearishCandle 是否出现强看跌K线形态
func (p *PatternFlags) StrongBearishCandle() bool {
	return p.CandleStrength == StrengthStrong && (p.BearishEngulfing || p.ShootingStar)
}

// Detect 检测K线形态与拉盘风险
func (s *PatternService) Detect(frame *market.Frame, rangePos float64) *PatternFlags {
	flags := &PatternFlags{CandleStrength: StrengthWeak}
	if frame == nil || len(frame.Candles) == 0 {
		return flags
	}

	s.detectCandlePatterns(frame, flags)
	drawdown := s.detectPumpDump(frame, flags)

	// 区间位置判定
	flags.OverboughtZone = rangePos > 0.85
	flags.OversoldZone = rangePos < 0.15
	flags.DowntrendActive = drawdown > 0.15 && rangePos < 0.5

	return flags
}

// detectCandlePatterns 检测最近K线的经典形态
func (s *PatternService) detectCandlePatterns(frame *market.Frame, flags *PatternFlags) {
	candles := frame.Candles
	curr := candles[len(candles)-1]

	body := math.Abs(curr.Close - curr.Open)
	candleRange := curr.High - curr.Low
	upperWick := curr.High - math.Max(curr.Open, curr.Close)
	lowerWick := math.Min(curr.Open, curr.Close) - curr.Low

	if candleRange > 0 {
		if body/candleRange < 0.10 {
			flags.Doji = true
		}
		if body/candleRange > 0.7 {
			flags.CandleStrength = StrengthStrong
		} else {
			flags.CandleStrength = StrengthMedium
		}
	}

	if body > 0 {
		if lowerWick > 2*body && upperWick < 0.5*body && curr.Close > curr.Open {
			flags.Hammer = true
		}
		if upperWick > 2*body && lowerWick < 0.5*body && curr.Close < curr.Open {
			flags.ShootingStar = true
		}
	}

	if len(candles) >= 2 {
		prev := candles[len(candles)-2]
		prevBody := math.Abs(prev.Close - prev.Open)

		if prev.Close < prev.Open && curr.Close > curr.Open &&
			body > 1.5*prevBody &&
			curr.Open <= prev.Close && curr.Close >= prev.Open {
			flags.BullishEngulfing = true
		}
		if prev.Close > prev.Open && curr.Close < curr.Open &&
			body > 1.5*prevBody &&
			curr.Open >= prev.Close && curr.Close <= prev.Open {
			flags.BearishEngulfing = true
		}
	}
}

// detectPumpDump 基于最近约24根K线判定拉盘与砸盘风险，返回从近期高点的回撤幅度
func (s *PatternService) detectPumpDump(frame *market.Frame, flags *PatternFlags) float64 {
	candles := frame.Candles
	if len(candles) < 10 {
		return 0
	}

	window := candles
	if len(window) > 24 {
		window = window[len(window)-24:]
	}

	volumes := make([]float64, len(window))
	highs := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		volumes[i] = c.Volume
		highs[i] = c.High
		closes[i] = c.Close
	}

	// 最近5根的量能峰值相对之前均量
	recent := volumes[len(volumes)-5:]
	prior := volumes[:len(volumes)-5]
	volumeSpike := 0.0
	if avg := ta.Mean(prior); avg > 0 {
		volumeSpike = ta.Highest(recent, len(recent)) / avg
	}

	closePrice := closes[len(closes)-1]
	priceChange5 := 0.0
	if base := closes[len(closes)-6]; base > 0 {
		priceChange5 = (closePrice - base) / base
	}

	pumpRisk := 0
	if volumeSpike > 3 && priceChange5 > 0.15 {
		flags.PumpActive = true
		pumpRisk = 80
	} else if volumeSpike > 2 && priceChange5 > 0.10 {
		flags.PumpActive = true
		pumpRisk = 60
	}

	// 从近期高点的回撤
	recentHigh := ta.Highest(highs, len(highs))
	drawdown := 0.0
	if recentHigh > 0 {
		drawdown = (recentHigh - closePrice) / recentHigh
	}

	dumpRisk := 0
	if drawdown > 0.15 && volumeSpike > 1.5 {
		flags.PostPumpDump = true
		dumpRisk = 70
	} else if drawdown > 0.10 {
		flags.PostPumpDump = true
		dumpRisk = 50
	}

	if dumpRisk > pumpRisk {
		flags.PumpRisk = dumpRisk
	} else {
		flags.PumpRisk = pumpRisk
	}

	return drawdown
}
