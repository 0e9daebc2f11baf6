package service

import (
	"testing"
	"time"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/stretchr/testify/assert"
)

func frameOf(candles ...*market.Candle) *market.Frame {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range candles {
		c.OpenTime = base.Add(time.Duration(i) * time.Hour)
	}
	return &market.Frame{Symbol: "BTC", Timeframe: market.Timeframe1h, Candles: candles}
}

// flatCandles n根横盘K线，价格100附近小幅波动
func flatCandles(n int) []*market.Candle {
	out := make([]*market.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = &market.Candle{Open: 100, High: 100.5, Low: 99.5, Close: 100.2, Volume: 100}
	}
	return out
}

func TestDetect_EmptyFrame(t *testing.T) {
	s := NewPatternService()

	flags := s.Detect(nil, 0.5)
	assert.Equal(t, StrengthWeak, flags.CandleStrength)
	assert.Equal(t, 0, flags.PumpRisk)

	flags = s.Detect(&market.Frame{}, 0.5)
	assert.Equal(t, StrengthWeak, flags.CandleStrength)
}

func TestDetect_Doji(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(12)
	// 实体占区间不足10%
	candles[len(candles)-1] = &market.Candle{Open: 100, High: 102, Low: 98, Close: 100.1, Volume: 100}

	flags := s.Detect(frameOf(candles...), 0.5)
	assert.True(t, flags.Doji)
	assert.Equal(t, StrengthMedium, flags.CandleStrength)
}

func TestDetect_Hammer(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(12)
	// 长下影、短上影、收涨
	candles[len(candles)-1] = &market.Candle{Open: 100, High: 101.2, Low: 96, Close: 101, Volume: 100}

	flags := s.Detect(frameOf(candles...), 0.5)
	assert.True(t, flags.Hammer)
	assert.False(t, flags.ShootingStar)
}

func TestDetect_ShootingStar(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(12)
	candles[len(candles)-1] = &market.Candle{Open: 100, High: 104, Low: 98.9, Close: 99, Volume: 100}

	flags := s.Detect(frameOf(candles...), 0.5)
	assert.True(t, flags.ShootingStar)
	assert.False(t, flags.Hammer)
}

func TestDetect_BullishEngulfing(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(12)
	// 前一根小阴线，当前大阳线完全吞没
	candles[len(candles)-2] = &market.Candle{Open: 101, High: 101.5, Low: 99.5, Close: 100, Volume: 100}
	candles[len(candles)-1] = &market.Candle{Open: 99.5, High: 102.5, Low: 99, Close: 102.2, Volume: 100}

	flags := s.Detect(frameOf(candles...), 0.5)
	assert.True(t, flags.BullishEngulfing)
	assert.Equal(t, StrengthStrong, flags.CandleStrength)
	assert.True(t, flags.StrongBullishCandle())
}

func TestDetect_BearishEngulfing(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(12)
	candles[len(candles)-2] = &market.Candle{Open: 100, High: 101.5, Low: 99.5, Close: 101, Volume: 100}
	candles[len(candles)-1] = &market.Candle{Open: 101.5, High: 102, Low: 98.5, Close: 98.8, Volume: 100}

	flags := s.Detect(frameOf(candles...), 0.5)
	assert.True(t, flags.BearishEngulfing)
	assert.True(t, flags.StrongBearishCandle())
}

func TestDetect_PumpActive(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(24)
	// 最近5根量能放大4倍，价格拉升20%
	prices := []float64{102, 106, 110, 116, 120}
	for i := 0; i < 5; i++ {
		idx := len(candles) - 5 + i
		open := 100.0
		if i > 0 {
			open = prices[i-1]
		}
		candles[idx] = &market.Candle{Open: open, High: prices[i] + 1, Low: open - 1, Close: prices[i], Volume: 400}
	}

	flags := s.Detect(frameOf(candles...), 0.9)
	assert.True(t, flags.PumpActive)
	assert.Equal(t, 80, flags.PumpRisk)
	assert.True(t, flags.OverboughtZone)
}

func TestDetect_PostPumpDump(t *testing.T) {
	s := NewPatternService()

	candles := flatCandles(24)
	// 冲高至130后跌回105，从高点回撤约19%，近期量能放大
	candles[len(candles)-6] = &market.Candle{Open: 100, High: 130, Low: 99, Close: 128, Volume: 300}
	declines := []float64{120, 115, 110, 108, 105}
	for i := 0; i < 5; i++ {
		idx := len(candles) - 5 + i
		open := 128.0
		if i > 0 {
			open = declines[i-1]
		}
		candles[idx] = &market.Candle{Open: open, High: open + 1, Low: declines[i] - 1, Close: declines[i], Volume: 250}
	}

	flags := s.Detect(frameOf(candles...), 0.3)
	assert.True(t, flags.PostPumpDump)
	assert.Equal(t, 70, flags.PumpRisk)
	assert.True(t, flags.DowntrendActive)
}

func TestDetect_RangeZones(t *testing.T) {
	s := NewPatternService()
	frame := frameOf(flatCandles(12)...)

	assert.True(t, s.Detect(frame, 0.9).OverboughtZone)
	assert.True(t, s.Detect(frame, 0.1).OversoldZone)

	mid := s.Detect(frame, 0.5)
	assert.False(t, mid.OverboughtZone)
	assert.False(t, mid.OversoldZone)
}

func TestDetect_ShortHistorySkipsPumpCheck(t *testing.T) {
	s := NewPatternService()

	flags := s.Detect(frameOf(flatCandles(8)...), 0.5)
	assert.Equal(t, 0, flags.PumpRisk)
	assert.False(t, flags.PumpActive)
	assert.False(t, flags.PostPumpDump)
}
