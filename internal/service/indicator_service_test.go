package service

import (
	"testing"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_NilFrame(t *testing.T) {
	s := NewIndicatorService()

	ind := s.Calculate(nil, 26)
	assert.True(t, ind.Insufficient)
	assert.Equal(t, 50.0, ind.RSI14)
	assert.Equal(t, ta.StackNeutral, ind.EMAStack)
	assert.Equal(t, 0.5, ind.Bollinger.PctB)
	assert.Equal(t, 1.0, ind.VolumeRatio)
	assert.Equal(t, 0.5, ind.RangePos)
}

func TestCalculate_InsufficientBars(t *testing.T) {
	s := NewIndicatorService()
	frame := risingFrame("BTC", market.Timeframe1h, 20)

	ind := s.Calculate(frame, 26)
	assert.True(t, ind.Insufficient)
	assert.Equal(t, 50.0, ind.RSI14)
	// 价格仍然取最新收盘价
	assert.Greater(t, ind.Price, 0.0)
}

func TestCalculate_Uptrend(t *testing.T) {
	s := NewIndicatorService()
	frame := risingFrame("BTC", market.Timeframe1h, 60)

	ind := s.Calculate(frame, 26)
	assert.False(t, ind.Insufficient)
	assert.Equal(t, market.Timeframe1h, ind.Timeframe)
	assert.Greater(t, ind.RSI14, 70.0)
	assert.Greater(t, ind.MACD.Hist, 0.0)
	assert.Equal(t, ta.StackBullishStrong, ind.EMAStack)
	assert.Greater(t, ind.RangePos, 0.85)
	assert.Greater(t, ind.ATR14, 0.0)
	assert.Empty(t, s.Validate(ind))
}

func TestValidate_FlagsBadValues(t *testing.T) {
	s := NewIndicatorService()

	ind := &Indicators{
		Price:       -1,
		RSI14:       120,
		Bollinger:   ta.BollingerResult{PctB: 1.5},
		RangePos:    -0.2,
		VolumeRatio: -3,
	}
	issues := s.Validate(ind)
	assert.Len(t, issues, 5)
}
