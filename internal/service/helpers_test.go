package service

import (
	"context"
	"fmt"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/pkg/market"
)

// fixedClock 测试用固定时钟
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

// stubMarket 测试用行情端口
type stubMarket struct {
	frames     map[string]*market.Frame
	frameErr   error
	ticker     *market.Ticker
	tickerErr  error
	onGetFrame func()
}

var _ MarketSource = (*stubMarket)(nil)

func (s *stubMarket) GetFrame(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) (*market.Frame, error) {
	if s.onGetFrame != nil {
		s.onGetFrame()
	}
	frame, ok := s.frames[fmt.Sprintf("%s:%s", symbol, timeframe)]
	if !ok {
		if s.frameErr != nil {
			return nil, s.frameErr
		}
		return nil, market.ErrInsufficientData
	}
	return frame, nil
}

func (s *stubMarket) GetTicker(ctx context.Context, symbol string) (*market.Ticker, error) {
	if s.tickerErr != nil {
		return nil, s.tickerErr
	}
	if s.ticker != nil {
		return s.ticker, nil
	}
	return nil, market.ErrInsufficientData
}

// stubSentiment 测试用情绪端口
type stubSentiment struct {
	state *MarketState
}

var _ SentimentSource = (*stubSentiment)(nil)

func (s *stubSentiment) GetMarketState(ctx context.Context) *MarketState {
	if s.state != nil {
		return s.state
	}
	return &MarketState{FearGreedClass: FearGreedNeutral, Signals: []string{}}
}

// risingFrame 构造稳定上涨的K线帧，每根涨1，量恒定
func risingFrame(symbol string, tf market.Timeframe, bars int) *market.Frame {
	candles := make([]*market.Candle, bars)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < bars; i++ {
		open := price
		price++
		candles[i] = &market.Candle{
			OpenTime: base.Add(time.Duration(i) * tf.Duration()),
			Open:     open,
			High:     price + 0.1,
			Low:      open - 0.1,
			Close:    price,
			Volume:   100,
		}
	}
	return &market.Frame{Symbol: symbol, Timeframe: tf, Candles: candles, Venue: "test"}
}

func testConfig() *config.Config {
	conf := &config.Config{}
	if err := conf.Analyzer.Normalize(); err != nil {
		panic(err)
	}
	return conf
}
