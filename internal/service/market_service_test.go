package service

import (
	"context"
	"testing"
	"time"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubVenue 测试用行情来源
type stubVenue struct {
	name       string
	candles    []*market.Candle
	klinesErr  error
	ticker     *market.Ticker
	tickerErr  error
	allTickers []*market.Ticker

	klinesCalls int
}

var _ market.Venue = (*stubVenue)(nil)

func (v *stubVenue) Name() string { return v.name }

func (v *stubVenue) GetKlines(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) ([]*market.Candle, error) {
	v.klinesCalls++
	if v.klinesErr != nil {
		return nil, v.klinesErr
	}
	return v.candles, nil
}

func (v *stubVenue) GetTicker(ctx context.Context, symbol string) (*market.Ticker, error) {
	if v.tickerErr != nil {
		return nil, v.tickerErr
	}
	return v.ticker, nil
}

func (v *stubVenue) GetAllTickers(ctx context.Context) ([]*market.Ticker, error) {
	if v.tickerErr != nil {
		return nil, v.tickerErr
	}
	return v.allTickers, nil
}

func validCandles(n int) []*market.Candle {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*market.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = &market.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	return out
}

func newTestMarketService(venues ...market.Venue) *MarketService {
	return NewMarketService(venues, time.Minute, 26, zap.NewNop())
}

func TestGetFrame_PrimaryVenue(t *testing.T) {
	primary := &stubVenue{name: "primary", candles: validCandles(30)}
	fallback := &stubVenue{name: "fallback", candles: validCandles(30)}
	s := newTestMarketService(primary, fallback)

	frame, err := s.GetFrame(context.Background(), "BTC", market.Timeframe1h, 60)
	require.NoError(t, err)
	assert.Equal(t, "primary", frame.Venue)
	assert.Len(t, frame.Candles, 30)
	assert.Equal(t, 0, fallback.klinesCalls)
}

func TestGetFrame_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := &stubVenue{name: "primary", klinesErr: market.ErrVenueUnavailable}
	fallback := &stubVenue{name: "fallback", candles: validCandles(30)}
	s := newTestMarketService(primary, fallback)

	frame, err := s.GetFrame(context.Background(), "BTC", market.Timeframe1h, 60)
	require.NoError(t, err)
	assert.Equal(t, "fallback", frame.Venue)
}

func TestGetFrame_DropsInvalidCandles(t *testing.T) {
	candles := validCandles(30)
	// 5根非法K线，剩余25根低于最低要求26
	for i := 0; i < 5; i++ {
		candles[i].Close = -1
	}
	venue := &stubVenue{name: "only", candles: candles}
	s := newTestMarketService(venue)

	_, err := s.GetFrame(context.Background(), "BTC", market.Timeframe1h, 60)
	assert.ErrorIs(t, err, market.ErrInsufficientData)
}

func TestGetFrame_CachesResult(t *testing.T) {
	venue := &stubVenue{name: "only", candles: validCandles(30)}
	s := newTestMarketService(venue)
	ctx := context.Background()

	_, err := s.GetFrame(ctx, "BTC", market.Timeframe1h, 60)
	require.NoError(t, err)
	_, err = s.GetFrame(ctx, "BTC", market.Timeframe1h, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, venue.klinesCalls)

	// 不同时间框架各自独立缓存
	_, err = s.GetFrame(ctx, "BTC", market.Timeframe4h, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, venue.klinesCalls)
}

func TestGetFrame_AllVenuesReportNotListed(t *testing.T) {
	a := &stubVenue{name: "a", klinesErr: market.ErrSymbolNotListed}
	b := &stubVenue{name: "b", klinesErr: market.ErrSymbolNotListed}
	s := newTestMarketService(a, b)

	_, err := s.GetFrame(context.Background(), "NOPE", market.Timeframe1h, 60)
	assert.ErrorIs(t, err, market.ErrSymbolNotListed)
}

func TestGetFrame_MixedErrorsDegradeToInsufficient(t *testing.T) {
	a := &stubVenue{name: "a", klinesErr: market.ErrSymbolNotListed}
	b := &stubVenue{name: "b", klinesErr: market.ErrVenueUnavailable}
	s := newTestMarketService(a, b)

	_, err := s.GetFrame(context.Background(), "BTC", market.Timeframe1h, 60)
	assert.ErrorIs(t, err, market.ErrInsufficientData)
}

func TestGetTicker_Fallback(t *testing.T) {
	primary := &stubVenue{name: "primary", tickerErr: market.ErrVenueUnavailable}
	fallback := &stubVenue{name: "fallback", ticker: &market.Ticker{Symbol: "BTC", Price: 100, Venue: "fallback"}}
	s := newTestMarketService(primary, fallback)

	ticker, err := s.GetTicker(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "fallback", ticker.Venue)

	s = newTestMarketService(&stubVenue{name: "down", tickerErr: market.ErrVenueUnavailable})
	_, err = s.GetTicker(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestGetAllPairs_FiltersAndSorts(t *testing.T) {
	venue := &stubVenue{name: "only", allTickers: []*market.Ticker{
		{Symbol: "AAA", Price: 1, Volume: 10},
		{Symbol: "BBB", Price: 2, Volume: 500},
		{Symbol: "DEAD", Price: 0, Volume: 100},
		{Symbol: "IDLE", Price: 3, Volume: 0},
	}}
	s := newTestMarketService(venue)

	pairs, err := s.GetAllPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "BBB", pairs[0].Symbol)
	assert.Equal(t, "AAA", pairs[1].Symbol)
}
