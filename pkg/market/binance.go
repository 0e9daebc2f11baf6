package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

// BinanceVenue Binance期货行情来源，作为全局USD计价的备用数据源
type BinanceVenue struct {
	client *futures.Client
}

var _ Venue = (*BinanceVenue)(nil)

// NewBinanceVenue 创建Binance行情来源
func NewBinanceVenue(apiKey, secretKey, proxyURL string, testnet bool) *BinanceVenue {
	var client *futures.Client
	if proxyURL != "" {
		client = futures.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = futures.NewClient(apiKey, secretKey)
	}

	if testnet {
		futures.UseTestnet = true
	}

	return &BinanceVenue{client: client}
}

func (b *BinanceVenue) Name() string {
	return "binance"
}

// pair 基础资产映射为USDT永续交易对
func (b *BinanceVenue) pair(symbol string) string {
	return symbol + "USDT"
}

// GetKlines 获取K线数据
func (b *BinanceVenue) GetKlines(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]*Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(b.pair(symbol)).
		Interval(timeframe.String()).
		Limit(limit).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s %s: %v", ErrVenueUnavailable, symbol, timeframe, err)
	}

	result := make([]*Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, &Candle{
			OpenTime: time.Unix(k.OpenTime/1000, 0),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}

	return result, nil
}

// GetTicker 获取24小时行情快照
func (b *BinanceVenue) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	stats, err := b.client.NewListPriceChangeStatsService().
		Symbol(b.pair(symbol)).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("%w: binance ticker %s: %v", ErrVenueUnavailable, symbol, err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: %s on binance", ErrSymbolNotListed, symbol)
	}

	return b.toTicker(symbol, stats[0]), nil
}

// GetAllTickers 获取所有USDT永续交易对的行情快照
func (b *BinanceVenue) GetAllTickers(ctx context.Context) ([]*Ticker, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: binance tickers: %v", ErrVenueUnavailable, err)
	}

	result := make([]*Ticker, 0, len(stats))
	for _, s := range stats {
		symbol, ok := strings.CutSuffix(s.Symbol, "USDT")
		if !ok || symbol == "" {
			continue
		}
		result = append(result, b.toTicker(symbol, s))
	}

	return result, nil
}

func (b *BinanceVenue) toTicker(symbol string, s *futures.PriceChangeStats) *Ticker {
	price, _ := strconv.ParseFloat(s.LastPrice, 64)
	changePercent, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
	high, _ := strconv.ParseFloat(s.HighPrice, 64)
	low, _ := strconv.ParseFloat(s.LowPrice, 64)
	volume, _ := strconv.ParseFloat(s.QuoteVolume, 64)

	return &Ticker{
		Symbol:        symbol,
		Price:         price,
		ChangePercent: changePercent,
		High24h:       high,
		Low24h:        low,
		Volume:        volume,
		Venue:         b.Name(),
	}
}

// GetFundingRate 获取BTC永续资金费率（原始小数，0.0001 = 0.01%）
func (b *BinanceVenue) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	rates, err := b.client.NewFundingRateService().
		Symbol(b.pair(symbol)).
		Limit(1).
		Do(ctx)

	if err != nil {
		return 0, fmt.Errorf("%w: binance funding rate %s: %v", ErrVenueUnavailable, symbol, err)
	}
	if len(rates) == 0 {
		return 0, fmt.Errorf("no funding rate data for symbol %s", symbol)
	}

	rate, _ := strconv.ParseFloat(rates[0].FundingRate, 64)
	return rate, nil
}

// GetLongShortRatio 获取多空账户比
func (b *BinanceVenue) GetLongShortRatio(ctx context.Context, symbol string) (float64, error) {
	ratios, err := b.client.NewLongShortRatioService().
		Symbol(b.pair(symbol)).
		Period("5m").
		Limit(1).
		Do(ctx)

	if err != nil {
		return 0, fmt.Errorf("%w: binance long/short ratio %s: %v", ErrVenueUnavailable, symbol, err)
	}
	if len(ratios) == 0 {
		return 0, fmt.Errorf("no long/short ratio data for symbol %s", symbol)
	}

	ratio, _ := strconv.ParseFloat(ratios[0].LongShortRatio, 64)
	return ratio, nil
}
