package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	defaultBtcTurkBaseURL  = "https://api.btcturk.com"
	defaultBtcTurkGraphURL = "https://graph-api.btcturk.com"

	// USDTTRY汇率缓存有效期
	crossRateTTL = time.Minute
)

// BtcTurkVenue BtcTurk行情来源，本地市场优先数据源
// 交易对以TRY计价，对外输出统一换算为USD（通过USDTTRY汇率）
type BtcTurkVenue struct {
	baseURL  string
	graphURL string
	client   *http.Client

	crossRate     float64
	crossRateAt   time.Time
	crossRateLock sync.RWMutex
}

var _ Venue = (*BtcTurkVenue)(nil)

// NewBtcTurkVenue 创建BtcTurk行情来源
func NewBtcTurkVenue(baseURL, graphURL string, client *http.Client) *BtcTurkVenue {
	if baseURL == "" {
		baseURL = defaultBtcTurkBaseURL
	}
	if graphURL == "" {
		graphURL = defaultBtcTurkGraphURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &BtcTurkVenue{
		baseURL:  baseURL,
		graphURL: graphURL,
		client:   client,
	}
}

func (b *BtcTurkVenue) Name() string {
	return "btcturk"
}

// pair 基础资产映射为TRY交易对
func (b *BtcTurkVenue) pair(symbol string) string {
	return symbol + "TRY"
}

// resolution 时间框架映射为graph API的resolution参数
func (b *BtcTurkVenue) resolution(timeframe Timeframe) string {
	switch timeframe {
	case Timeframe15m:
		return "15"
	case Timeframe1h:
		return "60"
	case Timeframe4h:
		return "240"
	case Timeframe1d:
		return "1D"
	}
	return "60"
}

// klineHistory graph API返回的列式K线数据
type klineHistory struct {
	Status  string    `json:"s"`
	Times   []int64   `json:"t"`
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
}

// tickerResponse /api/v2/ticker 响应
type tickerResponse struct {
	Data []struct {
		Pair            string  `json:"pair"`
		PairNormalized  string  `json:"pairNormalized"`
		Last            float64 `json:"last"`
		High            float64 `json:"high"`
		Low             float64 `json:"low"`
		DailyPercent    float64 `json:"dailyPercent"`
		Volume          float64 `json:"volume"`
		DenominatorSym  string  `json:"denominatorSymbol"`
		NumeratorSymbol string  `json:"numeratorSymbol"`
	} `json:"data"`
	Success bool `json:"success"`
}

// GetKlines 获取K线数据，价格换算为USD
func (b *BtcTurkVenue) GetKlines(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]*Candle, error) {
	rate, err := b.usdtTryRate(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.Add(-time.Duration(limit+1) * timeframe.Duration())

	query := url.Values{}
	query.Set("symbol", b.pair(symbol))
	query.Set("resolution", b.resolution(timeframe))
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(now.Unix(), 10))

	var history klineHistory
	if err := b.getJSON(ctx, b.graphURL+"/v1/klines/history?"+query.Encode(), &history); err != nil {
		return nil, err
	}
	if history.Status != "ok" || len(history.Times) == 0 {
		return nil, fmt.Errorf("%w: %s on btcturk", ErrSymbolNotListed, symbol)
	}

	n := len(history.Times)
	result := make([]*Candle, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(history.Opens) || i >= len(history.Highs) ||
			i >= len(history.Lows) || i >= len(history.Closes) || i >= len(history.Volumes) {
			break
		}
		result = append(result, &Candle{
			OpenTime: time.Unix(history.Times[i], 0).UTC(),
			Open:     history.Opens[i] / rate,
			High:     history.Highs[i] / rate,
			Low:      history.Lows[i] / rate,
			Close:    history.Closes[i] / rate,
			Volume:   history.Volumes[i],
		})
	}

	if len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}

// GetTicker 获取24小时行情快照，价格换算为USD
func (b *BtcTurkVenue) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	rate, err := b.usdtTryRate(ctx)
	if err != nil {
		return nil, err
	}

	var resp tickerResponse
	query := "pairSymbol=" + url.QueryEscape(symbol+"_TRY")
	if err := b.getJSON(ctx, b.baseURL+"/api/v2/ticker?"+query, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s on btcturk", ErrSymbolNotListed, symbol)
	}

	d := resp.Data[0]
	return &Ticker{
		Symbol:        symbol,
		Price:         d.Last / rate,
		ChangePercent: d.DailyPercent,
		High24h:       d.High / rate,
		Low24h:        d.Low / rate,
		Volume:        d.Volume,
		Venue:         b.Name(),
	}, nil
}

// GetAllTickers 获取所有TRY交易对的行情快照，价格换算为USD
func (b *BtcTurkVenue) GetAllTickers(ctx context.Context) ([]*Ticker, error) {
	rate, err := b.usdtTryRate(ctx)
	if err != nil {
		return nil, err
	}

	var resp tickerResponse
	if err := b.getJSON(ctx, b.baseURL+"/api/v2/ticker", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: btcturk ticker list", ErrVenueUnavailable)
	}

	result := make([]*Ticker, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.DenominatorSym != "TRY" || d.NumeratorSymbol == "USDT" {
			continue
		}
		result = append(result, &Ticker{
			Symbol:        d.NumeratorSymbol,
			Price:         d.Last / rate,
			ChangePercent: d.DailyPercent,
			High24h:       d.High / rate,
			Low24h:        d.Low / rate,
			Volume:        d.Volume,
			Venue:         b.Name(),
		})
	}

	return result, nil
}

// usdtTryRate 获取USDTTRY汇率，带缓存
func (b *BtcTurkVenue) usdtTryRate(ctx context.Context) (float64, error) {
	b.crossRateLock.RLock()
	if b.crossRate > 0 && time.Since(b.crossRateAt) < crossRateTTL {
		rate := b.crossRate
		b.crossRateLock.RUnlock()
		return rate, nil
	}
	b.crossRateLock.RUnlock()

	var resp tickerResponse
	if err := b.getJSON(ctx, b.baseURL+"/api/v2/ticker?pairSymbol=USDT_TRY", &resp); err != nil {
		return 0, err
	}
	if !resp.Success || len(resp.Data) == 0 || resp.Data[0].Last <= 0 {
		return 0, fmt.Errorf("%w: no USDTTRY cross rate", ErrVenueUnavailable)
	}

	rate := resp.Data[0].Last

	b.crossRateLock.Lock()
	b.crossRate = rate
	b.crossRateAt = time.Now()
	b.crossRateLock.Unlock()

	return rate, nil
}

func (b *BtcTurkVenue) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: btcturk status %d", ErrVenueUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrVenueUnavailable, err)
	}

	return nil
}
