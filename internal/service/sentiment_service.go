package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/ta"
	"go.uber.org/zap"
)

const (
	fearGreedURL     = "https://api.alternative.me/fng/"
	coingeckoGlobal  = "https://api.coingecko.com/api/v3/global"
	sentimentSymbol  = "BTC" // 资金费率与多空比以BTC永续为市场代表
	fundingThreshold = 0.05  // 资金费率阈值（百分比）
)

// 恐惧贪婪指数分级
const (
	FearGreedExtremeFear  = "extreme_fear"
	FearGreedFear         = "fear"
	FearGreedNeutral      = "neutral"
	FearGreedGreed        = "greed"
	FearGreedExtremeGreed = "extreme_greed"
)

// SentimentSource 市场情绪端口
type SentimentSource interface {
	GetMarketState(ctx context.Context) *MarketState
}

// MarketState 全局市场情绪快照，各字段均可缺失
type MarketState struct {
	FearGreed       *float64  `json:"fear_greed"`        // [0,100]
	FearGreedClass  string    `json:"fear_greed_class"`  // extreme_fear/.../extreme_greed
	FundingRate     *float64  `json:"funding_rate"`      // BTC永续资金费率（百分比）
	LongShortRatio  *float64  `json:"long_short_ratio"`  // 多空账户比
	GlobalChange24h *float64  `json:"global_change_24h"` // 全市场市值24小时变化（百分比）
	SentimentScore  float64   `json:"sentiment_score"`   // [0,100]，50为中性
	Adjustment      float64   `json:"adjustment"`        // 叠加到综合评分的调整量
	Signals         []string  `json:"signals"`           // 触发的情绪信号说明
	FetchedAt       time.Time `json:"fetched_at"`
}

// SentimentService 市场情绪聚合服务
// 每个子项独立获取，缺失项直接退出公式而不使整体失败
type SentimentService struct {
	logger *zap.Logger

	binance    *market.BinanceVenue
	news       *NewsService
	httpClient *http.Client
	clock      Clock

	ttl      time.Duration
	lastLock sync.RWMutex
	last     *MarketState
}

var _ SentimentSource = (*SentimentService)(nil)

// NewSentimentService 创建市场情绪服务
func NewSentimentService(binance *market.BinanceVenue, news *NewsService, clock Clock, ttl time.Duration, logger *zap.Logger) *SentimentService {
	return &SentimentService{
		logger:     logger,
		binance:    binance,
		news:       news,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      clock,
		ttl:        ttl,
	}
}

// GetMarketState 获取市场情绪快照，带TTL缓存，从不失败
func (s *SentimentService) GetMarketState(ctx context.Context) *MarketState {
	s.lastLock.RLock()
	if s.last != nil && s.clock.Now().Sub(s.last.FetchedAt) < s.ttl {
		state := s.last
		s.lastLock.RUnlock()
		return state
	}
	s.lastLock.RUnlock()

	state := s.collect(ctx)

	s.lastLock.Lock()
	s.last = state
	s.lastLock.Unlock()

	return state
}

// collect 逐项收集情绪数据并计算调整量
func (s *SentimentService) collect(ctx context.Context) *MarketState {
	state := &MarketState{
		FearGreedClass: FearGreedNeutral,
		Signals:        make([]string, 0, 4),
		FetchedAt:      s.clock.Now(),
	}

	if fg, err := s.fetchFearGreed(ctx); err != nil {
		s.logger.Warn("failed to fetch fear & greed index", zap.Error(err))
	} else {
		state.FearGreed = &fg
		state.FearGreedClass = classifyFearGreed(fg)
	}

	if s.binance != nil {
		if rate, err := s.binance.GetFundingRate(ctx, sentimentSymbol); err != nil {
			s.logger.Warn("failed to fetch funding rate", zap.Error(err))
		} else {
			percent := rate * 100
			state.FundingRate = &percent
		}

		if ratio, err := s.binance.GetLongShortRatio(ctx, sentimentSymbol); err != nil {
			s.logger.Warn("failed to fetch long/short ratio", zap.Error(err))
		} else {
			state.LongShortRatio = &ratio
		}
	}

	if change, err := s.fetchGlobalChange(ctx); err != nil {
		s.logger.Warn("failed to fetch global market cap change", zap.Error(err))
	} else {
		state.GlobalChange24h = &change
	}

	s.applyAdjustment(state)

	if s.news != nil {
		if tone, err := s.news.HeadlineTone(ctx); err != nil {
			s.logger.Warn("failed to classify news tone", zap.Error(err))
		} else if tone != "" {
			state.Signals = append(state.Signals, tone)
		}
	}

	if state.FearGreed == nil && state.FundingRate == nil &&
		state.LongShortRatio == nil && state.GlobalChange24h == nil {
		state.Signals = append(state.Signals, "sentiment data unavailable")
	}

	return state
}

// applyAdjustment 依据各项情绪数据计算评分调整量
func (s *SentimentService) applyAdjustment(state *MarketState) {
	adj := 0.0

	if state.FearGreed != nil {
		adj += (*state.FearGreed - 50) / 5
		state.Signals = append(state.Signals,
			fmt.Sprintf("fear & greed %d (%s)", int(*state.FearGreed), state.FearGreedClass))
	}

	if state.FundingRate != nil {
		if *state.FundingRate > fundingThreshold {
			adj -= 10
			state.Signals = append(state.Signals, "high long exposure in perps")
		} else if *state.FundingRate < -fundingThreshold {
			adj += 10
			state.Signals = append(state.Signals, "short-heavy funding")
		}
	}

	if state.LongShortRatio != nil {
		if *state.LongShortRatio > 1.5 {
			adj -= 5
			state.Signals = append(state.Signals, "crowded long accounts")
		} else if *state.LongShortRatio < 0.7 {
			adj += 5
			state.Signals = append(state.Signals, "crowded short accounts")
		}
	}

	if state.GlobalChange24h != nil {
		if *state.GlobalChange24h > 3 {
			adj += 5
			state.Signals = append(state.Signals, "global market cap rising")
		} else if *state.GlobalChange24h < -3 {
			adj -= 5
			state.Signals = append(state.Signals, "global market cap falling")
		}
	}

	state.Adjustment = adj
	state.SentimentScore = ta.Clamp(50+adj, 0, 100)
}

// classifyFearGreed 恐惧贪婪指数分级
func classifyFearGreed(value float64) string {
	switch {
	case value <= 25:
		return FearGreedExtremeFear
	case value <= 45:
		return FearGreedFear
	case value <= 55:
		return FearGreedNeutral
	case value <= 75:
		return FearGreedGreed
	}
	return FearGreedExtremeGreed
}

// fetchFearGreed 获取恐惧贪婪指数
func (s *SentimentService) fetchFearGreed(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fearGreedURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fear & greed status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	if len(payload.Data) == 0 {
		return 0, fmt.Errorf("empty fear & greed payload")
	}

	value, err := strconv.ParseFloat(payload.Data[0].Value, 64)
	if err != nil {
		return 0, err
	}
	return ta.Clamp(value, 0, 100), nil
}

// fetchGlobalChange 获取全市场市值24小时变化
func (s *SentimentService) fetchGlobalChange(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coingeckoGlobal, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			MarketCapChangePercentage24hUSD float64 `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}

	return payload.Data.MarketCapChangePercentage24hUSD, nil
}
