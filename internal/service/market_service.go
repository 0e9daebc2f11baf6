package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/luoxq/beacon/pkg/cache"
	"github.com/luoxq/beacon/pkg/market"
	"go.uber.org/zap"
)

// MarketSource 行情数据端口，分析与验证流程只依赖该接口
type MarketSource interface {
	GetFrame(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) (*market.Frame, error)
	GetTicker(ctx context.Context, symbol string) (*market.Ticker, error)
}

// MarketService 行情数据服务，本地市场优先、全局市场兜底
type MarketService struct {
	logger *zap.Logger

	venues       []market.Venue // 依优先级排列
	frameCache   *cache.TTLCache
	frameTTL     time.Duration
	requiredBars int
}

var _ MarketSource = (*MarketService)(nil)

// NewMarketService 创建行情数据服务
func NewMarketService(venues []market.Venue, frameTTL time.Duration, requiredBars int, logger *zap.Logger) *MarketService {
	return &MarketService{
		logger:       logger,
		venues:       venues,
		frameCache:   cache.NewTTLCache(),
		frameTTL:     frameTTL,
		requiredBars: requiredBars,
	}
}

// GetFrame 获取指定 (symbol, timeframe) 的K线帧
// 任何网络错误、限流或空载荷都降级为 ErrInsufficientData，从不向上抛出
func (s *MarketService) GetFrame(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) (*market.Frame, error) {
	cacheKey := fmt.Sprintf("frame:%s:%s", symbol, timeframe)
	if cached, ok := s.frameCache.Get(cacheKey); ok {
		return cached.(*market.Frame), nil
	}

	notListed := 0
	for _, venue := range s.venues {
		candles, err := venue.GetKlines(ctx, symbol, timeframe, limit)
		if err != nil {
			if errors.Is(err, market.ErrSymbolNotListed) {
				notListed++
			}
			s.logger.Warn("failed to get klines",
				zap.String("venue", venue.Name()),
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe.String()),
				zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		valid := s.validateCandles(symbol, timeframe, candles)
		if len(valid) < s.requiredBars {
			s.logger.Warn("not enough candles",
				zap.String("venue", venue.Name()),
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe.String()),
				zap.Int("got", len(valid)),
				zap.Int("required", s.requiredBars))
			continue
		}

		frame := &market.Frame{
			Symbol:    symbol,
			Timeframe: timeframe,
			Candles:   valid,
			Venue:     venue.Name(),
		}
		s.frameCache.Set(cacheKey, frame, s.frameTTL)
		return frame, nil
	}

	// 全部来源都查不到该交易对时按币种不存在处理
	if len(s.venues) > 0 && notListed == len(s.venues) {
		return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotListed, symbol)
	}
	return nil, fmt.Errorf("%w: %s %s", market.ErrInsufficientData, symbol, timeframe)
}

// validateCandles 丢弃非法K线并记录日志
func (s *MarketService) validateCandles(symbol string, timeframe market.Timeframe, candles []*market.Candle) []*market.Candle {
	valid := make([]*market.Candle, 0, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			s.logger.Warn("dropping invalid candle",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe.String()),
				zap.Time("open_time", c.OpenTime),
				zap.Error(err))
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// GetTicker 获取指定币种的行情快照，来源不可用时逐级降级
func (s *MarketService) GetTicker(ctx context.Context, symbol string) (*market.Ticker, error) {
	for _, venue := range s.venues {
		ticker, err := venue.GetTicker(ctx, symbol)
		if err != nil {
			s.logger.Warn("failed to get ticker",
				zap.String("venue", venue.Name()),
				zap.String("symbol", symbol),
				zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return ticker, nil
	}

	return nil, fmt.Errorf("%w: ticker %s", market.ErrInsufficientData, symbol)
}

// GetAllPairs 获取主要来源所有有流动性的币种行情，按成交量降序排列
func (s *MarketService) GetAllPairs(ctx context.Context) ([]*market.Ticker, error) {
	for _, venue := range s.venues {
		tickers, err := venue.GetAllTickers(ctx)
		if err != nil {
			s.logger.Warn("failed to list tickers",
				zap.String("venue", venue.Name()),
				zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		liquid := make([]*market.Ticker, 0, len(tickers))
		for _, t := range tickers {
			if t.Price > 0 && t.Volume > 0 {
				liquid = append(liquid, t)
			}
		}
		sort.Slice(liquid, func(i, j int) bool {
			return liquid[i].Volume > liquid[j].Volume
		})
		return liquid, nil
	}

	return nil, fmt.Errorf("%w: pair list", market.ErrVenueUnavailable)
}
