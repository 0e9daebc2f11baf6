package market

import "context"

// Venue 行情来源接口，定义所有行情来源需要实现的方法
// symbol 参数统一使用基础资产名（如 "BTC"），由各实现映射为交易对字符串
type Venue interface {
	// Name 来源名称，用于日志与降级提示
	Name() string

	// GetKlines 获取K线数据，最新的在最后
	GetKlines(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]*Candle, error)

	// GetTicker 获取24小时行情快照
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetAllTickers 获取该来源所有交易对的行情快照
	GetAllTickers(ctx context.Context) ([]*Ticker, error)
}
