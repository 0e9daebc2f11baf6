package market

import (
	"errors"
	"fmt"
	"time"
)

// 通用市场数据类型定义，独立于任何特定交易所
// 这样可以方便地支持多个行情来源（BtcTurk、币安等）

// Timeframe K线时间框架
type Timeframe string

const (
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// AllTimeframes 分析流程覆盖的全部时间框架，按从短到长排序
var AllTimeframes = []Timeframe{Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

func (t Timeframe) String() string {
	return string(t)
}

// Duration 时间框架对应的K线周期
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return time.Hour
}

// Candle K线数据
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Validate 校验K线数据的完整性，失败的K线会被丢弃
func (c *Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("%w: non-positive price", ErrInvalidCandle)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrInvalidCandle)
	}
	maxBody := c.Open
	if c.Close > maxBody {
		maxBody = c.Close
	}
	minBody := c.Open
	if c.Close < minBody {
		minBody = c.Close
	}
	if c.High < maxBody || c.Low > minBody {
		return fmt.Errorf("%w: high/low outside body range", ErrInvalidCandle)
	}
	return nil
}

// Frame 单个 (symbol, timeframe) 的K线序列，最新的在最后
type Frame struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Candles   []*Candle `json:"candles"`
	Venue     string    `json:"venue"`
}

// Closes 提取收盘价序列
func (f *Frame) Closes() []float64 {
	out := make([]float64, len(f.Candles))
	for i, c := range f.Candles {
		out[i] = c.Close
	}
	return out
}

// Highs 提取最高价序列
func (f *Frame) Highs() []float64 {
	out := make([]float64, len(f.Candles))
	for i, c := range f.Candles {
		out[i] = c.High
	}
	return out
}

// Lows 提取最低价序列
func (f *Frame) Lows() []float64 {
	out := make([]float64, len(f.Candles))
	for i, c := range f.Candles {
		out[i] = c.Low
	}
	return out
}

// Volumes 提取成交量序列
func (f *Frame) Volumes() []float64 {
	out := make([]float64, len(f.Candles))
	for i, c := range f.Candles {
		out[i] = c.Volume
	}
	return out
}

// Last 最新一根K线
func (f *Frame) Last() *Candle {
	if len(f.Candles) == 0 {
		return nil
	}
	return f.Candles[len(f.Candles)-1]
}

// Ticker 24小时行情快照，价格统一为USD计价
type Ticker struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	High24h       float64 `json:"high_24h"`
	Low24h        float64 `json:"low_24h"`
	Volume        float64 `json:"volume"`
	Venue         string  `json:"venue"`
}

// 市场数据层的错误定义，上层据此降级而不是抛出
var (
	ErrInsufficientData = errors.New("insufficient market data")
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrInvalidCandle    = errors.New("invalid candle")
	ErrSymbolNotListed  = errors.New("symbol not listed on venue")
)
