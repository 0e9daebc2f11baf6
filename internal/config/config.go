package config

import (
	"fmt"
	"math"

	"github.com/luoxq/beacon/pkg/market"
)

type Config struct {
	Telegram TelegramConf `json:"telegram"`
	BtcTurk  BtcTurkConf  `json:"btcturk"`
	Binance  BinanceConf  `json:"binance"`
	News     NewsConf     `json:"news"`
	Analyzer AnalyzerConf `json:"analyzer"`
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type BtcTurkConf struct {
	Enabled  bool   `json:"enabled"`   // 是否启用本地市场优先数据源
	BaseURL  string `json:"base_url"`  // REST API地址，留空使用官方默认
	GraphURL string `json:"graph_url"` // K线graph API地址，留空使用官方默认
}

type BinanceConf struct {
	APIKey   string `json:"api_key"`
	Secret   string `json:"secret"`
	ProxyURL string `json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
	Testnet  bool   `json:"testnet"`   // 是否使用测试网
}

// NewsConf 可选的新闻情绪配置，token或LLM缺失时该能力自动关闭
type NewsConf struct {
	Enabled          bool    `json:"enabled"`
	CryptoPanicToken string  `json:"cryptopanic_token"` // CryptoPanic API令牌
	LLM              LlmConf `json:"llm"`
}

type LlmConf struct {
	BaseURL  string `json:"base_url"` // LLM API基础URL
	APIKey   string `json:"api_key"`  // LLM API密钥
	Model    string `json:"model"`    // 模型名称
	ProxyURL string `json:"proxy_url"`
}

type AnalyzerConf struct {
	Symbols                    []string           `json:"symbols"`                        // 扫描币种，如 ["BTC", "ETH"]
	ScanIntervalMinutes        int                `json:"scan_interval_minutes"`          // 扫描周期（分钟），默认15
	TimeframeWeights           map[string]float64 `json:"timeframe_weights"`              // 各时间框架权重，总和必须为1
	CacheTTLOhlcvSeconds       int                `json:"cache_ttl_ohlcv_seconds"`        // K线缓存TTL，默认60
	CacheTTLMarketStateSeconds int                `json:"cache_ttl_market_state_seconds"` // 市场状态缓存TTL，默认300
	PredictionHorizonHours     int                `json:"prediction_horizon_hours"`       // 预测验证周期（小时），默认24
	AccuracyWindowDays         int                `json:"accuracy_window_days"`           // 准确率统计窗口（天），默认7
	RetentionDays              int                `json:"retention_days"`                 // 预测记录保留天数，默认30
	RequiredBars               int                `json:"required_bars"`                  // 每个时间框架的最少K线数，默认26（MACD要求）
}

// 默认的时间框架权重
var defaultTimeframeWeights = map[string]float64{
	string(market.Timeframe15m): 0.15,
	string(market.Timeframe1h):  0.25,
	string(market.Timeframe4h):  0.35,
	string(market.Timeframe1d):  0.25,
}

// Normalize 填充缺省值并校验配置
func (c *AnalyzerConf) Normalize() error {
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTC", "ETH"}
	}
	if c.ScanIntervalMinutes <= 0 {
		c.ScanIntervalMinutes = 15
	}
	if len(c.TimeframeWeights) == 0 {
		c.TimeframeWeights = defaultTimeframeWeights
	}
	if c.CacheTTLOhlcvSeconds <= 0 {
		c.CacheTTLOhlcvSeconds = 60
	}
	if c.CacheTTLMarketStateSeconds <= 0 {
		c.CacheTTLMarketStateSeconds = 300
	}
	if c.PredictionHorizonHours <= 0 {
		c.PredictionHorizonHours = 24
	}
	if c.AccuracyWindowDays <= 0 {
		c.AccuracyWindowDays = 7
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.RequiredBars <= 0 {
		c.RequiredBars = 26
	}

	sum := 0.0
	for _, tf := range market.AllTimeframes {
		weight, ok := c.TimeframeWeights[string(tf)]
		if !ok {
			return fmt.Errorf("timeframe weight missing for %s", tf)
		}
		if weight < 0 {
			return fmt.Errorf("timeframe weight for %s must not be negative", tf)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("timeframe weights must sum to 1, got %.6f", sum)
	}

	return nil
}

// Weight 指定时间框架的权重
func (c *AnalyzerConf) Weight(tf market.Timeframe) float64 {
	return c.TimeframeWeights[string(tf)]
}
