package ta

import (
	talib "github.com/markcheno/go-talib"
)

// 指标计算全部为纯函数：输入数值序列，输出确定的结果
// 数据不足时返回文档化的中性值，从不报错

// EMA堆叠方向分类
const (
	StackBullishStrong = "bullish_strong"
	StackBullish       = "bullish"
	StackNeutral       = "neutral"
	StackBearish       = "bearish"
	StackBearishStrong = "bearish_strong"
)

// MACD交叉方向
const (
	CrossoverUp   = "up"
	CrossoverDown = "down"
	CrossoverNone = "none"
)

// RSI Wilder相对强弱指数，数据不足时返回中性值50
// 序列中不存在任何下跌（平均跌幅为0）时返回100
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	hasLoss := false
	for i := 1; i < len(closes); i++ {
		if closes[i] < closes[i-1] {
			hasLoss = true
			break
		}
	}
	if !hasLoss {
		return 100
	}
	out := talib.Rsi(closes, period)
	return Last(out, 0)
}

// EMA 指数移动平均，以首个值为种子，乘数 2/(period+1)
func EMA(series []float64, period int) []float64 {
	if len(series) == 0 {
		return nil
	}
	multiplier := 2.0 / float64(period+1)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = (series[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// MACDResult MACD计算结果
type MACDResult struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Hist      float64 `json:"hist"`
	Crossover string  `json:"crossover"` // up/down/none
}

// MACD 12/26/9，数据不足26根时返回中性结果
func MACD(closes []float64) MACDResult {
	if len(closes) < 26 {
		return MACDResult{Crossover: CrossoverNone}
	}

	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = ema12[i] - ema26[i]
	}
	signal := EMA(line, 9)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}

	crossover := CrossoverNone
	if len(hist) >= 2 {
		prev, curr := Last(hist, 1), Last(hist, 0)
		if prev < 0 && curr > 0 {
			crossover = CrossoverUp
		} else if prev > 0 && curr < 0 {
			crossover = CrossoverDown
		}
	}

	return MACDResult{
		Line:      Last(line, 0),
		Signal:    Last(signal, 0),
		Hist:      Last(hist, 0),
		Crossover: crossover,
	}
}

// EMAStack 通过EMA7/21/50的排列关系分类趋势方向
func EMAStack(closes []float64) string {
	if len(closes) < 50 {
		return StackNeutral
	}

	price := Last(closes, 0)
	ema7 := Last(EMA(closes, 7), 0)
	ema21 := Last(EMA(closes, 21), 0)
	ema50 := Last(EMA(closes, 50), 0)

	switch {
	case price > ema7 && ema7 > ema21 && ema21 > ema50:
		return StackBullishStrong
	case price > ema7 && ema7 > ema21:
		return StackBullish
	case price < ema7 && ema7 < ema21 && ema21 < ema50:
		return StackBearishStrong
	case price < ema7 && ema7 < ema21:
		return StackBearish
	}
	return StackNeutral
}

// BollingerResult 布林带计算结果
type BollingerResult struct {
	Upper float64 `json:"upper"`
	Mid   float64 `json:"mid"`
	Lower float64 `json:"lower"`
	PctB  float64 `json:"pct_b"` // 收盘价在带内的位置 [0,1]
}

// Bollinger 布林带，中轨SMA，上下轨 mid ± k·stdev
func Bollinger(closes []float64, period int, k float64) BollingerResult {
	if len(closes) == 0 {
		return BollingerResult{PctB: 0.5}
	}
	price := Last(closes, 0)
	if len(closes) < period {
		return BollingerResult{Upper: price, Mid: price, Lower: price, PctB: 0.5}
	}

	upper, mid, lower := talib.BBands(closes, period, k, k, talib.SMA)

	u, m, l := Last(upper, 0), Last(mid, 0), Last(lower, 0)
	pctB := 0.5
	if u > l {
		pctB = Clamp((price-l)/(u-l), 0, 1)
	}

	return BollingerResult{Upper: u, Mid: m, Lower: l, PctB: pctB}
}

// VolumeRatio 最新成交量相对此前至多20根的均量，均量为零时返回1
func VolumeRatio(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 1
	}
	prior := volumes[:len(volumes)-1]
	if len(prior) > 20 {
		prior = prior[len(prior)-20:]
	}
	avg := Mean(prior)
	if avg == 0 {
		return 1
	}
	return Last(volumes, 0) / avg
}

// RangePos 收盘价在最近 window 根K线高低区间中的位置，退化时返回0.5
func RangePos(highs, lows []float64, closePrice float64, window int) float64 {
	if len(highs) == 0 || len(lows) == 0 {
		return 0.5
	}
	maxHigh := Highest(highs, window)
	minLow := Lowest(lows, window)
	if maxHigh <= minLow {
		return 0.5
	}
	return Clamp((closePrice-minLow)/(maxHigh-minLow), 0, 1)
}

// ATR 平均真实波幅，数据不足时返回0
func ATR(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return 0
	}
	out := talib.Atr(highs, lows, closes, period)
	return Last(out, 0)
}
