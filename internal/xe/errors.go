package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams  = orz.NewError(10400, "参数无效")
	ErrSymbolNotFound = orz.NewError(10404, "币种不存在或无行情数据")
	ErrAnalysisFailed = orz.NewError(10500, "分析执行失败")
	ErrScanInProgress = orz.NewError(10001, "扫描任务正在执行中")
)
