package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/luoxq/beacon/internal/service"
	"github.com/luoxq/beacon/internal/xe"
	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/nostd"
	"go.uber.org/zap"
)

// AnalysisHandler 信号分析HTTP处理器
type AnalysisHandler struct {
	scanLoop         *service.ScanLoop
	analyzerService  *service.AnalyzerService
	trackerService   *service.TrackerService
	marketService    *service.MarketService
	sentimentService *service.SentimentService
	logger           *zap.Logger

	scanning atomic.Bool
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(
	scanLoop *service.ScanLoop,
	analyzerService *service.AnalyzerService,
	trackerService *service.TrackerService,
	marketService *service.MarketService,
	sentimentService *service.SentimentService,
	logger *zap.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		scanLoop:         scanLoop,
		analyzerService:  analyzerService,
		trackerService:   trackerService,
		marketService:    marketService,
		sentimentService: sentimentService,
		logger:           logger,
	}
}

// GetAnalysis 对单个币种执行综合分析
// GET /api/analysis/:symbol
func (h *AnalysisHandler) GetAnalysis(c echo.Context) error {
	ctx := c.Request().Context()

	symbol := nostd.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		return xe.ErrInvalidParams
	}

	analysis, err := h.analyzerService.Analyze(ctx, symbol)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotListed) {
			return xe.ErrSymbolNotFound
		}
		h.logger.Error("analysis failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return xe.ErrAnalysisFailed
	}

	return c.JSON(http.StatusOK, analysis)
}

// Scan 立即扫描全部配置币种，同一时刻只允许一次扫描
// POST /api/scan
func (h *AnalysisHandler) Scan(c echo.Context) error {
	ctx := c.Request().Context()

	if !h.scanning.CompareAndSwap(false, true) {
		return xe.ErrScanInProgress
	}
	defer h.scanning.Store(false)

	results, err := h.analyzerService.ScanAll(ctx)
	if err != nil {
		h.logger.Error("scan failed", zap.Error(err))
		return xe.ErrAnalysisFailed
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// GetPredictions 获取最近的预测记录
// GET /api/predictions?limit=20
func (h *AnalysisHandler) GetPredictions(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	predictions, err := h.trackerService.RecentPredictions(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// GetHistory 获取币种最近的分析快照
// GET /api/history?symbol=BTC&limit=20
func (h *AnalysisHandler) GetHistory(c echo.Context) error {
	ctx := c.Request().Context()

	symbol := nostd.NormalizeSymbol(c.QueryParam("symbol"))
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}

	records, err := h.trackerService.RecentRecords(ctx, symbol, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// GetStats 获取预测准确率统计
// GET /api/stats?days=30
func (h *AnalysisHandler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	days := 30
	if d := c.QueryParam("days"); d != "" {
		fmt.Sscanf(d, "%d", &days)
	}

	stats, err := h.trackerService.Stats(ctx, days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, stats)
}

// GetPairs 获取可用币种列表，按成交量降序
// GET /api/pairs
func (h *AnalysisHandler) GetPairs(c echo.Context) error {
	ctx := c.Request().Context()

	pairs, err := h.marketService.GetAllPairs(ctx)
	if err != nil {
		h.logger.Error("failed to list pairs", zap.Error(err))
		return xe.ErrAnalysisFailed
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count": len(pairs),
		"pairs": pairs,
	})
}

// GetMarketState 获取市场情绪快照
// GET /api/market-state
func (h *AnalysisHandler) GetMarketState(c echo.Context) error {
	ctx := c.Request().Context()

	state := h.sentimentService.GetMarketState(ctx)
	return c.JSON(http.StatusOK, state)
}

// GetStatus 获取扫描循环状态
// GET /api/status
func (h *AnalysisHandler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"running":   h.scanLoop.IsRunning(),
		"iteration": h.scanLoop.Iteration(),
		"uptime":    h.scanLoop.Uptime().String(),
	})
}

// RegisterRoutes 注册路由
func (h *AnalysisHandler) RegisterRoutes(g *echo.Group) {
	// 查询接口
	g.GET("/analysis/:symbol", h.GetAnalysis)
	g.GET("/predictions", h.GetPredictions)
	g.GET("/history", h.GetHistory)
	g.GET("/stats", h.GetStats)
	g.GET("/pairs", h.GetPairs)
	g.GET("/market-state", h.GetMarketState)
	g.GET("/status", h.GetStatus)

	// 控制接口
	g.POST("/scan", h.Scan)
}
