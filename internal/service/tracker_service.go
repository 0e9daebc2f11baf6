package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/luoxq/beacon/internal/models"
	"github.com/luoxq/beacon/internal/repo"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// 观望类建议验证时允许的横盘幅度
const sidewaysThreshold = 0.05

// TrackerService 预测追踪服务：落库、到期验证与准确率统计
type TrackerService struct {
	logger *zap.Logger

	predictionRepo *repo.PredictionRepo
	recordRepo     *repo.AnalysisRecordRepo
	marketSource   MarketSource
	clock          Clock
}

func NewTrackerService(
	predictionRepo *repo.PredictionRepo,
	recordRepo *repo.AnalysisRecordRepo,
	marketSource MarketSource,
	clock Clock,
	logger *zap.Logger,
) *TrackerService {
	return &TrackerService{
		logger:         logger,
		predictionRepo: predictionRepo,
		recordRepo:     recordRepo,
		marketSource:   marketSource,
		clock:          clock,
	}
}

// Record 落库一次分析结果：预测记录加分析快照
// 行情不可用时入场价为空，这类记录永远不会被验证
func (s *TrackerService) Record(ctx context.Context, analysis *Analysis, horizon time.Duration) (*models.Prediction, error) {
	now := s.clock.Now()

	var entryPrice *float64
	if analysis.Price > 0 {
		price := analysis.Price
		entryPrice = &price
	}

	prediction := models.Prediction{
		ID:            ulid.Make().String(),
		Symbol:        analysis.Symbol,
		Action:        analysis.Action,
		FinalScore:    analysis.FinalScore,
		Confidence:    analysis.Confidence,
		EntryPrice:    entryPrice,
		HorizonHours:  int(horizon.Hours()),
		EvaluateAfter: now.Add(horizon),
		Outcome:       models.OutcomePending,
		CreatedAt:     now,
	}
	if err := s.predictionRepo.Create(ctx, &prediction); err != nil {
		return nil, err
	}

	if err := s.saveSnapshot(ctx, analysis, now); err != nil {
		s.logger.Warn("failed to save analysis snapshot",
			zap.String("symbol", analysis.Symbol),
			zap.Error(err))
	}

	return &prediction, nil
}

func (s *TrackerService) saveSnapshot(ctx context.Context, analysis *Analysis, now time.Time) error {
	subscores, err := json.Marshal(analysis.Subscores)
	if err != nil {
		return err
	}
	signals, err := json.Marshal(analysis.Signals)
	if err != nil {
		return err
	}
	var marketState []byte
	if analysis.MarketState != nil {
		if marketState, err = json.Marshal(analysis.MarketState); err != nil {
			return err
		}
	}

	record := models.AnalysisRecord{
		ID:          ulid.Make().String(),
		Symbol:      analysis.Symbol,
		FinalScore:  analysis.FinalScore,
		Action:      analysis.Action,
		Alignment:   analysis.Alignment,
		Confidence:  analysis.Confidence,
		PumpRisk:    analysis.PumpRisk,
		Price:       analysis.Price,
		Subscores:   subscores,
		Signals:     signals,
		MarketState: marketState,
		CreatedAt:   now,
	}
	return s.recordRepo.Create(ctx, &record)
}

// VerifyDue 验证所有到期的预测，返回本轮验证的数量
// 只处理未验证的pending记录，重复调用不会改写已有结论
func (s *TrackerService) VerifyDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.predictionRepo.FindDue(ctx, now)
	if err != nil {
		return 0, err
	}

	verified := 0
	for i := range due {
		prediction := &due[i]
		ticker, err := s.marketSource.GetTicker(ctx, prediction.Symbol)
		if err != nil {
			// 行情暂不可用，留到下一轮再验证
			s.logger.Warn("verification deferred, ticker unavailable",
				zap.String("symbol", prediction.Symbol),
				zap.String("prediction", prediction.ID),
				zap.Error(err))
			continue
		}

		change := (ticker.Price - *prediction.EntryPrice) / *prediction.EntryPrice
		outcome := evaluateOutcome(prediction, change)

		exitPrice := ticker.Price
		prediction.ExitPrice = &exitPrice
		prediction.ActualChange = &change
		prediction.Outcome = outcome
		prediction.Verified = true
		prediction.VerifiedAt = &now
		if err := s.predictionRepo.UpdateById(ctx, prediction); err != nil {
			s.logger.Error("failed to update prediction",
				zap.String("prediction", prediction.ID),
				zap.Error(err))
			continue
		}

		verified++
		s.logger.Info("prediction verified",
			zap.String("symbol", prediction.Symbol),
			zap.String("action", prediction.Action),
			zap.Float64("change", change),
			zap.String("outcome", outcome))
	}

	return verified, nil
}

// evaluateOutcome 按建议方向判定预测结论
func evaluateOutcome(p *models.Prediction, change float64) string {
	switch {
	case p.IsBuySide():
		if change > 0 {
			return models.OutcomeCorrect
		}
		return models.OutcomeWrong
	case p.IsSellSide():
		if change < 0 {
			return models.OutcomeCorrect
		}
		return models.OutcomeWrong
	default:
		// WATCH/NEUTRAL 预期横盘
		if math.Abs(change) < sidewaysThreshold {
			return models.OutcomeCorrect
		}
		return models.OutcomePartial
	}
}

// AccuracyStats 滚动窗口内的预测准确率
type AccuracyStats struct {
	WindowDays int     `json:"window_days"`
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
	Wrong      int     `json:"wrong"`
	Partial    int     `json:"partial"`
	Pending    int     `json:"pending"`
	Accuracy   float64 `json:"accuracy"` // correct / (correct + wrong)

	BuyTotal    int     `json:"buy_total"`
	BuyCorrect  int     `json:"buy_correct"`
	BuyAccuracy float64 `json:"buy_accuracy"`

	SellTotal    int     `json:"sell_total"`
	SellCorrect  int     `json:"sell_correct"`
	SellAccuracy float64 `json:"sell_accuracy"`
}

// Stats 统计窗口内已验证预测的准确率，partial不计入准确率分母
func (s *TrackerService) Stats(ctx context.Context, windowDays int) (*AccuracyStats, error) {
	since := s.clock.Now().AddDate(0, 0, -windowDays)
	predictions, err := s.predictionRepo.FindVerifiedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	pending, err := s.predictionRepo.FindPending(ctx)
	if err != nil {
		return nil, err
	}

	stats := &AccuracyStats{
		WindowDays: windowDays,
		Pending:    len(pending),
	}
	for i := range predictions {
		p := &predictions[i]
		stats.Total++
		switch p.Outcome {
		case models.OutcomeCorrect:
			stats.Correct++
		case models.OutcomeWrong:
			stats.Wrong++
		case models.OutcomePartial:
			stats.Partial++
		}
		if p.IsBuySide() {
			stats.BuyTotal++
			if p.Outcome == models.OutcomeCorrect {
				stats.BuyCorrect++
			}
		}
		if p.IsSellSide() {
			stats.SellTotal++
			if p.Outcome == models.OutcomeCorrect {
				stats.SellCorrect++
			}
		}
	}

	if decided := stats.Correct + stats.Wrong; decided > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(decided)
	}
	if stats.BuyTotal > 0 {
		stats.BuyAccuracy = float64(stats.BuyCorrect) / float64(stats.BuyTotal)
	}
	if stats.SellTotal > 0 {
		stats.SellAccuracy = float64(stats.SellCorrect) / float64(stats.SellTotal)
	}
	return stats, nil
}

// RecentPredictions 查询最近创建的预测
func (s *TrackerService) RecentPredictions(ctx context.Context, limit int) ([]models.Prediction, error) {
	return s.predictionRepo.FindRecent(ctx, limit)
}

// RecentRecords 查询币种最近的分析快照
func (s *TrackerService) RecentRecords(ctx context.Context, symbol string, limit int) ([]models.AnalysisRecord, error) {
	if symbol == "" {
		return s.recordRepo.FindRecent(ctx, limit)
	}
	return s.recordRepo.FindRecentBySymbol(ctx, symbol, limit)
}

// Cleanup 清理保留期之外的历史数据，返回删除的行数
func (s *TrackerService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)
	removedPredictions, err := s.predictionRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removedRecords, err := s.recordRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return removedPredictions, err
	}
	return removedPredictions + removedRecords, nil
}
