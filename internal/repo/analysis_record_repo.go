package repo

import (
	"context"
	"time"

	"github.com/go-orz/orz"
	"github.com/luoxq/beacon/internal/models"
	"gorm.io/gorm"
)

func NewAnalysisRecordRepo(db *gorm.DB) *AnalysisRecordRepo {
	return &AnalysisRecordRepo{
		Repository: orz.NewRepository[models.AnalysisRecord, string](db),
	}
}

type AnalysisRecordRepo struct {
	orz.Repository[models.AnalysisRecord, string]
}

// FindRecentBySymbol 查找指定币种最近的分析快照
func (r AnalysisRecordRepo) FindRecentBySymbol(ctx context.Context, symbol string, limit int) ([]models.AnalysisRecord, error) {
	var records []models.AnalysisRecord
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// FindRecent 查找最近的分析快照
func (r AnalysisRecordRepo) FindRecent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	var records []models.AnalysisRecord
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteOlderThan 删除早于保留窗口的分析快照
func (r AnalysisRecordRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.GetDB(ctx)
	result := db.Where("created_at < ?", cutoff).Delete(&models.AnalysisRecord{})
	return result.RowsAffected, result.Error
}
