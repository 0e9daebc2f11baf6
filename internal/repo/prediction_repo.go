package repo

import (
	"context"
	"time"

	"github.com/go-orz/orz"
	"github.com/luoxq/beacon/internal/models"
	"gorm.io/gorm"
)

func NewPredictionRepo(db *gorm.DB) *PredictionRepo {
	return &PredictionRepo{
		Repository: orz.NewRepository[models.Prediction, string](db),
	}
}

type PredictionRepo struct {
	orz.Repository[models.Prediction, string]
}

// FindDue 查找到期且可验证的预测（有入场价的pending记录）
func (r PredictionRepo) FindDue(ctx context.Context, now time.Time) ([]models.Prediction, error) {
	var predictions []models.Prediction
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("verified = ? AND outcome = ? AND entry_price IS NOT NULL AND evaluate_after <= ?",
			false, models.OutcomePending, now).
		Order("evaluate_after ASC").
		Find(&predictions).Error
	return predictions, err
}

// FindPending 查找所有未验证的预测
func (r PredictionRepo) FindPending(ctx context.Context) ([]models.Prediction, error) {
	var predictions []models.Prediction
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("verified = ?", false).
		Order("created_at DESC").
		Find(&predictions).Error
	return predictions, err
}

// FindVerifiedSince 查找窗口内已验证的预测
func (r PredictionRepo) FindVerifiedSince(ctx context.Context, since time.Time) ([]models.Prediction, error) {
	var predictions []models.Prediction
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("verified = ? AND verified_at >= ?", true, since).
		Order("verified_at DESC").
		Find(&predictions).Error
	return predictions, err
}

// FindRecent 查找最近创建的预测
func (r PredictionRepo) FindRecent(ctx context.Context, limit int) ([]models.Prediction, error) {
	var predictions []models.Prediction
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("created_at DESC").
		Limit(limit).
		Find(&predictions).Error
	return predictions, err
}

// DeleteOlderThan 删除早于保留窗口的预测记录
func (r PredictionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.GetDB(ctx)
	result := db.Where("created_at < ?", cutoff).Delete(&models.Prediction{})
	return result.RowsAffected, result.Error
}
