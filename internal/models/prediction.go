package models

import (
	"time"
)

// 预测结论
const (
	OutcomePending = "pending"
	OutcomeCorrect = "correct"
	OutcomeWrong   = "wrong"
	OutcomePartial = "partial"
)

// Prediction 信号预测记录，到期后用最新价格验证
type Prediction struct {
	ID            string     `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Symbol        string     `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Action        string     `gorm:"type:varchar(16);not null" json:"action"`        // 创建时的操作建议
	FinalScore    int        `json:"final_score"`                                    // 创建时的综合评分
	Confidence    string     `gorm:"type:varchar(8)" json:"confidence"`              // 创建时的置信度
	EntryPrice    *float64   `json:"entry_price"`                                    // 创建时价格，行情不可用时为空且不参与验证
	HorizonHours  int        `gorm:"not null" json:"horizon_hours"`                  // 验证周期（小时）
	EvaluateAfter time.Time  `gorm:"not null;index" json:"evaluate_after"`           // 允许验证的最早时间
	Verified      bool       `gorm:"not null;default:false;index" json:"verified"`   // 验证后不可再变更
	ExitPrice     *float64   `json:"exit_price"`                                     // 验证时价格
	ActualChange  *float64   `json:"actual_change"`                                  // 实际涨跌幅
	Outcome       string     `gorm:"type:varchar(8);not null;index" json:"outcome"`  // pending/correct/wrong/partial
	VerifiedAt    *time.Time `json:"verified_at"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (Prediction) TableName() string {
	return "predictions"
}

// IsBuySide 是否为看多建议
func (p *Prediction) IsBuySide() bool {
	return p.Action == "STRONG_BUY" || p.Action == "BUY"
}

// IsSellSide 是否为看空建议
func (p *Prediction) IsSellSide() bool {
	return p.Action == "SELL" || p.Action == "AVOID"
}
