package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisRecord 每次综合分析的持久化快照，供历史查询与告警回看
type AnalysisRecord struct {
	ID          string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Symbol      string         `gorm:"type:varchar(20);not null;index:idx_symbol_time" json:"symbol"`
	FinalScore  int            `gorm:"not null" json:"final_score"`          // 综合评分 [0,100]
	Action      string         `gorm:"type:varchar(16);not null" json:"action"`
	Alignment   string         `gorm:"type:varchar(8)" json:"alignment"`     // BULLISH/BEARISH/NONE
	Confidence  string         `gorm:"type:varchar(8)" json:"confidence"`    // HIGH/MEDIUM/LOW
	PumpRisk    int            `json:"pump_risk"`                            // 各时间框架的最大拉盘风险
	Price       float64        `json:"price"`                                // 分析时价格
	Subscores   datatypes.JSON `gorm:"type:json" json:"subscores"`           // 各时间框架子评分
	Signals     datatypes.JSON `gorm:"type:json" json:"signals"`             // 信号说明列表
	MarketState datatypes.JSON `gorm:"type:json" json:"market_state"`        // 市场情绪快照
	CreatedAt   time.Time      `gorm:"not null;index:idx_symbol_time" json:"created_at"`
}

// TableName 指定表名
func (AnalysisRecord) TableName() string {
	return "analysis_records"
}
