package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Variant 查询策略标签
type Variant string

const (
	VariantBaseline  Variant = "baseline"  // 实时全量聚合
	VariantOptimized Variant = "optimized" // 读物化视图，视图为空时走带索引的实时聚合
)

// ParseVariant 解析命令行/HTTP 参数中的策略标签
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantBaseline:
		return VariantBaseline, true
	case VariantOptimized:
		return VariantOptimized, true
	}
	return "", false
}

// RunMetric 一次基准测量的记录（run_metrics 表），只追加不修改
type RunMetric struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TS             time.Time      `gorm:"column:ts;type:timestamptz;not null;index:idx_run_metrics_ts" json:"ts"`
	DatasetVersion string         `gorm:"column:dataset_version;type:varchar(64)" json:"datasetVersion"`
	QueryID        string         `gorm:"column:query_id;type:varchar(64);not null;index:idx_run_metrics_query" json:"queryId"`
	Variant        Variant        `gorm:"column:variant;type:varchar(16);not null" json:"variant"`
	IndexSet       string         `gorm:"column:index_set;type:varchar(255)" json:"indexSet"`
	LogicHash      string         `gorm:"column:logic_hash;type:varchar(80)" json:"logicHash"`
	DurationMs     float64        `gorm:"column:ms;type:double precision;not null" json:"ms"`
	Trials         int            `gorm:"column:trials;type:int;not null" json:"trials"`
	ResultSample   datatypes.JSON `gorm:"column:result_sample;type:jsonb" json:"resultSample,omitempty"`
}

func (RunMetric) TableName() string { return "run_metrics" }
