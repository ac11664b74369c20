package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceAbsent 辅助集合或派生视图不存在/为空；调用方降级处理，不视为致命错误
var ErrSourceAbsent = errors.New("数据源不存在或为空")

// BulkResult 一次批量写入的结果；Written 只统计确认成功的行
type BulkResult struct {
	Attempted int
	Written   int
	Failed    []string // 写入失败的主键
}

// Add 累加另一批的结果
func (r *BulkResult) Add(o BulkResult) {
	r.Attempted += o.Attempted
	r.Written += o.Written
	r.Failed = append(r.Failed, o.Failed...)
}

// BatchWriteError 批量写入失败，对当前 ETL 运行是致命错误（不做部分重试）
type BatchWriteError struct {
	Collection string
	Result     BulkResult
	Err        error
}

func (e *BatchWriteError) Error() string {
	keys := e.Result.Failed
	if len(keys) > 5 {
		keys = keys[:5]
	}
	return fmt.Sprintf("批量写入 %s 失败：尝试 %d 行，成功 %d 行，失败 %d 行 [%s]: %v",
		e.Collection, e.Result.Attempted, e.Result.Written, len(e.Result.Failed), strings.Join(keys, ","), e.Err)
}

func (e *BatchWriteError) Unwrap() error { return e.Err }

// MeasurementPhase 测量阶段
type MeasurementPhase string

const (
	PhaseWarmup MeasurementPhase = "warmup"
	PhaseTrial  MeasurementPhase = "trial"
)

// MeasurementError 预热或任一次计时失败，本次基准测量不写入指标
type MeasurementError struct {
	QueryID string
	Variant Variant
	Phase   MeasurementPhase
	Trial   int
	Err     error
}

func (e *MeasurementError) Error() string {
	if e.Phase == PhaseWarmup {
		return fmt.Sprintf("测量 %s/%s 预热失败: %v", e.QueryID, e.Variant, e.Err)
	}
	return fmt.Sprintf("测量 %s/%s 第 %d 次计时失败: %v", e.QueryID, e.Variant, e.Trial, e.Err)
}

func (e *MeasurementError) Unwrap() error { return e.Err }
