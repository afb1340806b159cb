/*
 * @module service/satellite/health_classifier
 * @description 健康分级器：将连续指数值映射为定性健康等级，将胁迫级别映射为展示权重和颜色
 * @architecture 分层架构 - 领域计算层（纯函数，确定且全域）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 指数值输入 -> 单调阶梯分级 -> 等级与展示权重输出
 * @rules 分级函数对任意实数输入有定义，不校验物理取值范围；物理越界值按阶梯函数正常落档
 * @dependencies cropwatch-service/service/meta
 * @refs service/satellite/trend_aggregator.go
 */

package satellite

import (
	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
)

// ClassifiedIndex 指数分级结果
type ClassifiedIndex struct {
	Kind   meta.IndexKind  `json:"kind"`
	Value  float64         `json:"value"`
	Band   meta.HealthBand `json:"band"`
	Weight int             `json:"weight"` // 展示权重，等级越好权重越高
	Color  string          `json:"color"`
}

// ClassifyIndex 将指数值映射为健康等级
// 单调阶梯函数：>0.7 优 / >0.5 良 / >0.3 中 / >0.1 差 / 其余 危急
// 对任意实数输入有定义（NaN 落入兜底分支），不抛出越界错误
func ClassifyIndex(kind meta.IndexKind, value float64) ClassifiedIndex {
	var band meta.HealthBand
	switch {
	case value > 0.7:
		band = meta.BandExcellent
	case value > 0.5:
		band = meta.BandGood
	case value > 0.3:
		band = meta.BandFair
	case value > 0.1:
		band = meta.BandPoor
	default:
		band = meta.BandCritical
	}

	return ClassifiedIndex{
		Kind:   kind,
		Value:  value,
		Band:   band,
		Weight: BandWeight(band),
		Color:  band.Color(),
	}
}

// ClassifyOptionalIndex 对可选指数值分级
// 调用方要求必须分级而值缺失时返回 out_of_range 类型错误
func ClassifyOptionalIndex(kind meta.IndexKind, value *float64) (ClassifiedIndex, error) {
	if value == nil {
		return ClassifiedIndex{}, apperrors.OutOfRange(string(kind), "指数值缺失，无法完成分级")
	}
	return ClassifyIndex(kind, *value), nil
}

// BandWeight 健康等级的展示权重
func BandWeight(band meta.HealthBand) int {
	switch band {
	case meta.BandExcellent:
		return 5
	case meta.BandGood:
		return 4
	case meta.BandFair:
		return 3
	case meta.BandPoor:
		return 2
	case meta.BandCritical:
		return 1
	default:
		return 0
	}
}

// ClassifiedStress 胁迫级别分级结果
type ClassifiedStress struct {
	Level meta.StressLevel `json:"level"`
	Rank  int              `json:"rank"`
	Color string           `json:"color"`
}

// ClassifyStressLevel 胁迫级别直通映射
// 不做计算，低/中/高直接映射为排序权重和颜色，未识别的级别映射为 unknown
func ClassifyStressLevel(level string) ClassifiedStress {
	mapped := meta.StressUnknown
	switch meta.StressLevel(level) {
	case meta.StressLow:
		mapped = meta.StressLow
	case meta.StressMedium:
		mapped = meta.StressMedium
	case meta.StressHigh:
		mapped = meta.StressHigh
	}

	return ClassifiedStress{
		Level: mapped,
		Rank:  mapped.Rank(),
		Color: mapped.Color(),
	}
}
