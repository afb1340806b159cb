/*
 * @module service/satellite/trend_aggregator
 * @description 趋势聚合器：按回看窗口过滤观测与评估序列，计算汇总统计和期间差值
 * @architecture 分层架构 - 领域计算层（纯函数，无副作用）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 序列过滤 -> 日期排序 -> 统计计算 -> 趋势差值
 * @rules 空输入不是错误，统计量退化为"无数据"哨兵；不足两条评估时趋势为未定义而非零，调用方必须能区分"无变化"与"数据不足"
 * @dependencies github.com/montanaflynn/stats, sort, time
 * @refs service/assessment/assessment_service.go
 */

package satellite

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"cropwatch-service/service/models"
)

// JoinToleranceDays 评估与观测按最近日期关联的容差天数
const JoinToleranceDays = 7

// TrendAggregator 趋势聚合器
// Now 可注入以便测试，默认取系统当前时间
type TrendAggregator struct {
	Now func() time.Time
}

// NewTrendAggregator 创建趋势聚合器实例
func NewTrendAggregator() *TrendAggregator {
	return &TrendAggregator{Now: time.Now}
}

// HealthTrendDelta 期间健康差值
type HealthTrendDelta struct {
	Latest   float64 `json:"latest"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
}

// CorrelatedPoint 评估与最近观测的关联点，仅用于展示和导出
type CorrelatedPoint struct {
	Assessment  models.HealthAssessment `json:"assessment"`
	Observation *models.IndexObservation `json:"observation,omitempty"`
	DateGapDays int                     `json:"date_gap_days"`
}

// TrendSummary 单地块回看窗口内的趋势汇总
type TrendSummary struct {
	ParcelID      string                    `json:"parcel_id"`
	WindowDays    int                       `json:"window_days"`
	Assessments   []models.HealthAssessment `json:"assessments"`  // 按日期升序，供图表使用
	Observations  []models.IndexObservation `json:"observations"` // 按日期升序
	AverageHealth float64                   `json:"average_health"`
	// HealthTrend 为 nil 表示窗口内评估不足两条，趋势未定义
	HealthTrend *HealthTrendDelta `json:"health_trend,omitempty"`
	Correlated  []CorrelatedPoint `json:"correlated,omitempty"`
}

// WindowAssessments 过滤出窗口内的评估并按日期升序排序
// 输入乱序时重排后再计算，保证趋势和差值只定义在连续的日期序上
func (a *TrendAggregator) WindowAssessments(assessments []models.HealthAssessment, windowDays int) []models.HealthAssessment {
	cutoff := a.Now().AddDate(0, 0, -windowDays)
	filtered := make([]models.HealthAssessment, 0, len(assessments))
	for _, item := range assessments {
		if !item.AssessmentDate.Before(cutoff) {
			filtered = append(filtered, item)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].AssessmentDate.Before(filtered[j].AssessmentDate)
	})
	return filtered
}

// WindowObservations 过滤出窗口内的观测并按采集日期升序排序
func (a *TrendAggregator) WindowObservations(observations []models.IndexObservation, windowDays int) []models.IndexObservation {
	cutoff := a.Now().AddDate(0, 0, -windowDays)
	filtered := make([]models.IndexObservation, 0, len(observations))
	for _, item := range observations {
		if !item.AcquisitionDate.Before(cutoff) {
			filtered = append(filtered, item)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].AcquisitionDate.Before(filtered[j].AcquisitionDate)
	})
	return filtered
}

// LatestFirstAssessments 返回窗口内评估的倒序副本，供"最新优先"语义的调用方使用
func (a *TrendAggregator) LatestFirstAssessments(assessments []models.HealthAssessment, windowDays int) []models.HealthAssessment {
	ordered := a.WindowAssessments(assessments, windowDays)
	reversed := make([]models.HealthAssessment, len(ordered))
	for i, item := range ordered {
		reversed[len(ordered)-1-i] = item
	}
	return reversed
}

// AverageHealth 计算评估健康总分的算数平均值，空序列返回 0
func (a *TrendAggregator) AverageHealth(assessments []models.HealthAssessment) float64 {
	scores := make([]float64, 0, len(assessments))
	for _, item := range assessments {
		if item.OverallHealthScore != nil {
			scores = append(scores, *item.OverallHealthScore)
		}
	}
	if len(scores) == 0 {
		return 0
	}
	mean, err := stats.Mean(scores)
	if err != nil {
		return 0
	}
	return mean
}

// HealthScoreStd 计算评估健康总分的标准差，不足两条返回 0
func (a *TrendAggregator) HealthScoreStd(assessments []models.HealthAssessment) float64 {
	scores := make([]float64, 0, len(assessments))
	for _, item := range assessments {
		if item.OverallHealthScore != nil {
			scores = append(scores, *item.OverallHealthScore)
		}
	}
	if len(scores) < 2 {
		return 0
	}
	std, err := stats.StandardDeviation(scores)
	if err != nil {
		return 0
	}
	return std
}

// HealthTrend 计算最近两条评估的健康总分差值
// 窗口内评估（含健康总分）不足两条时返回 nil，表示趋势未定义
func (a *TrendAggregator) HealthTrend(ordered []models.HealthAssessment) *HealthTrendDelta {
	scored := make([]models.HealthAssessment, 0, len(ordered))
	for _, item := range ordered {
		if item.OverallHealthScore != nil {
			scored = append(scored, item)
		}
	}
	if len(scored) < 2 {
		return nil
	}
	latest := *scored[len(scored)-1].OverallHealthScore
	previous := *scored[len(scored)-2].OverallHealthScore
	return &HealthTrendDelta{
		Latest:   latest,
		Previous: previous,
		Delta:    latest - previous,
	}
}

// CorrelateByDate 将每条评估与采集日期最接近的观测关联，容差7天
// 仅用于关联展示和导出，不参与健康分计算
func (a *TrendAggregator) CorrelateByDate(assessments []models.HealthAssessment, observations []models.IndexObservation) []CorrelatedPoint {
	points := make([]CorrelatedPoint, 0, len(assessments))
	for _, assessment := range assessments {
		var nearest *models.IndexObservation
		var nearestGap time.Duration
		for i := range observations {
			gap := dateGap(assessment.AssessmentDate, observations[i].AcquisitionDate)
			// 容差按时长比较，按天取整会把接近8天的间隔误判进7天窗口
			if gap > JoinToleranceDays*24*time.Hour {
				continue
			}
			if nearest == nil || gap < nearestGap {
				nearest = &observations[i]
				nearestGap = gap
			}
		}
		points = append(points, CorrelatedPoint{
			Assessment:  assessment,
			Observation: nearest,
			DateGapDays: int((nearestGap + 12*time.Hour) / (24 * time.Hour)),
		})
	}
	return points
}

// Summarize 生成单地块回看窗口内的趋势汇总，纯函数，无副作用
func (a *TrendAggregator) Summarize(parcelID string, assessments []models.HealthAssessment, observations []models.IndexObservation, windowDays int) *TrendSummary {
	windowedAssessments := a.WindowAssessments(assessments, windowDays)
	windowedObservations := a.WindowObservations(observations, windowDays)

	return &TrendSummary{
		ParcelID:      parcelID,
		WindowDays:    windowDays,
		Assessments:   windowedAssessments,
		Observations:  windowedObservations,
		AverageHealth: a.AverageHealth(windowedAssessments),
		HealthTrend:   a.HealthTrend(windowedAssessments),
		Correlated:    a.CorrelateByDate(windowedAssessments, windowedObservations),
	}
}

// dateGap 两个日期间隔的绝对时长
func dateGap(left, right time.Time) time.Duration {
	diff := left.Sub(right)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
