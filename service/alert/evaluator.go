/*
 * @module service/alert/evaluator
 * @description 告警评估器：比较同一地块相邻两次评估，按可配置阈值产出告警记录
 * @architecture 分层架构 - 领域计算层（纯函数，无副作用）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 取相邻两次评估 -> 计算变化量 -> 逐规则判定 -> 幅度分档定级 -> 产出告警
 * @rules 各告警类型独立判定，一次评估可产出多条告警；历史不足两条时评估为空操作而非错误；trigger_values 记录检查过的全部指标而非仅触发指标
 * @dependencies cropwatch-service/service/models, cropwatch-service/service/meta
 * @refs service/alert/alert_service.go, service/alert/script_executor.go
 */

package alert

import (
	"context"
	"fmt"
	"log/slog"

	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
)

// ThresholdRule 单一告警类型的生效阈值
type ThresholdRule struct {
	AlertType     meta.AlertType
	TriggerBelow  float64
	MediumBelow   float64
	HighBelow     float64
	CriticalBelow float64
	Script        string
	ScriptEnabled bool
}

// RuleFromConfig 从阈值配置模型构造生效规则
func RuleFromConfig(config *models.AlertThresholdConfig) ThresholdRule {
	return ThresholdRule{
		AlertType:     meta.AlertType(config.AlertType),
		TriggerBelow:  config.TriggerBelow,
		MediumBelow:   config.MediumBelow,
		HighBelow:     config.HighBelow,
		CriticalBelow: config.CriticalBelow,
		Script:        config.Script,
		ScriptEnabled: config.ScriptEnabled,
	}
}

// DefaultRules 内置默认规则集，未持久化任何配置时生效
func DefaultRules() []ThresholdRule {
	rules := make([]ThresholdRule, 0, len(meta.DefaultAlertThresholds))
	for alertType, def := range meta.DefaultAlertThresholds {
		rules = append(rules, ThresholdRule{
			AlertType:     alertType,
			TriggerBelow:  def.TriggerBelow,
			MediumBelow:   def.MediumBelow,
			HighBelow:     def.HighBelow,
			CriticalBelow: def.CriticalBelow,
		})
	}
	return rules
}

// EvaluationResult 一次评估的产出
// Evaluated 为 false 表示历史不足，本次为无操作而非"无告警"
type EvaluationResult struct {
	Evaluated bool           `json:"evaluated"`
	Alerts    []models.Alert `json:"alerts"`
}

// Evaluator 告警评估器
type Evaluator struct {
	scriptExecutor *ScriptExecutor
}

// NewEvaluator 创建告警评估器实例
func NewEvaluator() *Evaluator {
	return &Evaluator{
		scriptExecutor: NewScriptExecutor(),
	}
}

// Evaluate 对单个地块执行一轮告警评估
// latest 与 previous 必须为同一地块按评估日期排序的相邻两次评估（latest 较新）
// previous 为 nil 时历史不足，返回未评估的空结果
func (e *Evaluator) Evaluate(ctx context.Context, latest, previous *models.HealthAssessment, rules []ThresholdRule) EvaluationResult {
	if latest == nil || previous == nil {
		return EvaluationResult{Evaluated: false}
	}

	var ndviChange, healthChange *float64
	if latest.NDVIAvg != nil && previous.NDVIAvg != nil {
		change := *latest.NDVIAvg - *previous.NDVIAvg
		ndviChange = &change
	}
	if latest.OverallHealthScore != nil && previous.OverallHealthScore != nil {
		change := *latest.OverallHealthScore - *previous.OverallHealthScore
		healthChange = &change
	}

	// trigger_values 始终记录检查过的全部指标，不局限于触发规则的指标
	triggerValues := models.JSONB{}
	if ndviChange != nil {
		triggerValues["ndvi_change"] = *ndviChange
		triggerValues["latest_ndvi_avg"] = *latest.NDVIAvg
		triggerValues["previous_ndvi_avg"] = *previous.NDVIAvg
	}
	if healthChange != nil {
		triggerValues["health_change"] = *healthChange
		triggerValues["latest_health_score"] = *latest.OverallHealthScore
		triggerValues["previous_health_score"] = *previous.OverallHealthScore
	}

	result := EvaluationResult{Evaluated: true, Alerts: []models.Alert{}}

	// 规则之间相互独立，单类型命中不抑制其他类型的判定
	for _, rule := range rules {
		var change *float64
		switch rule.AlertType {
		case meta.AlertNDVIDrop:
			change = ndviChange
		case meta.AlertHealthDecline:
			change = healthChange
		default:
			continue
		}
		if change == nil {
			continue
		}

		triggered := *change < rule.TriggerBelow
		if rule.ScriptEnabled && rule.Script != "" {
			scriptTriggered, err := e.evaluateScript(ctx, rule, *change, triggerValues)
			if err != nil {
				slog.Warn("告警条件脚本执行失败，回退到内置阈值判定",
					"alert_type", rule.AlertType, "error", err)
			} else {
				triggered = scriptTriggered
			}
		}
		if !triggered {
			continue
		}

		alert := models.Alert{
			ParcelID:           latest.ParcelID,
			AlertType:          string(rule.AlertType),
			Severity:           string(severityFor(rule, *change)),
			Status:             string(meta.AlertStatusActive),
			Message:            alertMessage(rule.AlertType, *change),
			TriggerValues:      triggerValues,
			NDVIChange:         ndviChange,
			Recommendations:    models.JSONBStringArray(meta.RecommendationsFor(rule.AlertType)),
			SourceAssessmentID: latest.ID,
		}
		if total := latest.ProblemAreas.TotalAreaPercentage(); total > 0 {
			affected := total
			alert.AffectedAreaPct = &affected
		}

		result.Alerts = append(result.Alerts, alert)
	}

	return result
}

// severityFor 按变化量幅度分档确定严重级别
// 变化量恒为负，分档值为0表示该档未设置，只触发不升级时定级为 low
func severityFor(rule ThresholdRule, change float64) meta.AlertSeverity {
	switch {
	case rule.CriticalBelow != 0 && change <= rule.CriticalBelow:
		return meta.AlertSeverityCritical
	case rule.HighBelow != 0 && change <= rule.HighBelow:
		return meta.AlertSeverityHigh
	case rule.MediumBelow != 0 && change <= rule.MediumBelow:
		return meta.AlertSeverityMedium
	default:
		return meta.AlertSeverityLow
	}
}

// evaluateScript 执行自定义触发条件脚本，脚本必须返回 bool
func (e *Evaluator) evaluateScript(ctx context.Context, rule ThresholdRule, change float64, metrics models.JSONB) (bool, error) {
	params := map[string]interface{}{
		"change":        change,
		"trigger_below": rule.TriggerBelow,
		"metrics":       map[string]interface{}(metrics),
	}

	return e.scriptExecutor.Execute(ctx, rule.Script, params)
}

// alertMessage 生成告警描述
func alertMessage(alertType meta.AlertType, change float64) string {
	switch alertType {
	case meta.AlertNDVIDrop:
		return fmt.Sprintf("NDVI均值较上次评估下降 %.3f", -change)
	case meta.AlertHealthDecline:
		return fmt.Sprintf("健康总分较上次评估下降 %.1f", -change)
	default:
		return fmt.Sprintf("指标变化量 %.3f 突破阈值", change)
	}
}
