package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func assessmentWith(parcelID string, health, ndvi *float64) *models.HealthAssessment {
	return &models.HealthAssessment{
		ParcelID:           parcelID,
		OverallHealthScore: health,
		NDVIAvg:            ndvi,
	}
}

func TestEvaluate_历史不足为无操作(t *testing.T) {
	evaluator := NewEvaluator()

	result := evaluator.Evaluate(context.Background(),
		assessmentWith("parcel-1", floatPtr(80), floatPtr(0.6)), nil, DefaultRules())

	assert.False(t, result.Evaluated)
	assert.Empty(t, result.Alerts)
}

func TestEvaluate_健康总分下滑触发中级告警(t *testing.T) {
	evaluator := NewEvaluator()

	// 80 -> 62，变化量 -18：触发(-10)，落在 medium 档(-15 与 -20 之间)
	previous := assessmentWith("parcel-1", floatPtr(80), floatPtr(0.6))
	latest := assessmentWith("parcel-1", floatPtr(62), floatPtr(0.6))

	result := evaluator.Evaluate(context.Background(), latest, previous, DefaultRules())

	assert.True(t, result.Evaluated)
	assert.Len(t, result.Alerts, 1)

	alert := result.Alerts[0]
	assert.Equal(t, string(meta.AlertHealthDecline), alert.AlertType)
	assert.Equal(t, string(meta.AlertSeverityMedium), alert.Severity)
	assert.Equal(t, string(meta.AlertStatusActive), alert.Status)
	assert.Equal(t, "parcel-1", alert.ParcelID)
	assert.NotEmpty(t, alert.Recommendations)

	// trigger_values 记录检查过的全部指标
	assert.InDelta(t, -18.0, alert.TriggerValues["health_change"].(float64), 1e-9)
	assert.Contains(t, alert.TriggerValues, "ndvi_change")
}

func TestEvaluate_变化量未突破阈值不产出(t *testing.T) {
	evaluator := NewEvaluator()

	// -8 未低于 -10 的触发线
	previous := assessmentWith("parcel-1", floatPtr(80), floatPtr(0.6))
	latest := assessmentWith("parcel-1", floatPtr(72), floatPtr(0.6))

	result := evaluator.Evaluate(context.Background(), latest, previous, DefaultRules())

	assert.True(t, result.Evaluated)
	assert.Empty(t, result.Alerts)
}

func TestEvaluate_各规则独立判定可多条产出(t *testing.T) {
	evaluator := NewEvaluator()

	// NDVI 下降 0.25 且健康总分下降 35，两类告警都触发
	previous := assessmentWith("parcel-1", floatPtr(85), floatPtr(0.75))
	latest := assessmentWith("parcel-1", floatPtr(50), floatPtr(0.5))

	result := evaluator.Evaluate(context.Background(), latest, previous, DefaultRules())

	assert.Len(t, result.Alerts, 2)

	byType := make(map[string]models.Alert)
	for _, item := range result.Alerts {
		byType[item.AlertType] = item
	}
	assert.Equal(t, string(meta.AlertSeverityHigh), byType[string(meta.AlertNDVIDrop)].Severity)
	assert.Equal(t, string(meta.AlertSeverityCritical), byType[string(meta.AlertHealthDecline)].Severity)
}

func TestEvaluate_严重级别分档(t *testing.T) {
	rule := ThresholdRule{
		AlertType:     meta.AlertHealthDecline,
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
	}

	cases := []struct {
		change   float64
		severity meta.AlertSeverity
	}{
		{-12, meta.AlertSeverityLow},
		{-15, meta.AlertSeverityMedium}, // 档位边界取下档
		{-18, meta.AlertSeverityMedium},
		{-20, meta.AlertSeverityHigh},
		{-30, meta.AlertSeverityCritical},
		{-80, meta.AlertSeverityCritical},
	}

	for _, c := range cases {
		assert.Equal(t, c.severity, severityFor(rule, c.change), "change=%v", c.change)
	}
}

func TestEvaluate_未设置分档时定级为低(t *testing.T) {
	// 只配了触发线的规则：任何触发幅度都不该越过未设置的分档直接定为 critical
	rule := ThresholdRule{
		AlertType:    meta.AlertNDVIDrop,
		TriggerBelow: -0.1,
	}

	assert.Equal(t, meta.AlertSeverityLow, severityFor(rule, -0.12))
	assert.Equal(t, meta.AlertSeverityLow, severityFor(rule, -0.5))

	// 部分设置时未设置的档位同样跳过
	partial := ThresholdRule{
		AlertType:    meta.AlertNDVIDrop,
		TriggerBelow: -0.1,
		HighBelow:    -0.3,
	}
	assert.Equal(t, meta.AlertSeverityLow, severityFor(partial, -0.12))
	assert.Equal(t, meta.AlertSeverityHigh, severityFor(partial, -0.35))
}

func TestEvaluate_指标缺失时跳过对应规则(t *testing.T) {
	evaluator := NewEvaluator()

	// NDVI 均值缺失，只判定健康总分规则
	previous := assessmentWith("parcel-1", floatPtr(80), nil)
	latest := assessmentWith("parcel-1", floatPtr(50), floatPtr(0.5))

	result := evaluator.Evaluate(context.Background(), latest, previous, DefaultRules())

	assert.Len(t, result.Alerts, 1)
	assert.Equal(t, string(meta.AlertHealthDecline), result.Alerts[0].AlertType)
	assert.NotContains(t, result.Alerts[0].TriggerValues, "ndvi_change")
}

func TestEvaluate_受影响面积来自问题区域(t *testing.T) {
	evaluator := NewEvaluator()

	previous := assessmentWith("parcel-1", floatPtr(80), floatPtr(0.6))
	latest := assessmentWith("parcel-1", floatPtr(62), floatPtr(0.6))
	latest.ProblemAreas = models.ProblemAreaList{
		{Type: "water_stress", Severity: "high", AreaPercentage: 25},
		{Type: "pest_risk", Severity: "medium", AreaPercentage: 10},
	}

	result := evaluator.Evaluate(context.Background(), latest, previous, DefaultRules())

	assert.Len(t, result.Alerts, 1)
	assert.NotNil(t, result.Alerts[0].AffectedAreaPct)
	assert.InDelta(t, 35.0, *result.Alerts[0].AffectedAreaPct, 1e-9)
}

func TestEvaluate_自定义条件脚本覆盖内置阈值(t *testing.T) {
	evaluator := NewEvaluator()

	rule := ThresholdRule{
		AlertType:     meta.AlertHealthDecline,
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
		ScriptEnabled: true,
		// 脚本收紧触发条件：只有下降超过25才告警
		Script: `return change < -25, nil`,
	}

	previous := assessmentWith("parcel-1", floatPtr(80), nil)
	latest := assessmentWith("parcel-1", floatPtr(62), nil)

	// -18 按内置阈值会触发，但脚本拒绝
	result := evaluator.Evaluate(context.Background(), latest, previous, []ThresholdRule{rule})
	assert.Empty(t, result.Alerts)

	// -30 同时满足脚本条件
	worse := assessmentWith("parcel-1", floatPtr(50), nil)
	result = evaluator.Evaluate(context.Background(), worse, previous, []ThresholdRule{rule})
	assert.Len(t, result.Alerts, 1)
}

func TestEvaluate_脚本失败回退内置阈值(t *testing.T) {
	evaluator := NewEvaluator()

	rule := ThresholdRule{
		AlertType:     meta.AlertHealthDecline,
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
		ScriptEnabled: true,
		Script:        `this is not valid go`,
	}

	previous := assessmentWith("parcel-1", floatPtr(80), nil)
	latest := assessmentWith("parcel-1", floatPtr(62), nil)

	result := evaluator.Evaluate(context.Background(), latest, previous, []ThresholdRule{rule})

	// 脚本编译失败，回退到内置阈值判定，-18 触发
	assert.Len(t, result.Alerts, 1)
}

func TestEvaluate_脚本运行时panic回退内置阈值(t *testing.T) {
	evaluator := NewEvaluator()

	rule := ThresholdRule{
		AlertType:     meta.AlertHealthDecline,
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
		ScriptEnabled: true,
		// 能通过编译但运行即panic的脚本不允许拖垮评估流程
		Script: `panic("租户脚本越界访问")`,
	}

	previous := assessmentWith("parcel-1", floatPtr(80), nil)
	latest := assessmentWith("parcel-1", floatPtr(62), nil)

	result := evaluator.Evaluate(context.Background(), latest, previous, []ThresholdRule{rule})

	// panic被捕获并降级为错误，内置阈值判定 -18 触发
	assert.Len(t, result.Alerts, 1)
	assert.Equal(t, string(meta.AlertSeverityMedium), result.Alerts[0].Severity)
}

func TestScriptExecutor_返回布尔结果(t *testing.T) {
	executor := NewScriptExecutor()

	triggered, err := executor.Execute(context.Background(),
		`return change < -25, nil`,
		map[string]interface{}{"change": -30.0})
	assert.NoError(t, err)
	assert.True(t, triggered)

	triggered, err = executor.Execute(context.Background(),
		`return change < -25, nil`,
		map[string]interface{}{"change": -18.0})
	assert.NoError(t, err)
	assert.False(t, triggered)
}
