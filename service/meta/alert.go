/*
 * @module service/meta/alert
 * @description 告警元数据定义：告警类型、严重级别、状态流转规则、默认阈值与建议查找表
 * @architecture 分层架构 - 元数据层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow active -> acknowledged -> resolved（允许跳过 acknowledged）
 * @rules 阈值默认值可被租户/地块级 AlertThresholdConfig 覆盖，算法本身不持有字面量
 * @dependencies 无
 * @refs service/alert/evaluator.go
 */

package meta

// AlertType 告警类型
type AlertType string

const (
	AlertNDVIDrop      AlertType = "ndvi_drop"      // NDVI均值骤降
	AlertHealthDecline AlertType = "health_decline" // 健康总分下滑
)

// 验证告警类型
func (t AlertType) IsValid() bool {
	switch t {
	case AlertNDVIDrop, AlertHealthDecline:
		return true
	default:
		return false
	}
}

// AlertSeverity 告警严重级别
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// CanTransitionTo 判断告警状态流转是否合法
// resolved 为终态；active 允许直接流转到 resolved
func (s AlertStatus) CanTransitionTo(target AlertStatus) bool {
	switch s {
	case AlertStatusActive:
		return target == AlertStatusAcknowledged || target == AlertStatusResolved
	case AlertStatusAcknowledged:
		return target == AlertStatusResolved
	default:
		return false
	}
}

// AlertThresholdDefault 告警阈值默认配置
type AlertThresholdDefault struct {
	TriggerBelow  float64
	MediumBelow   float64
	HighBelow     float64
	CriticalBelow float64
}

// DefaultAlertThresholds 各告警类型的默认阈值与严重级别分档
// 变化量（有符号差值）低于 TriggerBelow 触发，低于后续分档依次升级
var DefaultAlertThresholds = map[AlertType]AlertThresholdDefault{
	AlertNDVIDrop: {
		TriggerBelow:  -0.1,
		MediumBelow:   -0.15,
		HighBelow:     -0.2,
		CriticalBelow: -0.3,
	},
	AlertHealthDecline: {
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
	},
}

// AlertRecommendations 告警建议查找表，按告警类型给出静态处置建议
var AlertRecommendations = map[AlertType][]string{
	AlertNDVIDrop: {
		"安排实地巡查确认植被衰退区域",
		"检查近期灌溉与降水记录",
		"必要时申请补充影像重新评估",
	},
	AlertHealthDecline: {
		"复核最近一次健康评估的问题区域",
		"结合胁迫指标安排针对性田间管理",
		"持续关注后续评估确认趋势是否延续",
	},
}

// RecommendationsFor 获取告警类型的处置建议，未知类型返回通用建议
func RecommendationsFor(alertType AlertType) []string {
	if recs, ok := AlertRecommendations[alertType]; ok {
		return recs
	}
	return []string{"安排实地巡查", "持续监测后续数据"}
}
