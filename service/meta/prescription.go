/*
 * @module service/meta/prescription
 * @description 处方图元数据定义：作业类型、状态流转规则、施用量查找表、分区颜色与建议查找表
 * @architecture 分层架构 - 元数据层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow draft -> approved -> applied -> completed（线性，不允许回退）
 * @rules 施用量表与建议表为具名配置数据，算法不内联字面量，可按租户覆盖
 * @dependencies 无
 * @refs service/prescription/zone_generator.go
 */

package meta

// MapType 处方图作业类型
type MapType string

const (
	MapFertilizer MapType = "fertilizer" // 变量施肥，单位 kg/ha
	MapIrrigation MapType = "irrigation" // 变量灌溉，单位 mm
	MapPesticide  MapType = "pesticide"  // 变量施药，单位 L/ha
)

// 验证作业类型
func (t MapType) IsValid() bool {
	switch t {
	case MapFertilizer, MapIrrigation, MapPesticide:
		return true
	default:
		return false
	}
}

// RateUnit 作业类型对应的施用量单位
func (t MapType) RateUnit() string {
	switch t {
	case MapFertilizer:
		return "kg/ha"
	case MapIrrigation:
		return "mm"
	case MapPesticide:
		return "L/ha"
	default:
		return ""
	}
}

// MapStatus 处方图状态
type MapStatus string

const (
	MapStatusDraft     MapStatus = "draft"
	MapStatusApproved  MapStatus = "approved"
	MapStatusApplied   MapStatus = "applied"
	MapStatusCompleted MapStatus = "completed"
)

// IsValid 判断处方图状态是否合法
func (s MapStatus) IsValid() bool {
	switch s {
	case MapStatusDraft, MapStatusApproved, MapStatusApplied, MapStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo 判断处方图状态流转是否合法，只允许线性前进一步
func (s MapStatus) CanTransitionTo(target MapStatus) bool {
	switch s {
	case MapStatusDraft:
		return target == MapStatusApproved
	case MapStatusApproved:
		return target == MapStatusApplied
	case MapStatusApplied:
		return target == MapStatusCompleted
	default:
		return false
	}
}

// RateTable 单一作业类型的施用量表
type RateTable struct {
	Standard float64 `json:"standard"` // 高产区标准施用量
	Low      float64 `json:"low"`      // 轻度问题区
	Medium   float64 `json:"medium"`   // 中度问题区
	High     float64 `json:"high"`     // 重度问题区
}

// ApplicationRates 各作业类型的施用量查找表
var ApplicationRates = map[MapType]RateTable{
	MapFertilizer: {Standard: 50, Low: 40, Medium: 65, High: 80},
	MapIrrigation: {Standard: 25, Low: 20, Medium: 35, High: 45},
	MapPesticide:  {Standard: 2, Low: 1.5, Medium: 2.5, High: 3.5},
}

// RateFor 按作业类型和问题严重级别查表取施用量
func RateFor(mapType MapType, severity StressLevel) float64 {
	table, ok := ApplicationRates[mapType]
	if !ok {
		return 0
	}
	switch severity {
	case StressLow:
		return table.Low
	case StressMedium:
		return table.Medium
	case StressHigh:
		return table.High
	default:
		return table.Standard
	}
}

// StandardRateFor 按作业类型取高产区标准施用量
func StandardRateFor(mapType MapType) float64 {
	return ApplicationRates[mapType].Standard
}

// ZoneSeverityHealthScore 问题严重级别到分区健康分的固定映射
func ZoneSeverityHealthScore(severity StressLevel) float64 {
	switch severity {
	case StressHigh:
		return 20
	case StressMedium:
		return 40
	default:
		return 60
	}
}

// ZoneSeverityColor 问题严重级别到分区颜色的映射
func ZoneSeverityColor(severity StressLevel) string {
	switch severity {
	case StressHigh:
		return "#dc2626" // 红
	case StressMedium:
		return "#f59e0b" // 琥珀
	default:
		return "#65a30d" // 绿
	}
}

// ProblemTypeRecommendations 问题类型到分区建议的查找表
var ProblemTypeRecommendations = map[string][]string{
	"low_vigor": {
		"提高该区域氮肥投入",
		"排查土壤紧实度与播种质量",
	},
	"water_stress": {
		"增加该区域灌溉频次",
		"检查灌溉设备覆盖范围",
	},
	"nutrient_deficiency": {
		"采集土样进行养分化验",
		"按化验结果补施缺素肥料",
	},
	"pest_pressure": {
		"安排植保人员实地确认虫情",
		"达到防治指标时进行局部施药",
	},
	"disease_risk": {
		"加强田间病害巡查",
		"低湿时段预防性施药",
	},
}

// HighPerformanceZoneRecommendations 高产区静态建议
var HighPerformanceZoneRecommendations = []string{
	"维持现有管理措施",
	"关注最佳收获时机",
}

// ProblemTypeLabels 问题类型的展示名称
var ProblemTypeLabels = map[string]string{
	"low_vigor":           "长势偏弱区",
	"water_stress":        "水分胁迫区",
	"nutrient_deficiency": "养分亏缺区",
	"pest_pressure":       "虫害压力区",
	"disease_risk":        "病害风险区",
}

// ProblemTypeLabel 取问题类型的展示名称，未识别类型原样返回
func ProblemTypeLabel(problemType string) string {
	if label, ok := ProblemTypeLabels[problemType]; ok {
		return label
	}
	return problemType
}

// ProblemRecommendationsFor 按问题类型取分区建议，未识别类型返回通用兜底建议
func ProblemRecommendationsFor(problemType string) []string {
	if recs, ok := ProblemTypeRecommendations[problemType]; ok {
		return recs
	}
	return []string{"密切监测该区域", "执行标准处理措施"}
}
