/*
 * @module service/prescription/zone_generator
 * @description 分区生成器：从最近一次健康评估生成管理分区及各分区施用量与建议
 * @architecture 分层架构 - 领域计算层（纯函数，无副作用）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 评估校验 -> 问题区域逐一成区 -> 高产区补足面积 -> 面积不变量校验
 * @rules 全部分区面积占比之和必须等于100（浮点容差内），违反时上抛 invariant_violation 而非静默修正；空评估（无问题区域且无健康总分）拒绝生成
 * @dependencies cropwatch-service/service/meta, cropwatch-service/service/models
 * @refs service/prescription/prescription_service.go
 */

package prescription

import (
	"fmt"
	"math"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
)

// AreaTolerance 分区面积之和的允许浮点容差
const AreaTolerance = 1e-6

// 高产区健康分规则：源评估总分 +10，上限100；评估缺总分时取默认值70
// 上限夹紧是有意为之：健康分的文档化取值域为 [0,100]，源系统未夹紧属于缺陷
func highPerformanceScore(overall *float64) float64 {
	if overall == nil {
		return 70
	}
	return math.Min(100, *overall+10)
}

// GenerateZones 从单个源评估生成有序分区列表
// 评估既无问题区域又无健康总分时拒绝（insufficient_data）；
// 问题区域为空但有健康总分时生成覆盖100%的单一高产区
func GenerateZones(assessment *models.HealthAssessment, mapType meta.MapType) (models.ZoneList, error) {
	if assessment == nil {
		return nil, apperrors.InsufficientData("assessment", "源评估为空，无法生成处方图")
	}
	if !mapType.IsValid() {
		return nil, apperrors.OutOfRange("map_type", "未知的处方图作业类型 %s", mapType)
	}
	if len(assessment.ProblemAreas) == 0 && assessment.OverallHealthScore == nil {
		return nil, apperrors.InsufficientData("assessment",
			"评估 %s 既无问题区域又无健康总分，无法生成处方图", assessment.ID)
	}

	problemTotal := assessment.ProblemAreas.TotalAreaPercentage()
	if problemTotal > 100+AreaTolerance {
		return nil, apperrors.InvariantViolation("problem_areas",
			"问题区域面积占比之和 %.4f 超过100，上游数据已损坏", problemTotal)
	}

	zones := make(models.ZoneList, 0, len(assessment.ProblemAreas)+1)

	// 高产区为问题区域的面积补集，按构造是受影响最小的区域
	highPerfArea := math.Max(0, 100-problemTotal)
	zones = append(zones, models.Zone{
		ID:              "zone-1",
		Name:            "高产区",
		AreaPercentage:  highPerfArea,
		HealthScore:     highPerformanceScore(assessment.OverallHealthScore),
		ApplicationRate: meta.StandardRateFor(mapType),
		Color:           "#15803d",
		Recommendations: meta.HighPerformanceZoneRecommendations,
	})

	for i, area := range assessment.ProblemAreas {
		severity := meta.StressLevel(area.Severity)
		zones = append(zones, models.Zone{
			ID:              fmt.Sprintf("zone-%d", i+2),
			Name:            meta.ProblemTypeLabel(area.Type),
			AreaPercentage:  area.AreaPercentage,
			HealthScore:     meta.ZoneSeverityHealthScore(severity),
			ApplicationRate: meta.RateFor(mapType, severity),
			Color:           meta.ZoneSeverityColor(severity),
			Recommendations: meta.ProblemRecommendationsFor(area.Type),
		})
	}

	// 面积不变量：全部分区之和必须为100，偏差意味着上游数据损坏，必须上抛
	if total := zones.TotalAreaPercentage(); math.Abs(total-100) > AreaTolerance {
		return nil, apperrors.InvariantViolation("zones",
			"分区面积占比之和 %.6f 偏离100，拒绝产出处方图", total)
	}

	return zones, nil
}
