package prescription

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
	"cropwatch-service/testutil"
)

func TestGenerateZones_问题区域成区并补足高产区(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		ParcelID:           "parcel-1",
		OverallHealthScore: testutil.FloatPtr(55),
		ProblemAreas: models.ProblemAreaList{
			{Type: "water_stress", Severity: "high", AreaPercentage: 30},
		},
	}

	zones, err := GenerateZones(assessment, meta.MapIrrigation)
	assert.NoError(t, err)
	assert.Len(t, zones, 2)

	highPerf := zones[0]
	assert.Equal(t, "zone-1", highPerf.ID)
	assert.Equal(t, "高产区", highPerf.Name)
	assert.InDelta(t, 70, highPerf.AreaPercentage, AreaTolerance)
	assert.InDelta(t, 65, highPerf.HealthScore, 1e-9) // 55+10
	assert.InDelta(t, 25, highPerf.ApplicationRate, 1e-9)
	assert.Equal(t, "#15803d", highPerf.Color)

	problem := zones[1]
	assert.Equal(t, "zone-2", problem.ID)
	assert.Equal(t, "水分胁迫区", problem.Name)
	assert.InDelta(t, 30, problem.AreaPercentage, AreaTolerance)
	assert.InDelta(t, 20, problem.HealthScore, 1e-9)
	assert.InDelta(t, 45, problem.ApplicationRate, 1e-9)
	assert.Equal(t, "#dc2626", problem.Color)
	assert.NotEmpty(t, problem.Recommendations)
}

func TestGenerateZones_无问题区域生成单一高产区(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(90),
		ProblemAreas:       models.ProblemAreaList{},
	}

	zones, err := GenerateZones(assessment, meta.MapFertilizer)
	assert.NoError(t, err)
	assert.Len(t, zones, 1)
	assert.InDelta(t, 100, zones[0].AreaPercentage, AreaTolerance)
	// 90+10 后夹紧到取值域上限
	assert.InDelta(t, 100, zones[0].HealthScore, 1e-9)
	assert.InDelta(t, 50, zones[0].ApplicationRate, 1e-9)
}

func TestGenerateZones_低分评估高产区随源分偏移(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(30),
		ProblemAreas: models.ProblemAreaList{
			{Type: "low_vigor", Severity: "medium", AreaPercentage: 40},
		},
	}

	zones, err := GenerateZones(assessment, meta.MapFertilizer)
	assert.NoError(t, err)
	// 高产分恒为源总分+10，低分评估不向上取整
	assert.InDelta(t, 40, zones[0].HealthScore, 1e-9)
}

func TestGenerateZones_缺健康总分但有问题区域仍可生成(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID: "assessment-1",
		ProblemAreas: models.ProblemAreaList{
			{Type: "pest_pressure", Severity: "medium", AreaPercentage: 20},
		},
	}

	zones, err := GenerateZones(assessment, meta.MapPesticide)
	assert.NoError(t, err)
	assert.Len(t, zones, 2)
	assert.InDelta(t, 70, zones[0].HealthScore, 1e-9)
	assert.InDelta(t, 2.5, zones[1].ApplicationRate, 1e-9)
}

func TestGenerateZones_空评估拒绝(t *testing.T) {
	_, err := GenerateZones(nil, meta.MapFertilizer)
	assert.Equal(t, apperrors.ErrorTypeInsufficientData, apperrors.TypeOf(err))

	_, err = GenerateZones(&models.HealthAssessment{ID: "assessment-1"}, meta.MapFertilizer)
	assert.Equal(t, apperrors.ErrorTypeInsufficientData, apperrors.TypeOf(err))
}

func TestGenerateZones_未知作业类型拒绝(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(80),
	}

	_, err := GenerateZones(assessment, meta.MapType("seeding"))
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestGenerateZones_问题面积超界上抛不变量错误(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(50),
		ProblemAreas: models.ProblemAreaList{
			{Type: "water_stress", Severity: "high", AreaPercentage: 60},
			{Type: "low_vigor", Severity: "medium", AreaPercentage: 55},
		},
	}

	_, err := GenerateZones(assessment, meta.MapIrrigation)
	assert.Equal(t, apperrors.ErrorTypeInvariantViolation, apperrors.TypeOf(err))
}

func TestGenerateZones_面积之和恒为100(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(60),
		ProblemAreas: models.ProblemAreaList{
			{Type: "water_stress", Severity: "high", AreaPercentage: 17.5},
			{Type: "nutrient_deficiency", Severity: "low", AreaPercentage: 22.25},
			{Type: "disease_risk", Severity: "medium", AreaPercentage: 8.125},
		},
	}

	zones, err := GenerateZones(assessment, meta.MapFertilizer)
	assert.NoError(t, err)
	assert.Len(t, zones, 4)
	assert.InDelta(t, 100, zones.TotalAreaPercentage(), AreaTolerance)
}

func TestGenerateZones_未识别问题类型兜底(t *testing.T) {
	assessment := &models.HealthAssessment{
		ID:                 "assessment-1",
		OverallHealthScore: testutil.FloatPtr(60),
		ProblemAreas: models.ProblemAreaList{
			{Type: "soil_salinity", Severity: "low", AreaPercentage: 10},
		},
	}

	zones, err := GenerateZones(assessment, meta.MapIrrigation)
	assert.NoError(t, err)
	// 未识别类型名称原样保留，建议取通用兜底
	assert.Equal(t, "soil_salinity", zones[1].Name)
	assert.NotEmpty(t, zones[1].Recommendations)
	assert.InDelta(t, 20, zones[1].ApplicationRate, 1e-9) // low 档灌溉量
	assert.InDelta(t, 60, zones[1].HealthScore, 1e-9)
}
