/*
 * @module service/models/assessment
 * @description 作物健康评估模型定义，包括问题区域、胁迫指标和建议子记录
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 评估作业产出评估 -> 入库校验 -> 告警评估/处方图生成消费
 * @rules 评估创建后不可变更，同一地块更晚日期的评估取代旧评估；问题区域面积占比之和不得超过100
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/models/prescription.go, service/alert
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProblemArea 问题区域子记录
type ProblemArea struct {
	Type           string  `json:"type"`            // low_vigor / water_stress / nutrient_deficiency / pest_pressure / ...
	Severity       string  `json:"severity"`        // low / medium / high
	AreaPercentage float64 `json:"area_percentage"` // [0,100]
	Location       string  `json:"location"`        // 不透明的描述性位置串
}

// ProblemAreaList 问题区域列表，按评估作业产出顺序存储
type ProblemAreaList []ProblemArea

func (p *ProblemAreaList) Scan(value interface{}) error {
	return scanJSONB(value, p)
}

func (p ProblemAreaList) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// TotalAreaPercentage 问题区域面积占比之和
func (p ProblemAreaList) TotalAreaPercentage() float64 {
	total := 0.0
	for _, area := range p {
		total += area.AreaPercentage
	}
	return total
}

// StressIndicator 胁迫指标取值
type StressIndicator struct {
	Level      string  `json:"level"`      // low / medium / high
	Confidence float64 `json:"confidence"` // [0,1]
}

// StressIndicatorMap 指标名 -> 胁迫指标取值
type StressIndicatorMap map[string]StressIndicator

func (s *StressIndicatorMap) Scan(value interface{}) error {
	return scanJSONB(value, s)
}

func (s StressIndicatorMap) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// AssessmentRecommendation 评估建议条目
type AssessmentRecommendation struct {
	Action   string `json:"action"`
	Priority string `json:"priority"` // low / medium / high
	Type     string `json:"type"`     // fertilization / irrigation / scouting / ...
}

// RecommendationList 建议列表，保持产出顺序
type RecommendationList []AssessmentRecommendation

func (r *RecommendationList) Scan(value interface{}) error {
	return scanJSONB(value, r)
}

func (r RecommendationList) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// HealthAssessment 作物健康评估模型
// 每条记录对应 (地块, 评估日期)，由周期性评估作业产出，创建后不可变更
type HealthAssessment struct {
	ID                 string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ParcelID           string             `json:"parcel_id" gorm:"not null;type:varchar(36);index:idx_assess_parcel_date"`
	AssessmentDate     time.Time          `json:"assessment_date" gorm:"not null;index:idx_assess_parcel_date"`
	OverallHealthScore *float64           `json:"overall_health_score,omitempty"` // [0,100]
	NDVIAvg            *float64           `json:"ndvi_avg,omitempty"`
	NDVIMin            *float64           `json:"ndvi_min,omitempty"`
	NDVIMax            *float64           `json:"ndvi_max,omitempty"`
	NDVIStd            *float64           `json:"ndvi_std,omitempty"`
	GrowthStage        string             `json:"growth_stage" gorm:"size:50"`
	ProblemAreas       ProblemAreaList    `json:"problem_areas" gorm:"type:jsonb"`
	StressIndicators   StressIndicatorMap `json:"stress_indicators" gorm:"type:jsonb"`
	Recommendations    RecommendationList `json:"recommendations" gorm:"type:jsonb"`
	PredictedYield     *float64           `json:"predicted_yield,omitempty"`
	CreatedAt          time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy          string             `json:"created_by" gorm:"not null;default:'system';size:100"`
	// 关联关系
	Parcel Parcel `json:"parcel,omitempty" gorm:"foreignKey:ParcelID"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (h *HealthAssessment) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedBy == "" {
		h.CreatedBy = "system"
	}
	return nil
}
