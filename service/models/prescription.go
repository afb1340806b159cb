/*
 * @module service/models/prescription
 * @description 变量作业处方图与管理分区模型定义
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow draft -> approved -> applied -> completed（线性流转，不允许回退或跳跃）
 * @rules 处方图创建后分区列表不可变更，重新生成产生新处方图；全部分区面积占比之和必须等于100（容差内）
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/prescription/zone_generator.go
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Zone 管理分区子记录
type Zone struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	AreaPercentage  float64  `json:"area_percentage"` // [0,100]
	HealthScore     float64  `json:"health_score"`    // 派生值，不必等于源评估总分
	ApplicationRate float64  `json:"application_rate"`
	Color           string   `json:"color"` // 前端展示提示，无业务语义
	Recommendations []string `json:"recommendations"`
}

// ZoneList 分区有序列表
type ZoneList []Zone

func (z *ZoneList) Scan(value interface{}) error {
	return scanJSONB(value, z)
}

func (z ZoneList) Value() (driver.Value, error) {
	if z == nil {
		return nil, nil
	}
	return json.Marshal(z)
}

// TotalAreaPercentage 分区面积占比之和
func (z ZoneList) TotalAreaPercentage() float64 {
	total := 0.0
	for _, zone := range z {
		total += zone.AreaPercentage
	}
	return total
}

// PrescriptionMap 变量作业处方图模型
// 由分区生成器从单个源评估生成，分区列表创建后不可变更
type PrescriptionMap struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ParcelID           string    `json:"parcel_id" gorm:"not null;type:varchar(36);index"`
	SourceAssessmentID string    `json:"source_assessment_id" gorm:"not null;type:varchar(36)"`
	MapType            string    `json:"map_type" gorm:"not null;size:20"` // fertilizer / irrigation / pesticide
	CropName           string    `json:"crop_name" gorm:"size:100"`
	GrowthStage        string    `json:"growth_stage" gorm:"size:50"`
	Status             string    `json:"status" gorm:"not null;default:'draft';size:20"`
	Zones              ZoneList  `json:"zones" gorm:"type:jsonb"`
	EstimatedCost      *float64  `json:"estimated_cost,omitempty"`
	ApplicationMethod  string    `json:"application_method" gorm:"size:100"`
	CreatedAt          time.Time `json:"created_date" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy          string    `json:"created_by" gorm:"not null;default:'system';size:100"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy          string    `json:"updated_by" gorm:"not null;default:'system';size:100"`
	// 关联关系
	Parcel Parcel `json:"parcel,omitempty" gorm:"foreignKey:ParcelID"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (p *PrescriptionMap) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedBy == "" {
		p.CreatedBy = "system"
	}
	if p.UpdatedBy == "" {
		p.UpdatedBy = "system"
	}
	return nil
}

// BeforeUpdate 更新前钩子
func (p *PrescriptionMap) BeforeUpdate(tx *gorm.DB) error {
	if p.UpdatedBy == "" {
		p.UpdatedBy = "system"
	}
	return nil
}
