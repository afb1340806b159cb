/*
 * @module service/models/parcel
 * @description 地块与植被指数观测模型定义，地块是观测和评估数据的归属聚合
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 地块注册 -> 影像处理作业产出观测 -> 观测按采集日期归档
 * @rules 观测记录创建后不可变更；指数值缺失与零值严格区分，使用指针字段表示可选性
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Parcel 地块模型
type Parcel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name      string    `json:"name" gorm:"not null;size:255" example:"河东三号地块"`
	CropName  string    `json:"crop_name" gorm:"size:100" example:"winter_wheat"`
	AreaHa    *float64  `json:"area_ha,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy string    `json:"created_by" gorm:"not null;default:'system';size:100"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy string    `json:"updated_by" gorm:"not null;default:'system';size:100"`
	Status    string    `json:"status" gorm:"not null;default:'active';size:20" example:"active"`
	// 关联关系
	Observations []IndexObservation `json:"observations,omitempty" gorm:"foreignKey:ParcelID"`
	Assessments  []HealthAssessment `json:"assessments,omitempty" gorm:"foreignKey:ParcelID"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (p *Parcel) BeforeCreate(tx *gorm.DB) error {
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

// IndexObservation 植被指数观测模型
// 每条记录对应 (地块, 采集日期, 源影像场景)，由外部影像处理作业产出，创建后不可变更
// 指数字段均为可选：缺失（nil）与数值为零含义不同
type IndexObservation struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ParcelID           string    `json:"parcel_id" gorm:"not null;type:varchar(36);index:idx_obs_parcel_date"`
	SceneID            string    `json:"scene_id" gorm:"size:255"`
	AcquisitionDate    time.Time `json:"acquisition_date" gorm:"not null;index:idx_obs_parcel_date"`
	NDVI               *float64  `json:"ndvi,omitempty"`
	EVI                *float64  `json:"evi,omitempty"`
	NDWI               *float64  `json:"ndwi,omitempty"`
	SAVI               *float64  `json:"savi,omitempty"`
	CloudCoveragePct   *float64  `json:"cloud_coverage_percent,omitempty"`
	SpatialResolutionM *float64  `json:"spatial_resolution_m,omitempty"`
	CreatedAt          time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy          string    `json:"created_by" gorm:"not null;default:'system';size:100"`
	// 关联关系
	Parcel Parcel `json:"parcel,omitempty" gorm:"foreignKey:ParcelID"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (o *IndexObservation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedBy == "" {
		o.CreatedBy = "system"
	}
	return nil
}
