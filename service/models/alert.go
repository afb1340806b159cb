/*
 * @module service/models/alert
 * @description 阈值告警模型与告警阈值配置模型定义
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow active -> acknowledged -> resolved（允许 active 直接 resolved，resolved 为终态）
 * @rules 告警只通过合法状态流转被修改，不允许删除；已解决告警不可变更，同条件再次触发创建新告警
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/alert/evaluator.go, service/alert/alert_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Alert 阈值告警模型
// 每条记录对应一次阈值突破，由告警评估器创建，状态流转之外的字段不可变更
type Alert struct {
	ID                    string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ParcelID              string           `json:"parcel_id" gorm:"not null;type:varchar(36);index"`
	AlertType             string           `json:"alert_type" gorm:"not null;size:50"` // ndvi_drop / health_decline
	Severity              string           `json:"severity" gorm:"not null;size:20"`   // low / medium / high / critical
	Status                string           `json:"status" gorm:"not null;default:'active';size:20;index"`
	Message               string           `json:"message" gorm:"size:1000"`
	TriggerValues         JSONB            `json:"trigger_values" gorm:"type:jsonb"` // 评估时检查过的全部指标值
	NDVIChange            *float64         `json:"ndvi_change,omitempty"`
	AffectedAreaPct       *float64         `json:"affected_area_percentage,omitempty"`
	Recommendations       JSONBStringArray `json:"recommendations" gorm:"type:jsonb"`
	SourceAssessmentID    string           `json:"source_assessment_id" gorm:"type:varchar(36)"`
	CreatedAt             time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	AcknowledgedAt        *time.Time       `json:"acknowledged_at,omitempty"`
	ResolvedAt            *time.Time       `json:"resolved_at,omitempty"`
	// 关联关系
	Parcel Parcel `json:"parcel,omitempty" gorm:"foreignKey:ParcelID"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// AlertThresholdConfig 告警阈值配置模型
// 阈值与幅度分档按租户/地块可配置，默认配置由迁移种子数据提供
// Script 为可选的自定义触发条件脚本（yaegi 执行），为空时使用内置阈值比较
type AlertThresholdConfig struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AlertType      string    `json:"alert_type" gorm:"not null;size:50;uniqueIndex:idx_threshold_type_parcel"`
	ParcelID       string    `json:"parcel_id" gorm:"size:36;default:'';uniqueIndex:idx_threshold_type_parcel"` // 空串表示全局默认
	TriggerBelow   float64   `json:"trigger_below"`                                                             // 变化量低于该负值时触发
	MediumBelow    float64   `json:"medium_below"`                                                              // 变化量低于该值升级为 medium
	HighBelow      float64   `json:"high_below"`                                                                // 变化量低于该值升级为 high
	CriticalBelow  float64   `json:"critical_below"`                                                            // 变化量低于该值升级为 critical
	Script         string    `json:"script" gorm:"type:text"`
	ScriptEnabled  bool      `json:"script_enabled" gorm:"not null;default:false"`
	IsEnabled      bool      `json:"is_enabled" gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy      string    `json:"created_by" gorm:"not null;default:'system';size:100"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy      string    `json:"updated_by" gorm:"not null;default:'system';size:100"`
}

// BeforeCreate 创建前钩子
func (c *AlertThresholdConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedBy == "" {
		c.CreatedBy = "system"
	}
	if c.UpdatedBy == "" {
		c.UpdatedBy = "system"
	}
	return nil
}

// BeforeUpdate 更新前钩子
func (c *AlertThresholdConfig) BeforeUpdate(tx *gorm.DB) error {
	if c.UpdatedBy == "" {
		c.UpdatedBy = "system"
	}
	return nil
}
