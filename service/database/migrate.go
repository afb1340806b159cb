/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构并写入默认告警阈值
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致；全局默认阈值只在缺失时写入，不覆盖运维修改
 * @dependencies cropwatch-service/service/models, gorm.io/gorm
 * @refs dev_docs/backend_requirements.md, service/meta/alert.go
 */

package database

import (
	"log"

	"gorm.io/gorm"

	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 地块与遥感观测相关表
	err := db.AutoMigrate(
		&models.Parcel{},
		&models.IndexObservation{},
		&models.HealthAssessment{},
	)
	if err != nil {
		return err
	}

	// 告警相关表
	err = db.AutoMigrate(
		&models.Alert{},
		&models.AlertThresholdConfig{},
	)
	if err != nil {
		return err
	}

	// 处方图相关表
	err = db.AutoMigrate(
		&models.PrescriptionMap{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
// 为每种告警类型写入全局默认阈值（parcel_id 为空），已存在的记录不覆盖
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	for alertType, defaults := range meta.DefaultAlertThresholds {
		var count int64
		if err := db.Model(&models.AlertThresholdConfig{}).
			Where("alert_type = ? AND parcel_id = ?", string(alertType), "").
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		config := models.AlertThresholdConfig{
			AlertType:    string(alertType),
			ParcelID:     "",
			TriggerBelow: defaults.TriggerBelow,
			MediumBelow:  defaults.MediumBelow,
			HighBelow:    defaults.HighBelow,
			CriticalBelow: defaults.CriticalBelow,
			IsEnabled:    true,
		}
		if err := db.Create(&config).Error; err != nil {
			log.Printf("初始化默认告警阈值失败: %v", err)
			return err
		}
		log.Printf("已写入全局默认告警阈值: %s", alertType)
	}

	log.Println("基础数据初始化完成")
	return nil
}
