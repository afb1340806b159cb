/*
 * @module service/prescription/prescription_service
 * @description 处方图服务：基于最近评估生成处方图草稿、查询和线性状态流转命令
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow draft -> approved -> applied -> completed（外部命令推进，生成时恒为draft）
 * @rules 处方图只追加不修改，重新生成产生新记录；并发生成互不冲突，各自产出独立草稿
 * @dependencies gorm.io/gorm, cropwatch-service/service/models
 * @refs service/prescription/zone_generator.go, service/prescription/export.go
 */

package prescription

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/metrics"
	"cropwatch-service/service/models"
)

// GenerateRequest 处方图生成请求
type GenerateRequest struct {
	ParcelID          string   `json:"parcel_id"`
	MapType           string   `json:"map_type"` // fertilizer / irrigation / pesticide
	CropName          string   `json:"crop_name"`
	GrowthStage       string   `json:"growth_stage"`
	ApplicationMethod string   `json:"application_method"`
	EstimatedCost     *float64 `json:"estimated_cost,omitempty"`
}

// PrescriptionService 处方图服务
type PrescriptionService struct {
	db *gorm.DB
}

// NewPrescriptionService 创建处方图服务实例
func NewPrescriptionService(db *gorm.DB) *PrescriptionService {
	return &PrescriptionService{db: db}
}

// Generate 基于地块最近一次评估生成处方图草稿
// 成本与施用方式由调用方提供，不做派生；生成的处方图状态恒为 draft
func (s *PrescriptionService) Generate(ctx context.Context, req *GenerateRequest) (*models.PrescriptionMap, error) {
	mapType := meta.MapType(req.MapType)
	if !mapType.IsValid() {
		return nil, apperrors.OutOfRange("map_type", "未知的处方图作业类型 %s", req.MapType)
	}

	var latest models.HealthAssessment
	err := s.db.WithContext(ctx).
		Where("parcel_id = ?", req.ParcelID).
		Order("assessment_date DESC").
		First(&latest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.InsufficientData("parcel_id",
				"地块 %s 没有任何健康评估，无法生成处方图", req.ParcelID)
		}
		return nil, fmt.Errorf("查询地块最近评估失败: %w", err)
	}

	zones, err := GenerateZones(&latest, mapType)
	if err != nil {
		return nil, err
	}

	prescription := &models.PrescriptionMap{
		ParcelID:           req.ParcelID,
		SourceAssessmentID: latest.ID,
		MapType:            req.MapType,
		CropName:           req.CropName,
		GrowthStage:        req.GrowthStage,
		Status:             string(meta.MapStatusDraft),
		Zones:              zones,
		EstimatedCost:      req.EstimatedCost,
		ApplicationMethod:  req.ApplicationMethod,
	}

	if err := s.db.WithContext(ctx).Create(prescription).Error; err != nil {
		return nil, fmt.Errorf("处方图落库失败: %w", err)
	}
	metrics.PrescriptionMapsGenerated.WithLabelValues(req.MapType).Inc()

	return prescription, nil
}

// GetByID 根据ID查询处方图
func (s *PrescriptionService) GetByID(ctx context.Context, id string) (*models.PrescriptionMap, error) {
	var prescription models.PrescriptionMap
	if err := s.db.WithContext(ctx).First(&prescription, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("处方图 %s 不存在: %w", id, err)
	}
	return &prescription, nil
}

// List 分页查询处方图，可按地块和状态过滤
func (s *PrescriptionService) List(ctx context.Context, parcelID, status string, page, size int) ([]models.PrescriptionMap, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PrescriptionMap{})
	if parcelID != "" {
		query = query.Where("parcel_id = ?", parcelID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计处方图数量失败: %w", err)
	}

	var maps []models.PrescriptionMap
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&maps).Error; err != nil {
		return nil, 0, fmt.Errorf("查询处方图列表失败: %w", err)
	}

	return maps, total, nil
}

// UpdateStatus 推进处方图状态，只允许线性前进一步
// 分区列表不随状态命令变更；非法流转返回 invalid_transition
func (s *PrescriptionService) UpdateStatus(ctx context.Context, id string, target meta.MapStatus) (*models.PrescriptionMap, error) {
	var prescription models.PrescriptionMap
	if err := s.db.WithContext(ctx).First(&prescription, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("处方图 %s 不存在: %w", id, err)
	}

	current := meta.MapStatus(prescription.Status)
	if !current.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("status",
			"处方图状态不允许从 %s 流转到 %s", current, target)
	}

	result := s.db.WithContext(ctx).Model(&models.PrescriptionMap{}).
		Where("id = ? AND status = ?", id, prescription.Status).
		Update("status", string(target))
	if result.Error != nil {
		return nil, fmt.Errorf("更新处方图状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.InvalidTransition("status",
			"处方图 %s 状态已被并发修改，流转被拒绝", id)
	}

	prescription.Status = string(target)
	return &prescription, nil
}
