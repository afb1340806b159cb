/*
 * @module service/alert/alert_service
 * @description 告警服务：评估落库、告警查询、确认/解决状态流转命令和阈值配置管理
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 评估产出告警 -> active落库 -> acknowledge/resolve 命令流转 -> resolved 终态
 * @rules 状态流转前校验当前状态，非法流转返回 invalid_transition 而非静默接受；同一告警的并发流转由分布式锁串行化
 * @dependencies gorm.io/gorm, cropwatch-service/service/distributed_lock
 * @refs service/alert/evaluator.go, service/models/alert.go
 */

package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/distributed_lock"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/metrics"
	"cropwatch-service/service/models"
)

// 状态流转锁的持有时长，覆盖单次数据库更新的最坏耗时
const transitionLockTTL = 10 * time.Second

// AlertService 告警服务
type AlertService struct {
	db        *gorm.DB
	evaluator *Evaluator
	lock      distributed_lock.DistributedLock // 可为 nil（单实例部署），此时退化为仅依赖数据库
}

// NewAlertService 创建告警服务实例
func NewAlertService(db *gorm.DB, lock distributed_lock.DistributedLock) *AlertService {
	return &AlertService{
		db:        db,
		evaluator: NewEvaluator(),
		lock:      lock,
	}
}

// EvaluateParcel 对地块执行一轮告警评估并持久化新增告警
// 历史评估不足两条时返回未评估的空结果（无操作，不是错误）
func (s *AlertService) EvaluateParcel(ctx context.Context, parcelID string) (*EvaluationResult, error) {
	var recent []models.HealthAssessment
	if err := s.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("assessment_date DESC").
		Limit(2).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("查询地块评估历史失败: %w", err)
	}

	if len(recent) < 2 {
		return &EvaluationResult{Evaluated: false}, nil
	}

	rules, err := s.effectiveRules(ctx, parcelID)
	if err != nil {
		return nil, err
	}

	result := s.evaluator.Evaluate(ctx, &recent[0], &recent[1], rules)
	for i := range result.Alerts {
		if err := s.db.WithContext(ctx).Create(&result.Alerts[i]).Error; err != nil {
			return nil, fmt.Errorf("告警落库失败: %w", err)
		}
		metrics.AlertsRaised.WithLabelValues(result.Alerts[i].AlertType, result.Alerts[i].Severity).Inc()
		slog.Info("触发告警",
			"parcel_id", parcelID,
			"alert_type", result.Alerts[i].AlertType,
			"severity", result.Alerts[i].Severity)
	}

	return &result, nil
}

// effectiveRules 取地块生效的阈值规则：地块级配置 > 全局配置 > 内置默认
func (s *AlertService) effectiveRules(ctx context.Context, parcelID string) ([]ThresholdRule, error) {
	var configs []models.AlertThresholdConfig
	if err := s.db.WithContext(ctx).
		Where("is_enabled = ? AND (parcel_id = ? OR parcel_id = '')", true, parcelID).
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("查询告警阈值配置失败: %w", err)
	}

	byType := make(map[string]*models.AlertThresholdConfig)
	for i := range configs {
		existing, ok := byType[configs[i].AlertType]
		// 地块级配置覆盖全局配置
		if !ok || (existing.ParcelID == "" && configs[i].ParcelID != "") {
			byType[configs[i].AlertType] = &configs[i]
		}
	}

	rules := make([]ThresholdRule, 0, len(byType))
	for _, config := range byType {
		rules = append(rules, RuleFromConfig(config))
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return rules, nil
}

// GetAlerts 分页查询告警，可按地块和状态过滤
func (s *AlertService) GetAlerts(ctx context.Context, parcelID, status string, page, size int) ([]models.Alert, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Alert{})
	if parcelID != "" {
		query = query.Where("parcel_id = ?", parcelID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计告警数量失败: %w", err)
	}

	var alerts []models.Alert
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("查询告警列表失败: %w", err)
	}

	return alerts, total, nil
}

// GetAlertByID 根据ID查询告警
func (s *AlertService) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("告警 %s 不存在: %w", id, err)
	}
	return &alert, nil
}

// Acknowledge 确认告警（active -> acknowledged）
func (s *AlertService) Acknowledge(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.transition(ctx, alertID, meta.AlertStatusAcknowledged)
}

// Resolve 解决告警（active/acknowledged -> resolved），resolved 为终态
func (s *AlertService) Resolve(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.transition(ctx, alertID, meta.AlertStatusResolved)
}

// transition 执行状态流转命令
// 已处于目标状态或终态的告警返回 invalid_transition 错误，不做幂等静默
func (s *AlertService) transition(ctx context.Context, alertID string, target meta.AlertStatus) (*models.Alert, error) {
	var updated *models.Alert

	apply := func() error {
		var alert models.Alert
		if err := s.db.WithContext(ctx).First(&alert, "id = ?", alertID).Error; err != nil {
			return fmt.Errorf("告警 %s 不存在: %w", alertID, err)
		}

		current := meta.AlertStatus(alert.Status)
		if !current.CanTransitionTo(target) {
			return apperrors.InvalidTransition("status",
				"告警状态不允许从 %s 流转到 %s", current, target)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": string(target)}
		switch target {
		case meta.AlertStatusAcknowledged:
			updates["acknowledged_at"] = &now
		case meta.AlertStatusResolved:
			updates["resolved_at"] = &now
		}

		// 带状态条件的更新：并发流转竞争失败时影响行数为0，按流转被拒处理上抛
		result := s.db.WithContext(ctx).Model(&models.Alert{}).
			Where("id = ? AND status = ?", alertID, alert.Status).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("更新告警状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.InvalidTransition("status",
				"告警 %s 状态已被并发修改，流转被拒绝", alertID)
		}

		if err := s.db.WithContext(ctx).First(&alert, "id = ?", alertID).Error; err != nil {
			return fmt.Errorf("读取更新后的告警失败: %w", err)
		}
		updated = &alert
		return nil
	}

	if s.lock != nil {
		locked, err := s.lock.TryLock(ctx, "alert:"+alertID, transitionLockTTL)
		if err != nil {
			slog.Warn("获取告警流转锁失败，退化为乐观并发控制", "alert_id", alertID, "error", err)
		} else if !locked {
			return nil, apperrors.InvalidTransition("status",
				"告警 %s 正在被其他请求流转", alertID)
		} else {
			defer func() {
				if unlockErr := s.lock.Unlock(ctx, "alert:"+alertID); unlockErr != nil {
					slog.Error("释放告警流转锁失败", "alert_id", alertID, "error", unlockErr)
				}
			}()
		}
	}

	if err := apply(); err != nil {
		return nil, err
	}
	return updated, nil
}

// ListThresholdConfigs 查询告警阈值配置
func (s *AlertService) ListThresholdConfigs(ctx context.Context, parcelID string) ([]models.AlertThresholdConfig, error) {
	query := s.db.WithContext(ctx).Model(&models.AlertThresholdConfig{})
	if parcelID != "" {
		query = query.Where("parcel_id = ? OR parcel_id = ''", parcelID)
	}

	var configs []models.AlertThresholdConfig
	if err := query.Order("alert_type, parcel_id").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("查询告警阈值配置失败: %w", err)
	}
	return configs, nil
}

// validateThresholdBands 校验阈值分档取值
// 触发线必须为负的变化量；分档值为0表示未设置，已设置的分档必须沿 medium/high/critical 严格递减
func validateThresholdBands(config *models.AlertThresholdConfig) error {
	if config.TriggerBelow >= 0 {
		return apperrors.OutOfRange("trigger_below",
			"触发阈值必须为负的变化量，实际 %v", config.TriggerBelow)
	}

	previous := config.TriggerBelow
	bands := []struct {
		name  string
		value float64
	}{
		{"medium_below", config.MediumBelow},
		{"high_below", config.HighBelow},
		{"critical_below", config.CriticalBelow},
	}
	for _, band := range bands {
		if band.value == 0 {
			continue
		}
		if band.value >= previous {
			return apperrors.OutOfRange(band.name,
				"分档 %s=%v 必须严格低于上一档 %v", band.name, band.value, previous)
		}
		previous = band.value
	}
	return nil
}

// SaveThresholdConfig 新建或更新告警阈值配置
func (s *AlertService) SaveThresholdConfig(ctx context.Context, config *models.AlertThresholdConfig) error {
	if !meta.AlertType(config.AlertType).IsValid() {
		return apperrors.OutOfRange("alert_type", "未知的告警类型 %s", config.AlertType)
	}
	if err := validateThresholdBands(config); err != nil {
		return err
	}

	if config.ID == "" {
		if err := s.db.WithContext(ctx).Create(config).Error; err != nil {
			return fmt.Errorf("创建告警阈值配置失败: %w", err)
		}
		return nil
	}

	if err := s.db.WithContext(ctx).Save(config).Error; err != nil {
		return fmt.Errorf("更新告警阈值配置失败: %w", err)
	}
	return nil
}
