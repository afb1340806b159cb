/*
 * @module service/assessment/assessment_service
 * @description 评估服务：健康评估批量入库、最近评估缓存、趋势汇总查询与告警评估联动
 * @architecture 分层架构 - 业务服务层（入库边界校验）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 评估批量载荷 -> 校验 -> 按日期重排落库 -> 写缓存 -> 触发告警评估
 * @rules 健康总分[0,100]、问题区域面积之和≤100、胁迫置信度[0,1]，违反即拒；评估落库后同步触发该地块的告警评估
 * @dependencies gorm.io/gorm, cropwatch-service/service/satellite, cropwatch-service/service/alert
 * @refs service/satellite/trend_aggregator.go, service/alert/alert_service.go
 */

package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"cropwatch-service/service/alert"
	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/metrics"
	"cropwatch-service/service/models"
	"cropwatch-service/service/satellite"
)

// AssessmentRecord 评估批量入库条目，形状对齐周期性评估作业的输出
type AssessmentRecord struct {
	ParcelID           string                    `json:"parcel_id"`
	AssessmentDate     time.Time                 `json:"assessment_date"`
	OverallHealthScore *float64                  `json:"overall_health_score,omitempty"`
	NDVIAvg            *float64                  `json:"ndvi_avg,omitempty"`
	NDVIMin            *float64                  `json:"ndvi_min,omitempty"`
	NDVIMax            *float64                  `json:"ndvi_max,omitempty"`
	NDVIStd            *float64                  `json:"ndvi_std,omitempty"`
	GrowthStage        string                    `json:"growth_stage,omitempty"`
	ProblemAreas       models.ProblemAreaList    `json:"problem_areas,omitempty"`
	StressIndicators   models.StressIndicatorMap `json:"stress_indicators,omitempty"`
	Recommendations    models.RecommendationList `json:"recommendations,omitempty"`
	PredictedYield     *float64                  `json:"predicted_yield,omitempty"`
}

// LatestCache 最近评估缓存能力，由Redis缓存实现
type LatestCache interface {
	SetLatest(ctx context.Context, assessment *models.HealthAssessment) error
	GetLatest(ctx context.Context, parcelID string) (*models.HealthAssessment, error)
}

// AssessmentService 评估服务
type AssessmentService struct {
	db           *gorm.DB
	aggregator   *satellite.TrendAggregator
	alertService *alert.AlertService
	cache        LatestCache // 可为 nil，缓存不可用时直接读库
}

// NewAssessmentService 创建评估服务实例
func NewAssessmentService(db *gorm.DB, alertService *alert.AlertService, assessmentCache LatestCache) *AssessmentService {
	return &AssessmentService{
		db:           db,
		aggregator:   satellite.NewTrendAggregator(),
		alertService: alertService,
		cache:        assessmentCache,
	}
}

// validateRecord 入库边界校验
func validateRecord(record *AssessmentRecord) error {
	if record.ParcelID == "" {
		return apperrors.OutOfRange("parcel_id", "评估缺少地块标识")
	}
	if record.AssessmentDate.IsZero() {
		return apperrors.OutOfRange("assessment_date", "评估缺少评估日期")
	}
	if record.OverallHealthScore != nil && (*record.OverallHealthScore < 0 || *record.OverallHealthScore > 100) {
		return apperrors.OutOfRange("overall_health_score",
			"健康总分 %.2f 超出 [0,100]", *record.OverallHealthScore)
	}
	if total := record.ProblemAreas.TotalAreaPercentage(); total > 100 {
		return apperrors.InvariantViolation("problem_areas",
			"问题区域面积占比之和 %.4f 超过100", total)
	}
	for _, area := range record.ProblemAreas {
		if area.AreaPercentage < 0 || area.AreaPercentage > 100 {
			return apperrors.OutOfRange("problem_areas.area_percentage",
				"问题区域面积占比 %.4f 超出 [0,100]", area.AreaPercentage)
		}
	}
	for name, indicator := range record.StressIndicators {
		if indicator.Confidence < 0 || indicator.Confidence > 1 {
			return apperrors.OutOfRange("stress_indicators."+name,
				"胁迫置信度 %.4f 超出 [0,1]", indicator.Confidence)
		}
	}
	return nil
}

// IngestBatch 批量入库评估
// 任一条目校验失败整批拒绝；批内按评估日期升序重排；落库后逐地块触发告警评估
func (s *AssessmentService) IngestBatch(ctx context.Context, records []AssessmentRecord) (int, error) {
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			metrics.IngestRejected.WithLabelValues("assessment_invalid").Inc()
			return 0, err
		}
	}

	sorted := make([]AssessmentRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AssessmentDate.Before(sorted[j].AssessmentDate)
	})

	parcels := make(map[string]struct{})
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range sorted {
			assessment := models.HealthAssessment{
				ParcelID:           record.ParcelID,
				AssessmentDate:     record.AssessmentDate,
				OverallHealthScore: record.OverallHealthScore,
				NDVIAvg:            record.NDVIAvg,
				NDVIMin:            record.NDVIMin,
				NDVIMax:            record.NDVIMax,
				NDVIStd:            record.NDVIStd,
				GrowthStage:        record.GrowthStage,
				ProblemAreas:       record.ProblemAreas,
				StressIndicators:   record.StressIndicators,
				Recommendations:    record.Recommendations,
				PredictedYield:     record.PredictedYield,
			}
			if err := tx.Create(&assessment).Error; err != nil {
				return fmt.Errorf("评估落库失败: %w", err)
			}
			parcels[record.ParcelID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.AssessmentsIngested.Add(float64(len(sorted)))

	for parcelID := range parcels {
		if s.cache != nil {
			s.refreshLatestCache(ctx, parcelID)
		}
		if s.alertService != nil {
			if _, evalErr := s.alertService.EvaluateParcel(ctx, parcelID); evalErr != nil {
				slog.Error("评估入库后的告警评估失败", "parcel_id", parcelID, "error", evalErr)
			}
		}
	}

	slog.Info("评估批量入库完成", "count", len(sorted), "parcels", len(parcels))
	return len(sorted), nil
}

// refreshLatestCache 以库内最新一条评估刷新缓存
// 回填历史批次时库内可能已有更新的评估，不得把批内最新当作地块最新覆盖缓存
func (s *AssessmentService) refreshLatestCache(ctx context.Context, parcelID string) {
	var latest models.HealthAssessment
	if err := s.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("assessment_date DESC").
		First(&latest).Error; err != nil {
		slog.Warn("查询地块最新评估失败，跳过缓存刷新", "parcel_id", parcelID, "error", err)
		return
	}

	if err := s.cache.SetLatest(ctx, &latest); err != nil {
		slog.Warn("写入最近评估缓存失败", "parcel_id", parcelID, "error", err)
	}
}

// GetLatest 查询地块最近一次评估，优先命中缓存
func (s *AssessmentService) GetLatest(ctx context.Context, parcelID string) (*models.HealthAssessment, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLatest(ctx, parcelID)
		if err != nil {
			slog.Warn("读取最近评估缓存失败，回源数据库", "parcel_id", parcelID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	var assessment models.HealthAssessment
	err := s.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("assessment_date DESC").
		First(&assessment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.InsufficientData("parcel_id",
				"地块 %s 没有任何健康评估", parcelID)
		}
		return nil, fmt.Errorf("查询最近评估失败: %w", err)
	}
	return &assessment, nil
}

// GetTrend 生成地块回看窗口内的趋势汇总
// 窗口内无数据不是错误，统计量退化为"无数据"哨兵
func (s *AssessmentService) GetTrend(ctx context.Context, parcelID string, windowDays int) (*satellite.TrendSummary, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var assessments []models.HealthAssessment
	if err := s.db.WithContext(ctx).
		Where("parcel_id = ? AND assessment_date >= ?", parcelID, cutoff).
		Order("assessment_date ASC").
		Find(&assessments).Error; err != nil {
		return nil, fmt.Errorf("查询评估序列失败: %w", err)
	}

	var observations []models.IndexObservation
	if err := s.db.WithContext(ctx).
		Where("parcel_id = ? AND acquisition_date >= ?", parcelID, cutoff).
		Order("acquisition_date ASC").
		Find(&observations).Error; err != nil {
		return nil, fmt.Errorf("查询观测序列失败: %w", err)
	}

	return s.aggregator.Summarize(parcelID, assessments, observations, windowDays), nil
}
