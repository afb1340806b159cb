/*
 * @module service/observation/observation_service
 * @description 观测服务：植被指数观测批量入库、宽松载荷规范化与按窗口查询
 * @architecture 分层架构 - 业务服务层（入库边界校验）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 批量载荷 -> 规范化 -> 逐条校验 -> 按日期重排 -> 落库
 * @rules 指数缺失与零值严格区分；云量[0,100]、分辨率>0越界即拒；乱序批次按采集日期重排后入库
 * @dependencies gorm.io/gorm, github.com/spf13/cast
 * @refs client/connectors/kafka_observation_consumer.go, service/satellite/trend_aggregator.go
 */

package observation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cast"
	"gorm.io/gorm"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/metrics"
	"cropwatch-service/service/models"
)

// ObservationRecord 观测批量入库条目，形状对齐外部影像处理作业的输出
type ObservationRecord struct {
	ParcelID           string    `json:"parcel_id"`
	SceneID            string    `json:"scene_id,omitempty"`
	AcquisitionDate    time.Time `json:"acquisition_date"`
	NDVI               *float64  `json:"ndvi,omitempty"`
	EVI                *float64  `json:"evi,omitempty"`
	NDWI               *float64  `json:"ndwi,omitempty"`
	SAVI               *float64  `json:"savi,omitempty"`
	CloudCoveragePct   *float64  `json:"cloud_coverage_percent,omitempty"`
	SpatialResolutionM *float64  `json:"spatial_resolution_m,omitempty"`
}

// ObservationService 观测服务
type ObservationService struct {
	db *gorm.DB
}

// NewObservationService 创建观测服务实例
func NewObservationService(db *gorm.DB) *ObservationService {
	return &ObservationService{db: db}
}

// NormalizeRecord 将宽松类型的消息载荷规范化为观测条目
// 流式接入（Kafka/MQTT）的数值字段可能以字符串或整数形式到达，统一经 cast 转换
func NormalizeRecord(payload map[string]interface{}) (*ObservationRecord, error) {
	record := &ObservationRecord{
		ParcelID: cast.ToString(payload["parcel_id"]),
		SceneID:  cast.ToString(payload["scene_id"]),
	}

	date, err := cast.ToTimeE(payload["acquisition_date"])
	if err != nil {
		return nil, apperrors.OutOfRange("acquisition_date", "采集日期缺失或格式非法: %v", err)
	}
	record.AcquisitionDate = date

	optionalFields := map[string]**float64{
		"ndvi":                   &record.NDVI,
		"evi":                    &record.EVI,
		"ndwi":                   &record.NDWI,
		"savi":                   &record.SAVI,
		"cloud_coverage_percent": &record.CloudCoveragePct,
		"spatial_resolution_m":   &record.SpatialResolutionM,
	}
	for field, target := range optionalFields {
		raw, exists := payload[field]
		if !exists || raw == nil {
			continue
		}
		value, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, apperrors.OutOfRange(field, "数值字段解析失败: %v", err)
		}
		v := value
		*target = &v
	}

	return record, nil
}

// validateRecord 入库边界校验
func validateRecord(record *ObservationRecord) error {
	if record.ParcelID == "" {
		return apperrors.OutOfRange("parcel_id", "观测缺少地块标识")
	}
	if record.AcquisitionDate.IsZero() {
		return apperrors.OutOfRange("acquisition_date", "观测缺少采集日期")
	}
	if record.CloudCoveragePct != nil && (*record.CloudCoveragePct < 0 || *record.CloudCoveragePct > 100) {
		return apperrors.OutOfRange("cloud_coverage_percent",
			"云量 %.2f 超出 [0,100]", *record.CloudCoveragePct)
	}
	if record.SpatialResolutionM != nil && *record.SpatialResolutionM <= 0 {
		return apperrors.OutOfRange("spatial_resolution_m",
			"空间分辨率 %.2f 必须为正", *record.SpatialResolutionM)
	}
	return nil
}

// IngestBatch 批量入库观测
// 任一条目校验失败整批拒绝；批内按采集日期升序重排后落库
func (s *ObservationService) IngestBatch(ctx context.Context, records []ObservationRecord) (int, error) {
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			metrics.IngestRejected.WithLabelValues("observation_invalid").Inc()
			return 0, err
		}
	}

	// 趋势与告警只定义在连续日期序上，乱序批次入库前重排
	sorted := make([]ObservationRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AcquisitionDate.Before(sorted[j].AcquisitionDate)
	})

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range sorted {
			observation := models.IndexObservation{
				ParcelID:           record.ParcelID,
				SceneID:            record.SceneID,
				AcquisitionDate:    record.AcquisitionDate,
				NDVI:               record.NDVI,
				EVI:                record.EVI,
				NDWI:               record.NDWI,
				SAVI:               record.SAVI,
				CloudCoveragePct:   record.CloudCoveragePct,
				SpatialResolutionM: record.SpatialResolutionM,
			}
			if err := tx.Create(&observation).Error; err != nil {
				return fmt.Errorf("观测落库失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.ObservationsIngested.Add(float64(len(sorted)))
	slog.Info("观测批量入库完成", "count", len(sorted))
	return len(sorted), nil
}

// ListByParcel 查询地块在回看窗口内的观测，按采集日期升序
func (s *ObservationService) ListByParcel(ctx context.Context, parcelID string, windowDays int) ([]models.IndexObservation, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var observations []models.IndexObservation
	if err := s.db.WithContext(ctx).
		Where("parcel_id = ? AND acquisition_date >= ?", parcelID, cutoff).
		Order("acquisition_date ASC").
		Find(&observations).Error; err != nil {
		return nil, fmt.Errorf("查询观测失败: %w", err)
	}
	return observations, nil
}
