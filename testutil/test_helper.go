/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cropwatch-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Parcel{},
		&models.IndexObservation{},
		&models.HealthAssessment{},
		&models.Alert{},
		&models.AlertThresholdConfig{},
		&models.PrescriptionMap{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"parcels",
		"index_observations",
		"health_assessments",
		"alerts",
		"alert_threshold_configs",
		"prescription_maps",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// FloatPtr 返回浮点指针，测试数据常用
func FloatPtr(v float64) *float64 {
	return &v
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ParcelOption 地块选项函数类型
type ParcelOption func(*models.Parcel)

// CreateParcel 创建测试地块
func (f *TestDataFactory) CreateParcel(opts ...ParcelOption) *models.Parcel {
	parcel := &models.Parcel{
		ID:       generateID("parcel"),
		Name:     "测试地块",
		CropName: "冬小麦",
		AreaHa:   FloatPtr(12.5),
		Status:   "active",
	}

	// 应用选项
	for _, opt := range opts {
		opt(parcel)
	}

	err := f.DB.Create(parcel).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test parcel: %v", err))
	}

	return parcel
}

// ObservationOption 观测选项函数类型
type ObservationOption func(*models.IndexObservation)

// CreateObservation 创建测试观测
func (f *TestDataFactory) CreateObservation(parcelID string, acquisitionDate time.Time, opts ...ObservationOption) *models.IndexObservation {
	observation := &models.IndexObservation{
		ParcelID:           parcelID,
		SceneID:            "scene_" + generateSuffix(),
		AcquisitionDate:    acquisitionDate,
		NDVI:               FloatPtr(0.62),
		EVI:                FloatPtr(0.41),
		NDWI:               FloatPtr(0.18),
		SAVI:               FloatPtr(0.48),
		CloudCoveragePct:   FloatPtr(5),
		SpatialResolutionM: FloatPtr(10),
	}

	// 应用选项
	for _, opt := range opts {
		opt(observation)
	}

	err := f.DB.Create(observation).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test observation: %v", err))
	}

	return observation
}

// AssessmentOption 评估选项函数类型
type AssessmentOption func(*models.HealthAssessment)

// CreateAssessment 创建测试健康评估
func (f *TestDataFactory) CreateAssessment(parcelID string, assessmentDate time.Time, healthScore float64, opts ...AssessmentOption) *models.HealthAssessment {
	assessment := &models.HealthAssessment{
		ParcelID:           parcelID,
		AssessmentDate:     assessmentDate,
		OverallHealthScore: FloatPtr(healthScore),
		NDVIAvg:            FloatPtr(0.6),
		NDVIMin:            FloatPtr(0.35),
		NDVIMax:            FloatPtr(0.8),
		NDVIStd:            FloatPtr(0.08),
		GrowthStage:        "拔节期",
		ProblemAreas:       models.ProblemAreaList{},
		StressIndicators:   models.StressIndicatorMap{},
	}

	// 应用选项
	for _, opt := range opts {
		opt(assessment)
	}

	err := f.DB.Create(assessment).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test assessment: %v", err))
	}

	return assessment
}

// AlertOption 告警选项函数类型
type AlertOption func(*models.Alert)

// CreateAlert 创建测试告警
func (f *TestDataFactory) CreateAlert(parcelID string, opts ...AlertOption) *models.Alert {
	alert := &models.Alert{
		ParcelID:  parcelID,
		AlertType: "health_decline",
		Severity:  "medium",
		Status:    "active",
		Message:   "健康总分显著下滑",
	}

	// 应用选项
	for _, opt := range opts {
		opt(alert)
	}

	err := f.DB.Create(alert).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test alert: %v", err))
	}

	return alert
}

// ThresholdConfigOption 阈值配置选项函数类型
type ThresholdConfigOption func(*models.AlertThresholdConfig)

// CreateThresholdConfig 创建测试告警阈值配置
func (f *TestDataFactory) CreateThresholdConfig(alertType, parcelID string, opts ...ThresholdConfigOption) *models.AlertThresholdConfig {
	config := &models.AlertThresholdConfig{
		AlertType:     alertType,
		ParcelID:      parcelID,
		TriggerBelow:  -10,
		MediumBelow:   -15,
		HighBelow:     -20,
		CriticalBelow: -30,
		IsEnabled:     true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(config)
	}

	err := f.DB.Create(config).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test threshold config: %v", err))
	}

	return config
}

// PrescriptionOption 处方图选项函数类型
type PrescriptionOption func(*models.PrescriptionMap)

// CreatePrescriptionMap 创建测试处方图
func (f *TestDataFactory) CreatePrescriptionMap(parcelID string, opts ...PrescriptionOption) *models.PrescriptionMap {
	prescription := &models.PrescriptionMap{
		ParcelID: parcelID,
		MapType:  "fertilizer",
		CropName: "冬小麦",
		Status:   "draft",
		Zones: models.ZoneList{
			{
				ID:              "zone-1",
				Name:            "高产区",
				AreaPercentage:  70,
				HealthScore:     80,
				ApplicationRate: 50,
				Color:           "#15803d",
			},
			{
				ID:              "zone-2",
				Name:            "胁迫区",
				AreaPercentage:  30,
				HealthScore:     40,
				ApplicationRate: 65,
				Color:           "#f59e0b",
			},
		},
	}

	// 应用选项
	for _, opt := range opts {
		opt(prescription)
	}

	err := f.DB.Create(prescription).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test prescription map: %v", err))
	}

	return prescription
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// TestTransaction 测试事务辅助工具
type TestTransaction struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewTestTransaction 创建测试事务
func NewTestTransaction(db *gorm.DB) *TestTransaction {
	tx := db.Begin()
	return &TestTransaction{
		db: db,
		tx: tx,
	}
}

// DB 获取事务数据库
func (tt *TestTransaction) DB() *gorm.DB {
	return tt.tx
}

// Commit 提交事务
func (tt *TestTransaction) Commit() {
	tt.tx.Commit()
}

// Rollback 回滚事务
func (tt *TestTransaction) Rollback() {
	tt.tx.Rollback()
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
