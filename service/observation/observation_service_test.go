package observation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/models"
	"cropwatch-service/testutil"
)

func newObservationServiceForTest() (*ObservationService, *testutil.TestDB, *testutil.TestDataFactory) {
	testDB := testutil.NewTestDB()
	factory := testutil.NewTestDataFactory(testDB.DB)
	return NewObservationService(testDB.DB), testDB, factory
}

func TestNormalizeRecord_宽松类型载荷(t *testing.T) {
	record, err := NormalizeRecord(map[string]interface{}{
		"parcel_id":              "parcel-1",
		"scene_id":               "S2A_20250610",
		"acquisition_date":       "2025-06-10T00:00:00Z",
		"ndvi":                   "0.62",       // 字符串形式的数值
		"evi":                    0.41,         // 原生浮点
		"cloud_coverage_percent": 5,            // 整数
		"spatial_resolution_m":   float32(10), // 单精度
	})

	assert.NoError(t, err)
	assert.Equal(t, "parcel-1", record.ParcelID)
	assert.Equal(t, "S2A_20250610", record.SceneID)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), record.AcquisitionDate.UTC())
	assert.InDelta(t, 0.62, *record.NDVI, 1e-9)
	assert.InDelta(t, 0.41, *record.EVI, 1e-9)
	assert.InDelta(t, 5, *record.CloudCoveragePct, 1e-9)
	assert.InDelta(t, 10, *record.SpatialResolutionM, 1e-6)
	// 未出现的指数字段保持缺失
	assert.Nil(t, record.NDWI)
	assert.Nil(t, record.SAVI)
}

func TestNormalizeRecord_采集日期非法拒绝(t *testing.T) {
	_, err := NormalizeRecord(map[string]interface{}{
		"parcel_id":        "parcel-1",
		"acquisition_date": "not-a-date",
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestNormalizeRecord_数值字段非法拒绝(t *testing.T) {
	_, err := NormalizeRecord(map[string]interface{}{
		"parcel_id":        "parcel-1",
		"acquisition_date": "2025-06-10T00:00:00Z",
		"ndvi":             "abc",
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestIngestBatch_乱序批次按日期重排入库(t *testing.T) {
	service, testDB, factory := newObservationServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	records := []ObservationRecord{
		{ParcelID: parcel.ID, AcquisitionDate: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), NDVI: testutil.FloatPtr(0.70)},
		{ParcelID: parcel.ID, AcquisitionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), NDVI: testutil.FloatPtr(0.55)},
		{ParcelID: parcel.ID, AcquisitionDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), NDVI: testutil.FloatPtr(0.62)},
	}

	count, err := service.IngestBatch(context.Background(), records)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	var stored []models.IndexObservation
	assert.NoError(t, testDB.DB.Order("created_at ASC, acquisition_date ASC").Find(&stored).Error)
	assert.Len(t, stored, 3)
	// 入库顺序为采集日期升序
	assert.True(t, stored[0].AcquisitionDate.Before(stored[1].AcquisitionDate))
	assert.True(t, stored[1].AcquisitionDate.Before(stored[2].AcquisitionDate))
}

func TestIngestBatch_云量越界整批拒绝(t *testing.T) {
	service, testDB, factory := newObservationServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	records := []ObservationRecord{
		{ParcelID: parcel.ID, AcquisitionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), NDVI: testutil.FloatPtr(0.55)},
		{ParcelID: parcel.ID, AcquisitionDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), CloudCoveragePct: testutil.FloatPtr(120)},
	}

	count, err := service.IngestBatch(context.Background(), records)
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
	assert.Zero(t, count)

	// 合法条目也不入库
	var total int64
	testDB.DB.Model(&models.IndexObservation{}).Count(&total)
	assert.Zero(t, total)
}

func TestIngestBatch_缺地块标识拒绝(t *testing.T) {
	service, testDB, _ := newObservationServiceForTest()
	defer testDB.Close()

	_, err := service.IngestBatch(context.Background(), []ObservationRecord{
		{AcquisitionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestIngestBatch_分辨率必须为正(t *testing.T) {
	service, testDB, factory := newObservationServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	_, err := service.IngestBatch(context.Background(), []ObservationRecord{
		{
			ParcelID:           parcel.ID,
			AcquisitionDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			SpatialResolutionM: testutil.FloatPtr(0),
		},
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestIngestBatch_指数缺失与零值区分(t *testing.T) {
	service, testDB, factory := newObservationServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	_, err := service.IngestBatch(context.Background(), []ObservationRecord{
		{
			ParcelID:        parcel.ID,
			AcquisitionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			NDVI:            testutil.FloatPtr(0), // 裸土零值是合法观测
		},
	})
	assert.NoError(t, err)

	var stored models.IndexObservation
	assert.NoError(t, testDB.DB.First(&stored, "parcel_id = ?", parcel.ID).Error)
	assert.NotNil(t, stored.NDVI)
	assert.Zero(t, *stored.NDVI)
	assert.Nil(t, stored.EVI)
}

func TestListByParcel_窗口过滤(t *testing.T) {
	service, testDB, factory := newObservationServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	now := time.Now()
	factory.CreateObservation(parcel.ID, now.AddDate(0, 0, -60))
	factory.CreateObservation(parcel.ID, now.AddDate(0, 0, -10))
	factory.CreateObservation(parcel.ID, now.AddDate(0, 0, -3))

	observations, err := service.ListByParcel(context.Background(), parcel.ID, 30)
	assert.NoError(t, err)
	assert.Len(t, observations, 2)
	assert.True(t, observations[0].AcquisitionDate.Before(observations[1].AcquisitionDate))
}
