package prescription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
	"cropwatch-service/testutil"
)

func newPrescriptionServiceForTest() (*PrescriptionService, *testutil.TestDB, *testutil.TestDataFactory) {
	testDB := testutil.NewTestDB()
	factory := testutil.NewTestDataFactory(testDB.DB)
	return NewPrescriptionService(testDB.DB), testDB, factory
}

func TestGenerate_基于最近评估产出草稿(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)
	latest := factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 55,
		func(a *models.HealthAssessment) {
			a.ProblemAreas = models.ProblemAreaList{
				{Type: "water_stress", Severity: "high", AreaPercentage: 30},
			}
		})

	prescription, err := service.Generate(context.Background(), &GenerateRequest{
		ParcelID:          parcel.ID,
		MapType:           string(meta.MapIrrigation),
		CropName:          "冬小麦",
		GrowthStage:       "拔节期",
		ApplicationMethod: "喷灌",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, prescription.ID)
	assert.Equal(t, string(meta.MapStatusDraft), prescription.Status)
	assert.Equal(t, latest.ID, prescription.SourceAssessmentID)
	assert.Len(t, prescription.Zones, 2)

	// 落库后可回读，分区结构完整
	stored, err := service.GetByID(context.Background(), prescription.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Zones, 2)
	assert.InDelta(t, 100, stored.Zones.TotalAreaPercentage(), AreaTolerance)
}

func TestGenerate_无评估历史拒绝(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()

	_, err := service.Generate(context.Background(), &GenerateRequest{
		ParcelID: parcel.ID,
		MapType:  string(meta.MapFertilizer),
	})
	assert.Equal(t, apperrors.ErrorTypeInsufficientData, apperrors.TypeOf(err))
}

func TestGenerate_未知作业类型拒绝(t *testing.T) {
	service, testDB, _ := newPrescriptionServiceForTest()
	defer testDB.Close()

	_, err := service.Generate(context.Background(), &GenerateRequest{
		ParcelID: "parcel-1",
		MapType:  "seeding",
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestGenerate_重复生成各自独立(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 80)

	req := &GenerateRequest{ParcelID: parcel.ID, MapType: string(meta.MapFertilizer)}
	first, err := service.Generate(context.Background(), req)
	assert.NoError(t, err)
	second, err := service.Generate(context.Background(), req)
	assert.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	_, total, err := service.List(context.Background(), parcel.ID, "", 1, 10)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestUpdateStatus_线性推进(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	prescription := factory.CreatePrescriptionMap(parcel.ID)

	for _, target := range []meta.MapStatus{
		meta.MapStatusApproved,
		meta.MapStatusApplied,
		meta.MapStatusCompleted,
	} {
		updated, err := service.UpdateStatus(context.Background(), prescription.ID, target)
		assert.NoError(t, err)
		assert.Equal(t, string(target), updated.Status)
	}
}

func TestUpdateStatus_跳步与回退拒绝(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	prescription := factory.CreatePrescriptionMap(parcel.ID)

	// draft 直接跳到 applied
	_, err := service.UpdateStatus(context.Background(), prescription.ID, meta.MapStatusApplied)
	assert.Equal(t, apperrors.ErrorTypeInvalidTransition, apperrors.TypeOf(err))

	_, err = service.UpdateStatus(context.Background(), prescription.ID, meta.MapStatusApproved)
	assert.NoError(t, err)

	// approved 回退到 draft
	_, err = service.UpdateStatus(context.Background(), prescription.ID, meta.MapStatusDraft)
	assert.Equal(t, apperrors.ErrorTypeInvalidTransition, apperrors.TypeOf(err))
}

func TestUpdateStatus_状态命令不改动分区(t *testing.T) {
	service, testDB, factory := newPrescriptionServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	prescription := factory.CreatePrescriptionMap(parcel.ID)
	originalZones := prescription.Zones

	_, err := service.UpdateStatus(context.Background(), prescription.ID, meta.MapStatusApproved)
	assert.NoError(t, err)

	stored, err := service.GetByID(context.Background(), prescription.ID)
	assert.NoError(t, err)
	assert.Equal(t, len(originalZones), len(stored.Zones))
	assert.InDelta(t, originalZones.TotalAreaPercentage(), stored.Zones.TotalAreaPercentage(), AreaTolerance)
}
