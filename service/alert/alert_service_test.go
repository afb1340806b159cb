package alert

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

func newAlertServiceForTest() (*AlertService, *testutil.TestDB, *testutil.TestDataFactory) {
	testDB := testutil.NewTestDB()
	factory := testutil.NewTestDataFactory(testDB.DB)
	return NewAlertService(testDB.DB, nil), testDB, factory
}

func TestEvaluateParcel_历史不足两条为无操作(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.False(t, result.Evaluated)

	var count int64
	testDB.DB.Model(&models.Alert{}).Count(&count)
	assert.Zero(t, count)
}

func TestEvaluateParcel_健康下滑产出并落库(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)
	latest := factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 62)

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.True(t, result.Evaluated)
	assert.Len(t, result.Alerts, 1)

	var stored models.Alert
	assert.NoError(t, testDB.DB.First(&stored, "parcel_id = ?", parcel.ID).Error)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, string(meta.AlertHealthDecline), stored.AlertType)
	assert.Equal(t, string(meta.AlertSeverityMedium), stored.Severity)
	assert.Equal(t, string(meta.AlertStatusActive), stored.Status)
	assert.Equal(t, latest.ID, stored.SourceAssessmentID)
	assert.InDelta(t, -18.0, stored.TriggerValues["health_change"].(float64), 1e-9)
}

func TestEvaluateParcel_只取最近两次评估(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	// 更早的低分历史不应参与比较：最近两次 78 -> 75 未触发
	factory.CreateAssessment(parcel.ID, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 95)
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 78)
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 75)

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.True(t, result.Evaluated)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateParcel_地块级配置覆盖全局配置(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 62)

	// 全局配置极宽松（-18 不触发），地块级配置收紧为默认档位
	factory.CreateThresholdConfig(string(meta.AlertHealthDecline), "",
		func(c *models.AlertThresholdConfig) {
			c.TriggerBelow = -50
			c.MediumBelow = -60
			c.HighBelow = -70
			c.CriticalBelow = -80
		})
	factory.CreateThresholdConfig(string(meta.AlertHealthDecline), parcel.ID)

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.Len(t, result.Alerts, 1)
	assert.Equal(t, string(meta.AlertSeverityMedium), result.Alerts[0].Severity)
}

func TestEvaluateParcel_停用配置回退内置默认(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 62)

	// 全部配置停用时按内置默认规则评估
	factory.CreateThresholdConfig(string(meta.AlertHealthDecline), "",
		func(c *models.AlertThresholdConfig) {
			c.TriggerBelow = -50
			c.IsEnabled = false
		})

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.Len(t, result.Alerts, 1)
}

func TestTransition_确认与解决(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	alert := factory.CreateAlert(parcel.ID)

	acknowledged, err := service.Acknowledge(context.Background(), alert.ID)
	assert.NoError(t, err)
	assert.Equal(t, string(meta.AlertStatusAcknowledged), acknowledged.Status)
	assert.NotNil(t, acknowledged.AcknowledgedAt)

	resolved, err := service.Resolve(context.Background(), alert.ID)
	assert.NoError(t, err)
	assert.Equal(t, string(meta.AlertStatusResolved), resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestTransition_重复确认返回非法流转(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	alert := factory.CreateAlert(parcel.ID)

	_, err := service.Acknowledge(context.Background(), alert.ID)
	assert.NoError(t, err)

	_, err = service.Acknowledge(context.Background(), alert.ID)
	assert.Equal(t, apperrors.ErrorTypeInvalidTransition, apperrors.TypeOf(err))
}

func TestTransition_已解决告警为终态(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	alert := factory.CreateAlert(parcel.ID, func(a *models.Alert) {
		a.Status = string(meta.AlertStatusResolved)
	})

	_, err := service.Acknowledge(context.Background(), alert.ID)
	assert.Equal(t, apperrors.ErrorTypeInvalidTransition, apperrors.TypeOf(err))

	_, err = service.Resolve(context.Background(), alert.ID)
	assert.Equal(t, apperrors.ErrorTypeInvalidTransition, apperrors.TypeOf(err))
}

func TestTransition_活跃告警可直接解决(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	alert := factory.CreateAlert(parcel.ID)

	resolved, err := service.Resolve(context.Background(), alert.ID)
	assert.NoError(t, err)
	assert.Equal(t, string(meta.AlertStatusResolved), resolved.Status)
	assert.Nil(t, resolved.AcknowledgedAt)
}

func TestGetAlerts_按地块与状态过滤分页(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcelA := factory.CreateParcel()
	parcelB := factory.CreateParcel()
	factory.CreateAlert(parcelA.ID)
	factory.CreateAlert(parcelA.ID, func(a *models.Alert) {
		a.Status = string(meta.AlertStatusResolved)
	})
	factory.CreateAlert(parcelB.ID)

	alerts, total, err := service.GetAlerts(context.Background(), parcelA.ID, string(meta.AlertStatusActive), 1, 10)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, alerts, 1)
	assert.Equal(t, parcelA.ID, alerts[0].ParcelID)

	_, total, err = service.GetAlerts(context.Background(), "", "", 1, 2)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestSaveThresholdConfig_未知类型拒绝(t *testing.T) {
	service, testDB, _ := newAlertServiceForTest()
	defer testDB.Close()

	err := service.SaveThresholdConfig(context.Background(), &models.AlertThresholdConfig{
		AlertType:    "soil_moisture_drop",
		TriggerBelow: -0.1,
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))
}

func TestSaveThresholdConfig_分档必须严格递减(t *testing.T) {
	service, testDB, _ := newAlertServiceForTest()
	defer testDB.Close()

	// 触发线必须为负
	err := service.SaveThresholdConfig(context.Background(), &models.AlertThresholdConfig{
		AlertType:    string(meta.AlertNDVIDrop),
		TriggerBelow: 0.1,
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))

	// 分档不降反升
	err = service.SaveThresholdConfig(context.Background(), &models.AlertThresholdConfig{
		AlertType:    string(meta.AlertNDVIDrop),
		TriggerBelow: -0.1,
		MediumBelow:  -0.05,
	})
	assert.Equal(t, apperrors.ErrorTypeOutOfRange, apperrors.TypeOf(err))

	// 只配触发线、分档留空是合法配置
	err = service.SaveThresholdConfig(context.Background(), &models.AlertThresholdConfig{
		AlertType:    string(meta.AlertNDVIDrop),
		TriggerBelow: -0.1,
		IsEnabled:    true,
	})
	assert.NoError(t, err)
}

func TestEvaluateParcel_只配触发线的配置定级为低(t *testing.T) {
	service, testDB, factory := newAlertServiceForTest()
	defer testDB.Close()

	parcel := factory.CreateParcel()
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 80)
	factory.CreateAssessment(parcel.ID, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 62)

	// 分档留空时任何触发幅度都定为 low，不得错判为 critical
	factory.CreateThresholdConfig(string(meta.AlertHealthDecline), "",
		func(c *models.AlertThresholdConfig) {
			c.TriggerBelow = -10
			c.MediumBelow = 0
			c.HighBelow = 0
			c.CriticalBelow = 0
		})

	result, err := service.EvaluateParcel(context.Background(), parcel.ID)

	assert.NoError(t, err)
	assert.Len(t, result.Alerts, 1)
	assert.Equal(t, string(meta.AlertSeverityLow), result.Alerts[0].Severity)
}
