package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertStatus_状态流转规则(t *testing.T) {
	assert.True(t, AlertStatusActive.CanTransitionTo(AlertStatusAcknowledged))
	assert.True(t, AlertStatusActive.CanTransitionTo(AlertStatusResolved))
	assert.True(t, AlertStatusAcknowledged.CanTransitionTo(AlertStatusResolved))

	// resolved 是终态，acknowledged 不允许回退
	assert.False(t, AlertStatusResolved.CanTransitionTo(AlertStatusActive))
	assert.False(t, AlertStatusResolved.CanTransitionTo(AlertStatusAcknowledged))
	assert.False(t, AlertStatusAcknowledged.CanTransitionTo(AlertStatusActive))
	assert.False(t, AlertStatusActive.CanTransitionTo(AlertStatusActive))
}

func TestMapStatus_线性流转不许跳步(t *testing.T) {
	assert.True(t, MapStatusDraft.CanTransitionTo(MapStatusApproved))
	assert.True(t, MapStatusApproved.CanTransitionTo(MapStatusApplied))
	assert.True(t, MapStatusApplied.CanTransitionTo(MapStatusCompleted))

	assert.False(t, MapStatusDraft.CanTransitionTo(MapStatusApplied))
	assert.False(t, MapStatusDraft.CanTransitionTo(MapStatusCompleted))
	assert.False(t, MapStatusApproved.CanTransitionTo(MapStatusDraft))
	assert.False(t, MapStatusCompleted.CanTransitionTo(MapStatusApplied))
}

func TestTrendWindow_解析为天数(t *testing.T) {
	assert.Equal(t, 30, TrendWindow30Day.ToDays())
	assert.Equal(t, 90, TrendWindow90Day.ToDays())
	assert.Equal(t, 365, TrendWindow365Day.ToDays())
	// 未识别窗口取默认30天
	assert.Equal(t, 30, TrendWindow("7d").ToDays())
}

func TestRateFor_按类型与级别查表(t *testing.T) {
	assert.InDelta(t, 80, RateFor(MapFertilizer, StressHigh), 1e-9)
	assert.InDelta(t, 35, RateFor(MapIrrigation, StressMedium), 1e-9)
	assert.InDelta(t, 1.5, RateFor(MapPesticide, StressLow), 1e-9)
	// unknown 级别回落到标准量
	assert.InDelta(t, 50, RateFor(MapFertilizer, StressUnknown), 1e-9)
	assert.Zero(t, RateFor(MapType("seeding"), StressHigh))
}
