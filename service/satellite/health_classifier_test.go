package satellite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/apperrors"
	"cropwatch-service/service/meta"
)

func TestClassifyIndex_分级边界(t *testing.T) {
	cases := []struct {
		value float64
		band  meta.HealthBand
	}{
		{0.9, meta.BandExcellent},
		{0.71, meta.BandExcellent},
		{0.7, meta.BandGood}, // 边界值落入下一档
		{0.5, meta.BandFair},
		{0.3, meta.BandPoor},
		{0.1, meta.BandCritical},
		{-0.2, meta.BandCritical},
	}

	for _, c := range cases {
		classified := ClassifyIndex(meta.IndexNDVI, c.value)
		assert.Equal(t, c.band, classified.Band, "value=%v", c.value)
	}
}

func TestClassifyIndex_对任意输入总有结果(t *testing.T) {
	// NaN 与超出物理取值域的值都不恐慌，归入最差档
	assert.Equal(t, meta.BandCritical, ClassifyIndex(meta.IndexNDVI, math.NaN()).Band)
	assert.Equal(t, meta.BandExcellent, ClassifyIndex(meta.IndexNDVI, 5).Band)
	assert.Equal(t, meta.BandCritical, ClassifyIndex(meta.IndexNDVI, -5).Band)
}

func TestClassifyIndex_幂等(t *testing.T) {
	first := ClassifyIndex(meta.IndexEVI, 0.42)
	second := ClassifyIndex(meta.IndexEVI, 0.42)
	assert.Equal(t, first, second)
}

func TestClassifyIndex_携带权重与颜色(t *testing.T) {
	classified := ClassifyIndex(meta.IndexNDVI, 0.8)
	assert.Equal(t, meta.BandExcellent, classified.Band)
	assert.Equal(t, 5, classified.Weight)
	assert.Equal(t, meta.BandExcellent.Color(), classified.Color)

	worst := ClassifyIndex(meta.IndexNDVI, 0.05)
	assert.Equal(t, 1, worst.Weight)
}

func TestClassifyOptionalIndex_缺失值报错(t *testing.T) {
	_, err := ClassifyOptionalIndex(meta.IndexNDVI, nil)
	assert.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeOutOfRange))

	value := 0.6
	classified, err := ClassifyOptionalIndex(meta.IndexNDVI, &value)
	assert.NoError(t, err)
	assert.Equal(t, meta.BandGood, classified.Band)
}

func TestClassifyStressLevel(t *testing.T) {
	assert.Equal(t, meta.StressHigh, ClassifyStressLevel("high").Level)
	assert.Equal(t, meta.StressUnknown, ClassifyStressLevel("whatever").Level)
}
