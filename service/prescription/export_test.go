package prescription

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cropwatch-service/service/models"
)

func samplePrescription() *models.PrescriptionMap {
	return &models.PrescriptionMap{
		ID:       "map-1",
		ParcelID: "parcel-1",
		MapType:  "irrigation",
		Status:   "draft",
		Zones: models.ZoneList{
			{
				ID:              "zone-1",
				Name:            "高产区",
				AreaPercentage:  70,
				HealthScore:     65,
				ApplicationRate: 25,
				Color:           "#15803d",
				Recommendations: []string{"维持现有管理措施", "关注最佳收获时机"},
			},
			{
				ID:              "zone-2",
				Name:            "水分胁迫区",
				AreaPercentage:  30,
				HealthScore:     20,
				ApplicationRate: 45,
				Color:           "#dc2626",
				Recommendations: []string{"增加该区域灌溉频次"},
			},
		},
		CreatedAt: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestExportCSV_列契约(t *testing.T) {
	data, err := ExportCSV(samplePrescription())
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Zone ID,Zone Name,Area %,Health Score,Application Rate,Recommendations",
		strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "zone-1")
	assert.Contains(t, lines[2], "水分胁迫区")
}

func TestExportCSV_回读无损(t *testing.T) {
	prescription := samplePrescription()
	// 非整数值也要求往返无损
	prescription.Zones[0].AreaPercentage = 62.875
	prescription.Zones[1].AreaPercentage = 37.125
	prescription.Zones[1].ApplicationRate = 3.5

	data, err := ExportCSV(prescription)
	assert.NoError(t, err)

	zones, err := ParseCSV(data)
	assert.NoError(t, err)
	assert.Len(t, zones, len(prescription.Zones))

	for i, zone := range zones {
		assert.Equal(t, prescription.Zones[i].ID, zone.ID)
		assert.Equal(t, prescription.Zones[i].Name, zone.Name)
		assert.Equal(t, prescription.Zones[i].AreaPercentage, zone.AreaPercentage)
		assert.Equal(t, prescription.Zones[i].HealthScore, zone.HealthScore)
		assert.Equal(t, prescription.Zones[i].ApplicationRate, zone.ApplicationRate)
		assert.Equal(t, prescription.Zones[i].Recommendations, zone.Recommendations)
	}
}

func TestParseCSV_表头不符拒绝(t *testing.T) {
	_, err := ParseCSV([]byte("Zone ID,Zone Name,Area\nzone-1,高产区,100\n"))
	assert.Error(t, err)

	_, err = ParseCSV([]byte("Zone ID,Name,Area %,Health Score,Application Rate,Recommendations\n"))
	assert.Error(t, err)
}

func TestExportCSVGBK_中文转码(t *testing.T) {
	utf8Data, err := ExportCSV(samplePrescription())
	assert.NoError(t, err)

	gbkData, err := ExportCSVGBK(samplePrescription())
	assert.NoError(t, err)

	// GBK下中文为双字节，整体长度短于UTF-8且内容不同
	assert.NotEqual(t, utf8Data, gbkData)
	assert.Less(t, len(gbkData), len(utf8Data))
	// ASCII部分不受转码影响
	assert.Contains(t, string(gbkData), "Zone ID")
}

func TestExportFileName_按类型与日期命名(t *testing.T) {
	assert.Equal(t, "prescription_irrigation_2025-06-15.csv", ExportFileName(samplePrescription()))
}
