/*
 * @module service/prescription/export
 * @description 处方图CSV导出：固定列契约的导出与回读，支持GBK转码兼容Excel消费方
 * @architecture 分层架构 - 导出适配层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 分区列表 -> CSV行 -> 可选GBK转码 -> 文件名拼装
 * @rules 列结构是对下游表格消费方的绑定契约，必须精确保持：Zone ID, Zone Name, Area %, Health Score, Application Rate, Recommendations；数值列导出后回读无损
 * @dependencies encoding/csv, golang.org/x/text
 * @refs service/prescription/prescription_service.go
 */

package prescription

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"cropwatch-service/service/models"
)

// csvHeader 导出列契约，顺序与拼写均不可变更
var csvHeader = []string{"Zone ID", "Zone Name", "Area %", "Health Score", "Application Rate", "Recommendations"}

// 建议列表在单元格内的连接符
const recommendationSeparator = "; "

// ExportFileName 按创建日期拼装导出文件名
func ExportFileName(prescription *models.PrescriptionMap) string {
	return fmt.Sprintf("prescription_%s_%s.csv",
		prescription.MapType,
		prescription.CreatedAt.Format("2006-01-02"))
}

// ExportCSV 将处方图分区导出为CSV字节流
// 数值列使用最短无损十进制表示，保证回读后面积、健康分与施用量完全一致
func ExportCSV(prescription *models.PrescriptionMap) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("写入CSV表头失败: %w", err)
	}

	for _, zone := range prescription.Zones {
		record := []string{
			zone.ID,
			zone.Name,
			formatFloat(zone.AreaPercentage),
			formatFloat(zone.HealthScore),
			formatFloat(zone.ApplicationRate),
			strings.Join(zone.Recommendations, recommendationSeparator),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("写入CSV行失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV写入失败: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportCSVGBK 导出GBK编码的CSV，供中文区域设置的Excel直接打开
func ExportCSVGBK(prescription *models.PrescriptionMap) ([]byte, error) {
	utf8Bytes, err := ExportCSV(prescription)
	if err != nil {
		return nil, err
	}

	reader := transform.NewReader(bytes.NewReader(utf8Bytes), simplifiedchinese.GBK.NewEncoder())
	gbkBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("GBK转码失败: %w", err)
	}
	return gbkBytes, nil
}

// ParseCSV 回读导出的CSV，恢复分区的契约列
// 与 ExportCSV 构成无损往返：分区数量、面积、健康分与施用量完全一致
func ParseCSV(data []byte) (models.ZoneList, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取CSV表头失败: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("CSV列数 %d 与契约列数 %d 不符", len(header), len(csvHeader))
	}
	for i, column := range csvHeader {
		if header[i] != column {
			return nil, fmt.Errorf("CSV第%d列应为 %q，实际为 %q", i+1, column, header[i])
		}
	}

	var zones models.ZoneList
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取CSV行失败: %w", err)
		}

		area, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("解析面积占比失败: %w", err)
		}
		score, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("解析健康分失败: %w", err)
		}
		rate, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("解析施用量失败: %w", err)
		}

		var recommendations []string
		if record[5] != "" {
			recommendations = strings.Split(record[5], recommendationSeparator)
		}

		zones = append(zones, models.Zone{
			ID:              record[0],
			Name:            record[1],
			AreaPercentage:  area,
			HealthScore:     score,
			ApplicationRate: rate,
			Recommendations: recommendations,
		})
	}

	return zones, nil
}

// formatFloat 最短无损十进制表示
func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
