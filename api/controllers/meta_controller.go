/*
 * @module api/controllers/meta_controller
 * @description 元数据控制器，提供指数类型、健康等级、生育期、告警与处方图枚举及施用量表的查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 枚举与施用量表由代码内置，接口只读
 * @dependencies cropwatch-service/service/meta
 * @refs service/meta/satellite.go, service/meta/prescription.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"cropwatch-service/service/meta"
)

// MetaController 元数据控制器
type MetaController struct{}

// NewMetaController 创建元数据控制器实例
func NewMetaController() *MetaController {
	return &MetaController{}
}

// GetIndexKinds 获取植被指数类型
// @Summary 获取植被指数类型
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse "查询成功"
// @Router /meta/index-kinds [get]
func (c *MetaController) GetIndexKinds(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取植被指数类型成功",
		Data: []meta.IndexKind{
			meta.IndexNDVI, meta.IndexEVI, meta.IndexNDWI, meta.IndexSAVI,
		},
	})
}

// GetHealthBands 获取健康等级及展示颜色
// @Summary 获取健康等级
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse "查询成功"
// @Router /meta/health-bands [get]
func (c *MetaController) GetHealthBands(w http.ResponseWriter, r *http.Request) {
	bands := []meta.HealthBand{
		meta.BandExcellent, meta.BandGood, meta.BandFair, meta.BandPoor, meta.BandCritical,
	}

	items := make([]map[string]interface{}, 0, len(bands))
	for _, band := range bands {
		items = append(items, map[string]interface{}{
			"band":  band,
			"color": band.Color(),
		})
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取健康等级成功",
		Data:   items,
	})
}

// GetGrowthStages 获取生育期列表
// @Summary 获取生育期列表
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse "查询成功"
// @Router /meta/growth-stages [get]
func (c *MetaController) GetGrowthStages(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取生育期列表成功",
		Data:   meta.GrowthStages(),
	})
}

// GetAlertMeta 获取告警枚举与默认阈值
// @Summary 获取告警枚举与默认阈值
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse "查询成功"
// @Router /meta/alerts [get]
func (c *MetaController) GetAlertMeta(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取告警元数据成功",
		Data: map[string]interface{}{
			"types":      []meta.AlertType{meta.AlertNDVIDrop, meta.AlertHealthDecline},
			"severities": []meta.AlertSeverity{meta.AlertSeverityLow, meta.AlertSeverityMedium, meta.AlertSeverityHigh, meta.AlertSeverityCritical},
			"statuses":   []meta.AlertStatus{meta.AlertStatusActive, meta.AlertStatusAcknowledged, meta.AlertStatusResolved},
			"defaults":   meta.DefaultAlertThresholds,
		},
	})
}

// GetPrescriptionMeta 获取处方图枚举与施用量表
// @Summary 获取处方图枚举与施用量表
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse "查询成功"
// @Router /meta/prescriptions [get]
func (c *MetaController) GetPrescriptionMeta(w http.ResponseWriter, r *http.Request) {
	mapTypes := []meta.MapType{meta.MapFertilizer, meta.MapIrrigation, meta.MapPesticide}

	types := make([]map[string]interface{}, 0, len(mapTypes))
	for _, mapType := range mapTypes {
		types = append(types, map[string]interface{}{
			"type":      mapType,
			"rate_unit": mapType.RateUnit(),
			"rates":     meta.ApplicationRates[mapType],
		})
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取处方图元数据成功",
		Data: map[string]interface{}{
			"map_types": types,
			"statuses":  []meta.MapStatus{meta.MapStatusDraft, meta.MapStatusApproved, meta.MapStatusApplied, meta.MapStatusCompleted},
		},
	})
}
