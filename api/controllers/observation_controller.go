/*
 * @module api/controllers/observation_controller
 * @description 观测控制器，提供遥感指数观测的批量入库与按地块查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 批量入库任一条目非法整批拒绝；查询窗口仅接受 30d/90d/365d
 * @dependencies cropwatch-service/service, github.com/go-chi/chi/v5
 * @refs service/observation/observation_service.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cropwatch-service/service"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/observation"
)

// ObservationController 观测控制器
type ObservationController struct {
	observationService *observation.ObservationService
}

// NewObservationController 创建观测控制器实例
func NewObservationController() *ObservationController {
	return &ObservationController{
		observationService: service.GlobalObservationService,
	}
}

// IngestObservations 批量入库观测
// @Summary 批量入库遥感指数观测
// @Description 接收一批指数观测并按采集日期排序后落库，任一条目非法整批拒绝
// @Tags 观测
// @Accept json
// @Produce json
// @Param observations body []map[string]interface{} true "观测批次"
// @Success 200 {object} APIResponse "入库成功"
// @Failure 400 {object} APIResponse "载荷非法"
// @Router /observations/ingest [post]
func (c *ObservationController) IngestObservations(w http.ResponseWriter, r *http.Request) {
	var payloads []map[string]interface{}
	if err := render.DecodeJSON(r.Body, &payloads); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	records := make([]observation.ObservationRecord, 0, len(payloads))
	for _, payload := range payloads {
		record, err := observation.NormalizeRecord(payload)
		if err != nil {
			renderError(w, r, err, "观测载荷归一化失败")
			return
		}
		records = append(records, *record)
	}

	count, err := c.observationService.IngestBatch(r.Context(), records)
	if err != nil {
		renderError(w, r, err, "观测入库失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "观测入库成功",
		Data:   map[string]interface{}{"count": count},
	})
}

// GetParcelObservations 查询地块观测序列
// @Summary 查询地块观测序列
// @Description 按回看窗口查询地块的观测序列，按采集日期升序返回
// @Tags 观测
// @Produce json
// @Param id path string true "地块ID"
// @Param window query string false "回看窗口" Enums(30d,90d,365d) default(30d)
// @Success 200 {object} APIResponse "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /parcels/{id}/observations [get]
func (c *ObservationController) GetParcelObservations(w http.ResponseWriter, r *http.Request) {
	parcelID := chi.URLParam(r, "id")
	window := meta.TrendWindow(r.URL.Query().Get("window"))

	observations, err := c.observationService.ListByParcel(r.Context(), parcelID, window.ToDays())
	if err != nil {
		renderError(w, r, err, "查询观测序列失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "查询观测序列成功",
		Data: map[string]interface{}{
			"parcel_id":    parcelID,
			"window":       window.ToDays(),
			"count":        len(observations),
			"observations": observations,
		},
	})
}
