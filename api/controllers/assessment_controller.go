/*
 * @module api/controllers/assessment_controller
 * @description 评估控制器，提供健康评估批量入库、最近评估查询、趋势汇总与指数分级接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 健康总分[0,100]、问题区域面积之和≤100，违反即整批拒绝
 * @dependencies cropwatch-service/service, github.com/go-chi/chi/v5
 * @refs service/assessment/assessment_service.go, service/satellite/health_classifier.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cropwatch-service/service"
	"cropwatch-service/service/assessment"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/satellite"
)

// AssessmentController 评估控制器
type AssessmentController struct {
	assessmentService *assessment.AssessmentService
}

// NewAssessmentController 创建评估控制器实例
func NewAssessmentController() *AssessmentController {
	return &AssessmentController{
		assessmentService: service.GlobalAssessmentService,
	}
}

// IngestAssessments 批量入库健康评估
// @Summary 批量入库健康评估
// @Description 接收一批健康评估并按评估日期排序后落库，落库后触发对应地块的告警评估
// @Tags 评估
// @Accept json
// @Produce json
// @Param assessments body []assessment.AssessmentRecord true "评估批次"
// @Success 200 {object} APIResponse "入库成功"
// @Failure 400 {object} APIResponse "载荷非法"
// @Router /assessments/ingest [post]
func (c *AssessmentController) IngestAssessments(w http.ResponseWriter, r *http.Request) {
	var records []assessment.AssessmentRecord
	if err := render.DecodeJSON(r.Body, &records); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	count, err := c.assessmentService.IngestBatch(r.Context(), records)
	if err != nil {
		renderError(w, r, err, "评估入库失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "评估入库成功",
		Data:   map[string]interface{}{"count": count},
	})
}

// GetLatestAssessment 查询地块最近一次评估
// @Summary 查询地块最近一次评估
// @Description 优先命中缓存，未命中时读库
// @Tags 评估
// @Produce json
// @Param id path string true "地块ID"
// @Success 200 {object} APIResponse{data=models.HealthAssessment} "查询成功"
// @Failure 404 {object} APIResponse "地块没有评估"
// @Router /parcels/{id}/assessments/latest [get]
func (c *AssessmentController) GetLatestAssessment(w http.ResponseWriter, r *http.Request) {
	parcelID := chi.URLParam(r, "id")

	latest, err := c.assessmentService.GetLatest(r.Context(), parcelID)
	if err != nil {
		renderError(w, r, err, "查询最近评估失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "查询最近评估成功",
		Data:   latest,
	})
}

// GetParcelTrend 查询地块趋势汇总
// @Summary 查询地块趋势汇总
// @Description 返回回看窗口内的评估与观测序列、均值统计和期间健康差值；评估不足两条时趋势字段为空
// @Tags 评估
// @Produce json
// @Param id path string true "地块ID"
// @Param window query string false "回看窗口" Enums(30d,90d,365d) default(30d)
// @Success 200 {object} APIResponse{data=satellite.TrendSummary} "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /parcels/{id}/trend [get]
func (c *AssessmentController) GetParcelTrend(w http.ResponseWriter, r *http.Request) {
	parcelID := chi.URLParam(r, "id")
	window := meta.TrendWindow(r.URL.Query().Get("window"))

	summary, err := c.assessmentService.GetTrend(r.Context(), parcelID, window.ToDays())
	if err != nil {
		renderError(w, r, err, "查询趋势汇总失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "查询趋势汇总成功",
		Data:   summary,
	})
}

// ClassifyRequest 指数分级请求
type ClassifyRequest struct {
	Kind  string   `json:"kind" example:"ndvi"`
	Value *float64 `json:"value"`
}

// ClassifyIndex 指数分级
// @Summary 指数分级
// @Description 将单个指数值映射到健康等级，返回等级、权重与展示颜色
// @Tags 评估
// @Accept json
// @Produce json
// @Param request body ClassifyRequest true "分级请求"
// @Success 200 {object} APIResponse{data=satellite.ClassifiedIndex} "分级成功"
// @Failure 400 {object} APIResponse "指数类型非法或指数值缺失"
// @Router /classify [post]
func (c *AssessmentController) ClassifyIndex(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	kind := meta.IndexKind(req.Kind)
	if !kind.IsValid() {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "不支持的指数类型: " + req.Kind,
		})
		return
	}

	classified, err := satellite.ClassifyOptionalIndex(kind, req.Value)
	if err != nil {
		renderError(w, r, err, "指数分级失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "指数分级成功",
		Data:   classified,
	})
}
