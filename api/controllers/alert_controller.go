/*
 * @module api/controllers/alert_controller
 * @description 告警控制器，提供告警查询、状态流转、阈值配置管理与SSE实时推送接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 状态流转只允许 active->acknowledged/resolved、acknowledged->resolved，非法流转返回409
 * @dependencies cropwatch-service/service, github.com/go-chi/chi/v5, github.com/google/uuid
 * @refs service/alert/alert_service.go, service/event/alert_feed.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"cropwatch-service/service"
	"cropwatch-service/service/alert"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/models"
)

// AlertController 告警控制器
type AlertController struct {
	alertService *alert.AlertService
}

// NewAlertController 创建告警控制器实例
func NewAlertController() *AlertController {
	return &AlertController{
		alertService: service.GlobalAlertService,
	}
}

// GetAlerts 获取告警列表
// @Summary 获取告警列表
// @Description 分页查询告警，可按地块和状态过滤，按创建时间倒序返回
// @Tags 告警
// @Produce json
// @Param parcel_id query string false "地块ID"
// @Param status query string false "告警状态" Enums(active,acknowledged,resolved)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.Alert} "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /alerts [get]
func (c *AlertController) GetAlerts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	parcelID := r.URL.Query().Get("parcel_id")
	status := r.URL.Query().Get("status")

	alerts, total, err := c.alertService.GetAlerts(r.Context(), parcelID, status, page, size)
	if err != nil {
		renderError(w, r, err, "获取告警列表失败")
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取告警列表成功",
		Data:   alerts,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetAlert 获取告警详情
// @Summary 获取告警详情
// @Tags 告警
// @Produce json
// @Param id path string true "告警ID"
// @Success 200 {object} APIResponse{data=models.Alert} "查询成功"
// @Failure 404 {object} APIResponse "告警不存在"
// @Router /alerts/{id} [get]
func (c *AlertController) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.alertService.GetAlertByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err, "获取告警详情失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取告警详情成功",
		Data:   item,
	})
}

// AcknowledgeAlert 确认告警
// @Summary 确认告警
// @Description 将告警从 active 流转到 acknowledged，记录确认时间
// @Tags 告警
// @Produce json
// @Param id path string true "告警ID"
// @Success 200 {object} APIResponse{data=models.Alert} "确认成功"
// @Failure 409 {object} APIResponse "非法状态流转"
// @Router /alerts/{id}/acknowledge [post]
func (c *AlertController) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.alertService.Acknowledge(r.Context(), id)
	if err != nil {
		renderError(w, r, err, "确认告警失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "确认告警成功",
		Data:   item,
	})
}

// ResolveAlert 解除告警
// @Summary 解除告警
// @Description 将告警流转到终态 resolved，记录解除时间
// @Tags 告警
// @Produce json
// @Param id path string true "告警ID"
// @Success 200 {object} APIResponse{data=models.Alert} "解除成功"
// @Failure 409 {object} APIResponse "非法状态流转"
// @Router /alerts/{id}/resolve [post]
func (c *AlertController) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.alertService.Resolve(r.Context(), id)
	if err != nil {
		renderError(w, r, err, "解除告警失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "解除告警成功",
		Data:   item,
	})
}

// EvaluateParcelAlerts 手动触发地块告警评估
// @Summary 手动触发地块告警评估
// @Description 加载地块最近两次评估并按阈值规则评估，历史不足两条时返回未评估
// @Tags 告警
// @Produce json
// @Param id path string true "地块ID"
// @Success 200 {object} APIResponse{data=alert.EvaluationResult} "评估完成"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /parcels/{id}/alerts/evaluate [post]
func (c *AlertController) EvaluateParcelAlerts(w http.ResponseWriter, r *http.Request) {
	parcelID := chi.URLParam(r, "id")

	result, err := c.alertService.EvaluateParcel(r.Context(), parcelID)
	if err != nil {
		renderError(w, r, err, "告警评估失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "告警评估完成",
		Data:   result,
	})
}

// GetThresholdConfigs 获取阈值配置
// @Summary 获取告警阈值配置
// @Description 返回全局默认及指定地块的阈值配置
// @Tags 告警
// @Produce json
// @Param parcel_id query string false "地块ID"
// @Success 200 {object} APIResponse{data=[]models.AlertThresholdConfig} "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /alerts/threshold-configs [get]
func (c *AlertController) GetThresholdConfigs(w http.ResponseWriter, r *http.Request) {
	parcelID := r.URL.Query().Get("parcel_id")

	configs, err := c.alertService.ListThresholdConfigs(r.Context(), parcelID)
	if err != nil {
		renderError(w, r, err, "获取阈值配置失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取阈值配置成功",
		Data:   configs,
	})
}

// SaveThresholdConfig 保存阈值配置
// @Summary 保存告警阈值配置
// @Description 创建或更新阈值配置，parcel_id为空表示全局默认
// @Tags 告警
// @Accept json
// @Produce json
// @Param config body models.AlertThresholdConfig true "阈值配置"
// @Success 200 {object} APIResponse{data=models.AlertThresholdConfig} "保存成功"
// @Failure 400 {object} APIResponse "配置非法"
// @Router /alerts/threshold-configs [post]
func (c *AlertController) SaveThresholdConfig(w http.ResponseWriter, r *http.Request) {
	var config models.AlertThresholdConfig
	if err := render.DecodeJSON(r.Body, &config); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if !meta.AlertType(config.AlertType).IsValid() {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "不支持的告警类型: " + config.AlertType,
		})
		return
	}

	if err := c.alertService.SaveThresholdConfig(r.Context(), &config); err != nil {
		renderError(w, r, err, "保存阈值配置失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "保存阈值配置成功",
		Data:   config,
	})
}

// StreamAlerts 告警实时推送
// @Summary 告警实时推送
// @Description 以SSE长连接推送新产生的告警
// @Tags 告警
// @Produce text/event-stream
// @Success 200 {string} string "SSE事件流"
// @Router /alerts/stream [get]
func (c *AlertController) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	feed := service.GlobalAlertFeedService
	if feed == nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusServiceUnavailable,
			Msg:    "告警实时推送不可用",
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "连接不支持流式推送",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connectionID := uuid.New().String()
	client := feed.Subscribe(connectionID, r.RemoteAddr)
	defer feed.Unsubscribe(connectionID)

	fmt.Fprintf(w, "event: connected\ndata: {\"connection_id\":%q}\n\n", connectionID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case event := <-client.Channel:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: alert\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
