/*
 * @module api/controllers/prescription_controller
 * @description 处方图控制器，提供处方图生成、查询、状态流转与CSV导出接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 状态流转只允许 draft->approved->applied->completed 线性推进；导出文件名含图类型与创建日期
 * @dependencies cropwatch-service/service, github.com/go-chi/chi/v5
 * @refs service/prescription/prescription_service.go, service/prescription/export.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cropwatch-service/service"
	"cropwatch-service/service/meta"
	"cropwatch-service/service/prescription"
)

// PrescriptionController 处方图控制器
type PrescriptionController struct {
	prescriptionService *prescription.PrescriptionService
}

// NewPrescriptionController 创建处方图控制器实例
func NewPrescriptionController() *PrescriptionController {
	return &PrescriptionController{
		prescriptionService: service.GlobalPrescriptionService,
	}
}

// GeneratePrescription 生成处方图
// @Summary 生成处方图
// @Description 基于地块最近一次健康评估生成分区处方图，分区面积占比之和恒为100
// @Tags 处方图
// @Accept json
// @Produce json
// @Param request body prescription.GenerateRequest true "生成请求"
// @Success 200 {object} APIResponse{data=models.PrescriptionMap} "生成成功"
// @Failure 400 {object} APIResponse "图类型非法或问题区域数据被破坏"
// @Failure 404 {object} APIResponse "地块没有评估"
// @Router /prescriptions [post]
func (c *PrescriptionController) GeneratePrescription(w http.ResponseWriter, r *http.Request) {
	var req prescription.GenerateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	item, err := c.prescriptionService.Generate(r.Context(), &req)
	if err != nil {
		renderError(w, r, err, "生成处方图失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "生成处方图成功",
		Data:   item,
	})
}

// GetPrescriptions 获取处方图列表
// @Summary 获取处方图列表
// @Description 分页查询处方图，可按地块和状态过滤
// @Tags 处方图
// @Produce json
// @Param parcel_id query string false "地块ID"
// @Param status query string false "处方图状态" Enums(draft,approved,applied,completed)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.PrescriptionMap} "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /prescriptions [get]
func (c *PrescriptionController) GetPrescriptions(w http.ResponseWriter, r *http.Request) {
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

	items, total, err := c.prescriptionService.List(r.Context(), parcelID, status, page, size)
	if err != nil {
		renderError(w, r, err, "获取处方图列表失败")
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取处方图列表成功",
		Data:   items,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetPrescription 获取处方图详情
// @Summary 获取处方图详情
// @Tags 处方图
// @Produce json
// @Param id path string true "处方图ID"
// @Success 200 {object} APIResponse{data=models.PrescriptionMap} "查询成功"
// @Failure 404 {object} APIResponse "处方图不存在"
// @Router /prescriptions/{id} [get]
func (c *PrescriptionController) GetPrescription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.prescriptionService.GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err, "获取处方图详情失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取处方图详情成功",
		Data:   item,
	})
}

// UpdateStatusRequest 处方图状态流转请求
type UpdateStatusRequest struct {
	Status string `json:"status" example:"approved"`
}

// UpdatePrescriptionStatus 处方图状态流转
// @Summary 处方图状态流转
// @Description 沿 draft->approved->applied->completed 推进处方图状态,跳级或回退返回409
// @Tags 处方图
// @Accept json
// @Produce json
// @Param id path string true "处方图ID"
// @Param request body UpdateStatusRequest true "目标状态"
// @Success 200 {object} APIResponse{data=models.PrescriptionMap} "流转成功"
// @Failure 409 {object} APIResponse "非法状态流转"
// @Router /prescriptions/{id}/status [post]
func (c *PrescriptionController) UpdatePrescriptionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	target := meta.MapStatus(req.Status)
	if !target.IsValid() {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "不支持的处方图状态: " + req.Status,
		})
		return
	}

	item, err := c.prescriptionService.UpdateStatus(r.Context(), id, target)
	if err != nil {
		renderError(w, r, err, "处方图状态流转失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "处方图状态流转成功",
		Data:   item,
	})
}

// ExportPrescription 导出处方图CSV
// @Summary 导出处方图CSV
// @Description 导出分区明细CSV，encoding=gbk时输出GBK编码以兼容本地化表格软件
// @Tags 处方图
// @Produce text/csv
// @Param id path string true "处方图ID"
// @Param encoding query string false "输出编码" Enums(utf-8,gbk) default(utf-8)
// @Success 200 {string} string "CSV内容"
// @Failure 404 {object} APIResponse "处方图不存在"
// @Router /prescriptions/{id}/export [get]
func (c *PrescriptionController) ExportPrescription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := c.prescriptionService.GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err, "获取处方图详情失败")
		return
	}

	var data []byte
	if r.URL.Query().Get("encoding") == "gbk" {
		data, err = prescription.ExportCSVGBK(item)
	} else {
		data, err = prescription.ExportCSV(item)
	}
	if err != nil {
		renderError(w, r, err, "导出处方图失败")
		return
	}

	filename := prescription.ExportFileName(item)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
