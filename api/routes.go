/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package api

import (
	"cropwatch-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 观测摄入
	observationController := controllers.NewObservationController()
	r.Route("/observations", func(r chi.Router) {
		r.With(ingestRateLimit("observations")).Post("/ingest", observationController.IngestObservations)
	})

	// 评估摄入与指数分级
	assessmentController := controllers.NewAssessmentController()
	r.Route("/assessments", func(r chi.Router) {
		r.With(ingestRateLimit("assessments")).Post("/ingest", assessmentController.IngestAssessments)
	})
	r.Post("/classify", assessmentController.ClassifyIndex)

	// 按地块的序列与趋势查询
	alertController := controllers.NewAlertController()
	r.Route("/parcels/{id}", func(r chi.Router) {
		r.Get("/observations", observationController.GetParcelObservations)
		r.Get("/assessments/latest", assessmentController.GetLatestAssessment)
		r.Get("/trend", assessmentController.GetParcelTrend)
		r.Post("/alerts/evaluate", alertController.EvaluateParcelAlerts)
	})

	// 告警管理
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", alertController.GetAlerts)
		r.Get("/stream", alertController.StreamAlerts)

		// 阈值配置
		r.Route("/threshold-configs", func(r chi.Router) {
			r.Get("/", alertController.GetThresholdConfigs)
			r.Post("/", alertController.SaveThresholdConfig)
		})

		r.Get("/{id}", alertController.GetAlert)
		r.Post("/{id}/acknowledge", alertController.AcknowledgeAlert)
		r.Post("/{id}/resolve", alertController.ResolveAlert)
	})

	// 处方图管理
	r.Route("/prescriptions", func(r chi.Router) {
		prescriptionController := controllers.NewPrescriptionController()

		r.Post("/", prescriptionController.GeneratePrescription)
		r.Get("/", prescriptionController.GetPrescriptions)
		r.Get("/{id}", prescriptionController.GetPrescription)
		r.Post("/{id}/status", prescriptionController.UpdatePrescriptionStatus)
		r.Get("/{id}/export", prescriptionController.ExportPrescription)
	})

	// 元数据查询
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/index-kinds", metaController.GetIndexKinds)
		r.Get("/health-bands", metaController.GetHealthBands)
		r.Get("/growth-stages", metaController.GetGrowthStages)
		r.Get("/alerts", metaController.GetAlertMeta)
		r.Get("/prescriptions", metaController.GetPrescriptionMeta)
	})
}
