/*
 * @module service/metrics
 * @description Prometheus业务指标定义：观测/评估入库量、告警触发量、处方图生成量
 * @architecture 分层架构 - 可观测层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 指标注册 -> 业务代码计数 -> /metrics 暴露
 * @rules 指标只增不减，按地块维度不展开标签避免基数膨胀
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObservationsIngested 入库观测记录总数
	ObservationsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cropwatch_observations_ingested_total",
		Help: "入库的植被指数观测记录总数",
	})

	// AssessmentsIngested 入库健康评估总数
	AssessmentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cropwatch_assessments_ingested_total",
		Help: "入库的作物健康评估总数",
	})

	// AlertsRaised 触发的告警总数，按告警类型和严重级别区分
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwatch_alerts_raised_total",
		Help: "告警评估器触发的告警总数",
	}, []string{"alert_type", "severity"})

	// PrescriptionMapsGenerated 生成的处方图总数，按作业类型区分
	PrescriptionMapsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwatch_prescription_maps_generated_total",
		Help: "生成的变量作业处方图总数",
	}, []string{"map_type"})

	// IngestRejected 入库校验拒绝的记录总数，按原因区分
	IngestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwatch_ingest_rejected_total",
		Help: "入库校验拒绝的观测/评估记录总数",
	}, []string{"reason"})
)
