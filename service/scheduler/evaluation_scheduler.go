/*
 * @module service/scheduler/evaluation_scheduler
 * @description 评估巡检调度器：按Cron周期扫描近期有新评估的地块并补跑告警评估
 * @architecture 基于Go协程和定时器的调度器模式
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 定时触发 -> 获取分布式锁 -> 扫描新评估地块 -> 逐地块补跑告警评估
 * @rules 多实例部署时通过Redis分布式锁去重，锁被占用的实例直接跳过本轮；扫描窗口取上次扫描时间，首轮回看24小时
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm, cropwatch-service/service/alert
 * @refs service/alert/alert_service.go, service/distributed_lock/redis_lock.go
 */

package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"cropwatch-service/service/alert"
	"cropwatch-service/service/distributed_lock"
	"cropwatch-service/service/models"
)

const (
	defaultSweepCron = "0 0 */6 * * *" // 每6小时整点
	sweepLockKey     = "alert_evaluation_sweep"
	sweepLockTTL     = 10 * time.Minute
	initialLookback  = 24 * time.Hour
)

// EvaluationScheduler 评估巡检调度器
type EvaluationScheduler struct {
	db           *gorm.DB
	alertService *alert.AlertService
	lockExecutor *distributed_lock.LockExecutor // 可为 nil，单实例部署时不加锁
	cron         *cron.Cron
	ctx          context.Context
	cancel       context.CancelFunc

	mu        sync.Mutex
	lastSweep time.Time
}

// NewEvaluationScheduler 创建评估巡检调度器
func NewEvaluationScheduler(db *gorm.DB, alertService *alert.AlertService, lockExecutor *distributed_lock.LockExecutor) *EvaluationScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &EvaluationScheduler{
		db:           db,
		alertService: alertService,
		lockExecutor: lockExecutor,
		cron:         cron.New(cron.WithSeconds()),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 启动调度器，Cron表达式可通过环境变量 EVALUATION_CRON 覆盖
func (s *EvaluationScheduler) Start() error {
	expr := os.Getenv("EVALUATION_CRON")
	if expr == "" {
		expr = defaultSweepCron
	}

	if _, err := s.cron.AddFunc(expr, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("评估巡检调度器已启动", "cron", expr)
	return nil
}

// Stop 停止调度器
func (s *EvaluationScheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	slog.Info("评估巡检调度器已停止")
}

// runSweep 执行一轮巡检，多实例下由分布式锁去重
func (s *EvaluationScheduler) runSweep() {
	if s.lockExecutor == nil {
		if err := s.Sweep(s.ctx); err != nil {
			slog.Error("评估巡检失败", "error", err)
		}
		return
	}

	err := s.lockExecutor.ExecuteWithLock(s.ctx, sweepLockKey, sweepLockTTL, func() error {
		return s.Sweep(s.ctx)
	})
	if err != nil {
		slog.Error("评估巡检失败", "error", err)
	}
}

// Sweep 扫描自上次巡检以来有新评估的地块并补跑告警评估
func (s *EvaluationScheduler) Sweep(ctx context.Context) error {
	s.mu.Lock()
	since := s.lastSweep
	if since.IsZero() {
		since = time.Now().Add(-initialLookback)
	}
	sweepStart := time.Now()
	s.mu.Unlock()

	var parcelIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.HealthAssessment{}).
		Where("created_at >= ?", since).
		Distinct("parcel_id").
		Pluck("parcel_id", &parcelIDs).Error
	if err != nil {
		return err
	}

	evaluated := 0
	for _, parcelID := range parcelIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.alertService.EvaluateParcel(ctx, parcelID); err != nil {
			slog.Warn("巡检告警评估失败", "parcel_id", parcelID, "error", err)
			continue
		}
		evaluated++
	}

	s.mu.Lock()
	s.lastSweep = sweepStart
	s.mu.Unlock()

	slog.Info("评估巡检完成", "parcels", len(parcelIDs), "evaluated", evaluated)
	return nil
}
