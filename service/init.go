/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、缓存与分布式锁、各业务服务和接入连接器的装配
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules Redis/Kafka/MQTT均为可选依赖，连接失败时对应能力降级但不阻止服务启动
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"context"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cropwatch-service/client/connectors"
	"cropwatch-service/service/alert"
	"cropwatch-service/service/assessment"
	"cropwatch-service/service/cache"
	"cropwatch-service/service/database"
	"cropwatch-service/service/distributed_lock"
	"cropwatch-service/service/event"
	"cropwatch-service/service/observation"
	"cropwatch-service/service/prescription"
	"cropwatch-service/service/rate_limiter"
	"cropwatch-service/service/scheduler"
)

var (
	DB                        *gorm.DB
	GlobalAssessmentCache     *cache.AssessmentCache
	GlobalLockExecutor        *distributed_lock.LockExecutor
	GlobalObservationService  *observation.ObservationService
	GlobalAlertService        *alert.AlertService
	GlobalAssessmentService   *assessment.AssessmentService
	GlobalPrescriptionService *prescription.PrescriptionService
	GlobalAlertFeedService    *event.AlertFeedService
	GlobalScheduler           *scheduler.EvaluationScheduler
	GlobalObservationConsumer *connectors.KafkaObservationConsumer
	GlobalSceneNotifier       *connectors.MQTTSceneNotifier
	GlobalIngestLimiter       *rate_limiter.IngestRateLimiter
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	// Redis缓存与分布式锁，连接失败时降级为nil
	var redisLock distributed_lock.DistributedLock
	if lock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("Redis分布式锁初始化失败，单实例模式运行: %v", err)
	} else {
		redisLock = lock
		GlobalLockExecutor = distributed_lock.NewLockExecutor(lock)
	}

	if limiter, err := rate_limiter.NewIngestRateLimiter(); err != nil {
		log.Printf("入库限流器初始化失败，入库不限流: %v", err)
	} else {
		GlobalIngestLimiter = limiter
	}

	var latestCache assessment.LatestCache
	if assessmentCache, err := cache.NewAssessmentCache(); err != nil {
		log.Printf("评估缓存初始化失败，最近评估查询直接读库: %v", err)
	} else {
		GlobalAssessmentCache = assessmentCache
		latestCache = assessmentCache
	}

	// 业务服务
	GlobalObservationService = observation.NewObservationService(DB)
	GlobalAlertService = alert.NewAlertService(DB, redisLock)
	GlobalAssessmentService = assessment.NewAssessmentService(DB, GlobalAlertService, latestCache)
	GlobalPrescriptionService = prescription.NewPrescriptionService(DB)

	// 告警实时推送
	GlobalAlertFeedService = event.NewAlertFeedService(DB)

	// 评估巡检调度器
	GlobalScheduler = scheduler.NewEvaluationScheduler(DB, GlobalAlertService, GlobalLockExecutor)
	if err := GlobalScheduler.Start(); err != nil {
		log.Printf("启动评估巡检调度器失败: %v", err)
	}

	// 接入连接器，未配置broker时保持关闭
	GlobalObservationConsumer = connectors.NewKafkaObservationConsumer(GlobalObservationService)
	if GlobalObservationConsumer != nil {
		GlobalObservationConsumer.Start()
	}

	GlobalSceneNotifier = connectors.NewMQTTSceneNotifier(func(ctx context.Context, notification *connectors.SceneNotification) error {
		for _, parcelID := range notification.ParcelIDs {
			if _, err := GlobalAlertService.EvaluateParcel(ctx, parcelID); err != nil {
				log.Printf("场景通知触发告警评估失败 [%s]: %v", parcelID, err)
			}
		}
		return nil
	})
	if GlobalSceneNotifier != nil {
		if err := GlobalSceneNotifier.Connect(); err != nil {
			log.Printf("MQTT场景通知连接失败: %v", err)
		}
	}

	log.Println("服务初始化完成")
}
