/*
 * @module service/cache/assessment_cache
 * @description 最近评估的Redis缓存，读路径优先命中缓存，未命中回源数据库
 * @architecture 分层架构 - 缓存层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 评估入库 -> 写缓存 -> 读路径命中/回源
 * @rules 缓存只存每地块最近一条评估；缓存不可用时静默退化为直接读库
 * @dependencies github.com/go-redis/redis/v8, encoding/json
 * @refs service/assessment/assessment_service.go
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"cropwatch-service/service/models"
)

// 最近评估缓存的过期时长，评估最多按日产出，24小时足够覆盖
const latestAssessmentTTL = 24 * time.Hour

// AssessmentCache 最近评估缓存
type AssessmentCache struct {
	client *redis.Client
}

// NewAssessmentCache 从环境变量创建缓存客户端
func NewAssessmentCache() (*AssessmentCache, error) {
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	return &AssessmentCache{client: client}, nil
}

// SetLatest 写入地块最近评估
func (c *AssessmentCache) SetLatest(ctx context.Context, assessment *models.HealthAssessment) error {
	data, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("序列化评估失败: %w", err)
	}

	if err := c.client.Set(ctx, latestKey(assessment.ParcelID), data, latestAssessmentTTL).Err(); err != nil {
		return fmt.Errorf("写入评估缓存失败: %w", err)
	}
	return nil
}

// GetLatest 读取地块最近评估，未命中返回 (nil, nil)
func (c *AssessmentCache) GetLatest(ctx context.Context, parcelID string) (*models.HealthAssessment, error) {
	data, err := c.client.Get(ctx, latestKey(parcelID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取评估缓存失败: %w", err)
	}

	var assessment models.HealthAssessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		return nil, fmt.Errorf("反序列化评估失败: %w", err)
	}
	return &assessment, nil
}

// Close 关闭Redis客户端
func (c *AssessmentCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// latestKey 构造缓存键
func latestKey(parcelID string) string {
	return fmt.Sprintf("cropwatch:assessment:latest:%s", parcelID)
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
