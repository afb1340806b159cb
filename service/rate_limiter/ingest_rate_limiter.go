/*
 * @module service/rate_limiter/ingest_rate_limiter
 * @description 基于Redis的入库限流器，按入库来源（观测/评估）做固定窗口限流
 * @architecture 工具层 - 分布式限流能力
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 按来源构造窗口Key -> Lua原子计数 -> 判断是否超限
 * @rules 使用Redis INCR和EXPIRE实现固定窗口限流；Redis不可用时整层关闭，入库不受限
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/routes.go, service/init.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// 默认限流参数：每个入库来源每60秒最多120个批次
const (
	defaultMaxRequests = 120
	defaultWindowSecs  = 60
)

// LimitResult 限流检查结果
type LimitResult struct {
	Allowed   bool   `json:"allowed"`   // 是否允许请求
	Limit     int    `json:"limit"`     // 窗口内最大请求数
	Remaining int    `json:"remaining"` // 剩余配额
	ResetAt   int64  `json:"reset_at"`  // 窗口重置时间（Unix时间戳）
	Source    string `json:"source"`    // 入库来源
}

// IngestRateLimiter 入库限流器
type IngestRateLimiter struct {
	client      *redis.Client
	maxRequests int
	windowSecs  int
}

// NewIngestRateLimiter 创建入库限流器
// 限流参数从环境变量 INGEST_RATE_LIMIT / INGEST_RATE_WINDOW_SECONDS 读取
func NewIngestRateLimiter() (*IngestRateLimiter, error) {
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")
	password := os.Getenv("REDIS_PASSWORD")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	limiter := &IngestRateLimiter{
		client:      client,
		maxRequests: envInt("INGEST_RATE_LIMIT", defaultMaxRequests),
		windowSecs:  envInt("INGEST_RATE_WINDOW_SECONDS", defaultWindowSecs),
	}

	slog.Info("入库限流器初始化成功",
		"redis_host", host,
		"redis_port", port,
		"limit", limiter.maxRequests,
		"window_seconds", limiter.windowSecs)

	return limiter, nil
}

// Allow 检查指定入库来源是否还有配额，有则原子扣减
func (r *IngestRateLimiter) Allow(ctx context.Context, source string) (*LimitResult, error) {
	key := r.buildKey(source)

	// Lua脚本保证计数与过期设置的原子性
	script := `
		local key = KEYS[1]
		local max_requests = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		if current >= max_requests then
			local ttl = redis.call('TTL', key)
			if ttl == -1 then
				ttl = window
			end
			return {0, current, ttl}
		end

		local new_count = redis.call('INCR', key)
		if new_count == 1 then
			redis.call('EXPIRE', key, window)
		end

		local ttl = redis.call('TTL', key)
		if ttl == -1 then
			ttl = window
		end

		return {1, new_count, ttl}
	`

	result, err := r.client.Eval(ctx, script, []string{key}, r.maxRequests, r.windowSecs).Result()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}

	results := result.([]interface{})
	allowed := results[0].(int64) == 1
	currentCount := int(results[1].(int64))
	ttl := int(results[2].(int64))

	remaining := r.maxRequests - currentCount
	if remaining < 0 {
		remaining = 0
	}

	return &LimitResult{
		Allowed:   allowed,
		Limit:     r.maxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Second).Unix(),
		Source:    source,
	}, nil
}

// buildKey 按来源和当前窗口构造限流Key
func (r *IngestRateLimiter) buildKey(source string) string {
	currentWindow := time.Now().Unix() / int64(r.windowSecs)
	return fmt.Sprintf("ingest_limit:%s:%d", source, currentWindow)
}

// Reset 重置指定来源的限流计数（仅用于测试或管理）
func (r *IngestRateLimiter) Reset(ctx context.Context, source string) error {
	return r.client.Del(ctx, r.buildKey(source)).Err()
}

// Close 关闭Redis客户端
func (r *IngestRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envInt 读取整数环境变量，非法或缺失时返回默认值
func envInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
