/*
 * @module service/rate_limiter/ingest_rate_limiter_test
 * @description 入库限流器单元测试，无可用Redis时跳过
 * @architecture 测试层
 * @documentReference dev_docs/backend_requirements.md
 */

package rate_limiter

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// setupLimiter 连接测试Redis，不可用时跳过用例
func setupLimiter(t *testing.T) *IngestRateLimiter {
	limiter, err := NewIngestRateLimiter()
	if err != nil {
		t.Skipf("测试环境无可用Redis，跳过: %v", err)
	}
	return limiter
}

func TestAllow_窗口内配额扣减(t *testing.T) {
	os.Setenv("INGEST_RATE_LIMIT", "5")
	os.Setenv("INGEST_RATE_WINDOW_SECONDS", "60")
	defer os.Unsetenv("INGEST_RATE_LIMIT")
	defer os.Unsetenv("INGEST_RATE_WINDOW_SECONDS")

	limiter := setupLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	source := fmt.Sprintf("test_observations_%d", os.Getpid())
	assert.NoError(t, limiter.Reset(ctx, source))

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, source)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 5-i-1, result.Remaining)
	}

	// 配额用尽后拒绝
	result, err := limiter.Allow(ctx, source)
	assert.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)

	assert.NoError(t, limiter.Reset(ctx, source))
}

func TestAllow_不同来源配额独立(t *testing.T) {
	os.Setenv("INGEST_RATE_LIMIT", "1")
	defer os.Unsetenv("INGEST_RATE_LIMIT")

	limiter := setupLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	sourceA := fmt.Sprintf("test_a_%d", os.Getpid())
	sourceB := fmt.Sprintf("test_b_%d", os.Getpid())
	assert.NoError(t, limiter.Reset(ctx, sourceA))
	assert.NoError(t, limiter.Reset(ctx, sourceB))

	first, err := limiter.Allow(ctx, sourceA)
	assert.NoError(t, err)
	assert.True(t, first.Allowed)

	exhausted, err := limiter.Allow(ctx, sourceA)
	assert.NoError(t, err)
	assert.False(t, exhausted.Allowed)

	// 来源B不受来源A的配额影响
	other, err := limiter.Allow(ctx, sourceB)
	assert.NoError(t, err)
	assert.True(t, other.Allowed)

	assert.NoError(t, limiter.Reset(ctx, sourceA))
	assert.NoError(t, limiter.Reset(ctx, sourceB))
}
