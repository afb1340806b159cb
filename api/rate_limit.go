/*
 * @module api/rate_limit
 * @description 入库限流中间件，按入库来源对批量接口做配额检查
 * @architecture RESTful API架构 - 中间件层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 请求到达 -> 限流器配额检查 -> 放行或返回429
 * @rules 限流器未初始化时整层关闭；限流器自身故障时放行请求而非阻断入库
 * @dependencies github.com/go-chi/render
 * @refs service/rate_limiter/ingest_rate_limiter.go
 */

package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"cropwatch-service/api/controllers"
	"cropwatch-service/service"
)

// ingestRateLimit 按来源限流入库请求
func ingestRateLimit(source string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := service.GlobalIngestLimiter
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), source)
			if err != nil {
				slog.Warn("入库限流检查失败，放行请求", "source", source, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt))

			if !result.Allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, controllers.APIResponse{
					Status: http.StatusTooManyRequests,
					Msg:    "入库请求超过限流配额，请稍后重试",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
