/*
 * @module service/alert/script_executor
 * @description 告警条件脚本执行器，基于Yaegi解释执行租户自定义触发条件，带编译缓存
 * @architecture 工具层 - 解释器封装
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 脚本哈希 -> 缓存命中/编译 -> 参数注入 -> 执行返回
 * @rules 脚本必须实现 Run(params map[string]interface{}) (bool, error) 入口；编译结果按内容哈希缓存；脚本运行时panic被捕获并转为错误返回
 * @dependencies github.com/traefik/yaegi
 * @refs service/alert/evaluator.go
 */

package alert

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ScriptExecutor 条件脚本执行器
type ScriptExecutor struct {
	mu    sync.RWMutex
	cache map[string]*compiledScript
}

// compiledScript 编译后的脚本
type compiledScript struct {
	fn       func(map[string]interface{}) (bool, error)
	compiled time.Time
	hash     string
}

// NewScriptExecutor 创建条件脚本执行器
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{
		cache: make(map[string]*compiledScript),
	}
}

// Execute 执行条件脚本（带缓存）
// 脚本运行时panic会被捕获并作为错误返回，调用方据此回退到内置阈值判定
func (s *ScriptExecutor) Execute(ctx context.Context, script string, params map[string]interface{}) (triggered bool, err error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	s.mu.RLock()
	compiled, ok := s.cache[hash]
	s.mu.RUnlock()

	if !ok {
		compiled, err = s.compile(script, hash)
		if err != nil {
			return false, fmt.Errorf("脚本编译失败: %w", err)
		}

		s.mu.Lock()
		s.cache[hash] = compiled
		s.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			triggered = false
			err = fmt.Errorf("脚本执行panic: %v", r)
		}
	}()

	return compiled.fn(params)
}

// compile 编译脚本为可执行函数
func (s *ScriptExecutor) compile(script, hash string) (*compiledScript, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：注入变化量和指标快照，要求脚本以 Run 函数为入口
	// 返回值必须具体类型化为 bool，interface{} 返回位无法承接解释器里的布尔结果
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"math"
	"strings"
)

func Run(params map[string]interface{}) (bool, error) {
	var change float64
	if v, exists := params["change"]; exists {
		change, _ = v.(float64)
	}

	var triggerBelow float64
	if v, exists := params["trigger_below"]; exists {
		triggerBelow, _ = v.(float64)
	}

	metrics := map[string]interface{}{}
	if v, exists := params["metrics"]; exists {
		if m, ok := v.(map[string]interface{}); ok {
			metrics = m
		}
	}

	_, _, _ = change, triggerBelow, metrics
	_, _, _ = fmt.Sprintf, math.Abs, strings.TrimSpace

	// 脚本内容
%s
}
`, script)

	_, err := i.Eval(wrapped)
	if err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Run 函数: %w", err)
	}

	runFunc, ok := v.Interface().(func(map[string]interface{}) (bool, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须是 func(map[string]interface{}) (bool, error)")
	}

	return &compiledScript{
		fn:       runFunc,
		compiled: time.Now(),
		hash:     hash,
	}, nil
}
