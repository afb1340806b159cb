/*
 * @module service/apperrors
 * @description 统一业务错误类型定义，提供错误分类、结构化错误详情和判定辅助函数
 * @architecture 分层架构 - 错误处理层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 错误产生 -> 错误分类 -> 向上传播 -> 控制器渲染
 * @rules 核心计算错误必须携带错误类型和出错字段，禁止裸错误向外传播
 * @dependencies errors, fmt
 * @refs service/alert, service/prescription
 */

package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType 业务错误类型
type ErrorType string

const (
	ErrorTypeInsufficientData   ErrorType = "insufficient_data"   // 历史数据不足
	ErrorTypeInvalidTransition  ErrorType = "invalid_transition"  // 非法状态流转
	ErrorTypeInvariantViolation ErrorType = "invariant_violation" // 不变量被破坏(面积占比等)
	ErrorTypeOutOfRange         ErrorType = "out_of_range"        // 取值缺失或超出允许范围
)

// BusinessError 结构化业务错误
// Field 标识引发错误的字段或实体属性，供调用方渲染可操作的提示信息
type BusinessError struct {
	Type    ErrorType `json:"type"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error 实现 error 接口
func (e *BusinessError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap 支持 errors.Is / errors.As 链式判定
func (e *BusinessError) Unwrap() error {
	return e.Cause
}

// New 创建业务错误
func New(errType ErrorType, field, format string, args ...interface{}) *BusinessError {
	return &BusinessError{
		Type:    errType,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientData 历史数据不足错误
func InsufficientData(field, format string, args ...interface{}) *BusinessError {
	return New(ErrorTypeInsufficientData, field, format, args...)
}

// InvalidTransition 非法状态流转错误
func InvalidTransition(field, format string, args ...interface{}) *BusinessError {
	return New(ErrorTypeInvalidTransition, field, format, args...)
}

// InvariantViolation 不变量破坏错误
func InvariantViolation(field, format string, args ...interface{}) *BusinessError {
	return New(ErrorTypeInvariantViolation, field, format, args...)
}

// OutOfRange 取值缺失或越界错误
func OutOfRange(field, format string, args ...interface{}) *BusinessError {
	return New(ErrorTypeOutOfRange, field, format, args...)
}

// TypeOf 提取错误的业务类型，非业务错误返回空串
func TypeOf(err error) ErrorType {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Type
	}
	return ""
}

// IsType 判断错误是否属于指定业务类型
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
