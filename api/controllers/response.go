package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"cropwatch-service/service/apperrors"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// statusForError 业务错误类型到HTTP状态码的映射
func statusForError(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInsufficientData:
		return http.StatusNotFound
	case apperrors.ErrorTypeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrorTypeOutOfRange, apperrors.ErrorTypeInvariantViolation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// renderError 按业务错误类型渲染统一错误响应
func renderError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	msg := fallbackMsg
	if apperrors.TypeOf(err) != "" {
		msg = err.Error()
	}
	render.JSON(w, r, APIResponse{
		Status: statusForError(err),
		Msg:    msg,
	})
}
