package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 响应状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"
)

// Response 统一响应结构（表单前端按 status 字段判断结果）
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ── 成功响应 ──

// Success 200 提交成功
func Success(c *gin.Context, message, timestamp string) {
	c.JSON(http.StatusOK, Response{
		Status:    StatusSuccess,
		Message:   message,
		Timestamp: timestamp,
	})
}

// OK 200 探活
func OK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{
		Status:  StatusOK,
		Message: message,
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{
		Status:  StatusError,
		Message: message,
	})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// ServiceUnavailable 503
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

// InternalError 500
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
