package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ha-Ezer/wecc/internal/api/middleware"
)

// GetRequestID 从 Gin 上下文中提取请求追踪 ID，未经过 RequestID 中间件时返回空串
func GetRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}
