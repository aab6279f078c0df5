// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/dto"
	"github.com/MfFischer/makersai-studio/pkg/errors"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// ClientIDKey gin.Context 中客户端身份的键
const ClientIDKey = "client_id"

// ClientIdentity 以客户端地址作为准入与用量统计的身份
func ClientIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.ClientIP()
		if id == "" {
			id = "anonymous"
		}
		c.Set(ClientIDKey, id)
		ctx := logger.WithContext(c.Request.Context(), logger.ClientIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Admission 通用固定窗口准入中间件
func Admission(ctrl *admission.Controller) gin.HandlerFunc {
	if ctrl == nil || !ctrl.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		d := ctrl.Admit(c.Request.Context(), c.GetString(ClientIDKey))
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			dto.TooManyRequests(c, errors.ErrTooManyRequests.Message, d.RetryAfterSeconds())
			return
		}
		c.Next()
	}
}
