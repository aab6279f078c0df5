package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/interfaces/http/dto"
	"github.com/MfFischer/makersai-studio/pkg/errors"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			// 事件流已开始输出时无法再改写状态码，只能中断连接
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
				Code:    http.StatusInternalServerError,
				Message: errors.ErrInternalError.Message,
				Error:   &dto.ErrorDetail{ErrorCode: string(errors.CodeInternalError)},
				TraceID: c.GetString(string(logger.TraceIDKey)),
			})
		}()

		c.Next()
	}
}
