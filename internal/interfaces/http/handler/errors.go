// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/dto"
	"github.com/MfFischer/makersai-studio/pkg/errors"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// statusClientClosedRequest 客户端已断开
const statusClientClosedRequest = 499

// toAppError 把领域错误映射为应用错误码
func toAppError(err error) *errors.AppError {
	var (
		rejected   *admission.RejectedError
		validation *generation.ValidationError
		stage      *generation.StageError
	)
	switch {
	case stderrors.As(err, &rejected):
		return errors.ErrTooManyRequests.WithError(err)
	case stderrors.As(err, &validation):
		return errors.ErrValidationFailed.WithError(err)
	case stderrors.As(err, &stage):
		return errors.Wrap(err, errors.CodeStageFailed, stage.PublicMessage())
	default:
		return errors.ErrGenerationFailed.WithError(err)
	}
}

// publicMessage 面向调用方的失败信息，不包含上游细节
func publicMessage(err error) string {
	return toAppError(err).Message
}

// respondError 写出错误响应；上游细节只进日志
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info(ctx, "client closed request", "path", c.FullPath())
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	appErr := toAppError(err)
	var (
		rejected   *admission.RejectedError
		validation *generation.ValidationError
	)
	switch {
	case stderrors.As(err, &rejected):
		dto.TooManyRequests(c, appErr.Message, rejected.RetryAfterSeconds())
	case stderrors.As(err, &validation):
		dto.ErrorWithDetail(c, http.StatusBadRequest, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   validation.Fields,
		})
	default:
		logger.Error(ctx, "generation request failed", err, "path", c.FullPath())
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
		})
	}
}

// invalidInput 请求体无法解析
func invalidInput(c *gin.Context, err error) {
	dto.ErrorWithDetail(c, http.StatusBadRequest, "Invalid input", &dto.ErrorDetail{
		ErrorCode: string(errors.CodeInvalidParam),
		Details:   err.Error(),
	})
}
