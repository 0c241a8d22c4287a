package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"trueface/internal/apperrors"
	"trueface/internal/logger"
)

// errorBody is the envelope every failed request renders.
type errorBody struct {
	Error *apperrors.Error `json:"error"`
}

// ErrTimeout is rendered when the caller gave up before the store answered.
var ErrTimeout = apperrors.New("REQUEST_TIMEOUT", http.StatusGatewayTimeout, "request cancelled before completion")

func (h *Handler) fail(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		appErr = apperrors.Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.String("request_id", logger.RequestID(c)),
			zap.Error(err),
		)
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(appErr.Status, errorBody{Error: appErr})
}

// validationError turns validator output into VALIDATION_ERROR naming the
// first missing field.
func validationError(err error) *apperrors.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, verrs[0].Field()+" is required")
	}
	return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid request payload")
}
