package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps an error onto the envelope. AppError codes carry their
// own HTTP status; anything else is masked as an internal error so stray
// error text never leaks to clients.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal,
			apperrors.DefaultMessageForCode(apperrors.ErrCodeInternal))
	}

	status := apperrors.HTTPStatusForCode(appErr.Code)
	body := ErrorResponse{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}
	if status >= http.StatusInternalServerError {
		// Internal details stay in the log.
		body.Detail = ""
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// respondBindError converts a JSON binding failure into a 400 envelope.
func respondBindError(c *gin.Context, err error) {
	respondError(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid request body").WithCause(err))
}
