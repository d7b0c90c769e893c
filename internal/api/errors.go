package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jnst/user-notification-service/internal/model"
)

// Error codes returned in the error body.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

var errRouteNotFound = fmt.Errorf("route %w", model.ErrNotFound)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []model.FieldError `json:"details,omitempty"`
}

// writeError maps err to a status code and writes the error body.
// Unexpected errors are logged and reported without their text.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, detail := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}

func classify(err error) (int, ErrorDetail) {
	var verr *model.ValidationError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorDetail{Code: CodeValidationFailed, Message: "validation failed", Details: verr.Errors}
	case errors.Is(err, model.ErrInvalidJSON):
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidJSON, Message: err.Error()}
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, ErrorDetail{Code: CodeValidationFailed, Message: err.Error()}
	case errors.Is(err, model.ErrEmailTaken):
		return http.StatusConflict, ErrorDetail{Code: CodeConflict, Message: "user with this email already exists"}
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, ErrorDetail{Code: CodeConflict, Message: "conflict"}
	case errors.Is(err, errRouteNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: "route not found"}
	case errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: "user not found"}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: "not found"}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"}
	}
}
