package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// successBody is the envelope for successful responses.
type successBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// errorBody is the envelope for failed responses.
type errorBody struct {
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func respondSuccess(c *gin.Context, code int, message string, data any) {
	c.JSON(code, successBody{Status: "success", Message: message, Data: data})
}

func respondFailure(c *gin.Context, code int, status, message string, fields map[string]string) {
	c.JSON(code, errorBody{Status: status, Message: message, StatusCode: code, Errors: fields})
}

// respondServerError hides internal failures behind a generic 500. The cause
// is logged, never returned.
func respondServerError(c *gin.Context, logger *zap.Logger, err error) {
	if logger == nil {
		logger = zap.L()
	}
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondFailure(c, http.StatusInternalServerError, "error", "Internal server error", nil)
}
