package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
)

// envelope is the standard success body.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Success bool   `json:"success"`
}

// errorEnvelope is the standard failure body. Data is always null and no
// token material is ever included.
type errorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		Status:  status,
		Message: message,
		Data:    data,
		Success: status >= 200 && status < 300,
	})
}

// respondError maps any error to the error envelope exactly once at the
// boundary. Unexpected errors surface as a generic 500 and are logged with
// their cause.
func respondError(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}

	details := apiErr.Errors
	if details == nil {
		details = []string{}
	}
	c.JSON(apiErr.StatusCode, errorEnvelope{
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
		Data:       nil,
		Success:    false,
		Errors:     details,
	})
}
