package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError logs err and writes the matching status. Only not-found and
// validation messages reach the client; every other failure is reported with
// the endpoint's generic message.
func HandleError(c *gin.Context, log zerolog.Logger, err error, message string) {
	platformErr := platformerrors.GetPlatformError(err)
	if platformErr == nil {
		platformErr = platformerrors.AsError(c.Request.Context(), platformerrors.LayerHandler, err, message)
	}
	platformerrors.LogError(log, platformErr)

	body := ErrorResponse{
		Error:     message,
		Code:      platformErr.Code,
		RequestID: platformErr.RequestID,
	}
	if platformerrors.IsClientSafe(platformErr.Type) {
		body.Error = platformErr.Message
	}

	c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.Type), body)
}

// HandleNewError creates a new typed error at the handler layer and handles it
func HandleNewError(c *gin.Context, log zerolog.Logger, errorType platformerrors.ErrorType, message string, code string) {
	err := platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, errorType, message, nil, code)
	HandleError(c, log, err, message)
}

// NotFoundRoute answers unknown paths in the same error shape.
func NotFoundRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found"})
}
