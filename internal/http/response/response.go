package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cvetrack-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes an *apierr.Error. Internal failures are not echoed to the
// client; the request log keeps the cause.
func RespondAPIError(c *gin.Context, ae *apierr.Error) {
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, "internal_error", nil)
	}
	if ae.Status >= http.StatusInternalServerError {
		if ae.Err != nil {
			_ = c.Error(ae.Err)
		}
		c.JSON(ae.Status, ErrorEnvelope{Error: APIError{Message: "internal server error", Code: ae.Code}})
		return
	}
	err := ae.Err
	if err == nil {
		err = errors.New(ae.Code)
	}
	RespondError(c, ae.Status, ae.Code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}
