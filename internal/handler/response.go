package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/middleware/jwt"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respond writes v with status on success, or the classified failure.
// TransactionMisuse panics inside ResultOf and ends up in gin's recovery.
func respond[T any](c *gin.Context, log *zap.Logger, status int, v T, err error) {
	res := domain.ResultOf(v, err)
	if res.IsSuccess() {
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, res.Value())
		return
	}
	fail(c, log, res.Err())
}

func fail(c *gin.Context, log *zap.Logger, e *domain.Error) {
	body := ErrorResponse{Code: e.Code, Message: e.Message, Retryable: e.Retryable}
	status := StatusFor(e.Kind)
	if status == http.StatusInternalServerError && log != nil {
		logger.WithContext(log, c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(e),
		)
	}
	if status == http.StatusInternalServerError {
		body = ErrorResponse{Code: "internal", Message: "internal server error"}
	}
	_ = c.Error(e)
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: err.Error()})
}

// actor returns the authenticated user id; Auth guarantees it is set.
func actor(c *gin.Context) string {
	return jwt.ActorID(c)
}
