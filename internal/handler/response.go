package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xtaosu/meme-memos/internal/service"
)

// Response is the envelope every JSON route answers with.
type Response struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, Response{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// fail maps service errors onto HTTP statuses. Storage details stay in the log.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		Error(c, http.StatusBadGateway, err.Error(), nil)
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "storage failure", nil)
	}
}
