package api

import (
	"net/http"

	"storefront/internal/apperr"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryAfterSeconds = "5"

var errorKinds = map[error]struct {
	status int
	code   string
}{
	apperr.ErrValidation:       {http.StatusBadRequest, "validation_error"},
	apperr.ErrNotFound:         {http.StatusNotFound, "not_found"},
	apperr.ErrStockConflict:    {http.StatusConflict, "stock_conflict"},
	apperr.ErrConflict:         {http.StatusConflict, "conflict"},
	apperr.ErrPaymentRejected:  {http.StatusPaymentRequired, "payment_rejected"},
	apperr.ErrStoreUnavailable: {http.StatusServiceUnavailable, "store_unavailable"},
	apperr.ErrInternal:         {http.StatusInternalServerError, "internal_error"},
}

// respondError maps a service error onto a status code and error body
func respondError(c *gin.Context, err error) {
	kind := errorKinds[apperr.Kind(err)]

	if apperr.IsRetryable(err) {
		c.Header("Retry-After", retryAfterSeconds)
	}

	details := err.Error()
	if kind.status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		details = "an unexpected error occurred"
	}

	c.JSON(kind.status, gin.H{
		"error":   kind.code,
		"details": details,
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
