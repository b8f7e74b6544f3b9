// Package handlers holds the gin HTTP handlers for the analysis API.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/referta/referta/pkg/errors"
)

// errorResponse is the error envelope on every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an error to its HTTP status via the AppError code
// table.  Unknown errors are masked as internal.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		c.AbortWithStatusJSON(ae.Code.HTTPStatus(), errorResponse{
			Code:    ae.Code.String(),
			Message: ae.Message,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
		Code:    errors.ErrCodeInternal.String(),
		Message: "internal server error",
	})
}

// parseLimitOffset reads limit/offset query parameters, capping limit at
// max.
func parseLimitOffset(c *gin.Context, defaultLimit, max int) (int, int) {
	limit := defaultLimit
	offset := 0

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
