// Package httperr maps store errors onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/db"
	"storefront/internal/domain/money"
	"storefront/internal/domain/order"
	"storefront/internal/domain/price"
	"storefront/internal/policy"
)

var ErrInvalidInput = errors.New("invalid input")

func Status(err error) int {
	switch {
	case errors.Is(err, policy.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrUniqueViolation),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, db.ErrCheckViolation),
		errors.Is(err, db.ErrForeignKeyViolation),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, price.ErrInvalidPrice),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Abort writes {"error": ...}. Internal errors get a generic message, the
// rest carry the wrapped text so callers see which constraint failed.
func Abort(c *gin.Context, err error, internalMsg string) {
	code := Status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = internalMsg
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// ParamID parses a positive integer path parameter, answering 400 when it
// is malformed.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// QueryID parses an optional positive integer query parameter; absent is 0.
func QueryID(c *gin.Context, name string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
