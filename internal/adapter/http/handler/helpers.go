package handler

import (
	"errors"
	"net/http"
	"strconv"

	"core-ledger/internal/adapter/http/dto"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// fail attaches err to the context for the request logger and audit trail
// and writes the error envelope.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	response.Error(c, err)
}

// bindJSON decodes and validates the body into req, writing the error reply
// itself when it fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, apperror.ErrBodyTooLarge(tooLarge.Limit))
			return false
		}
		fail(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		fail(c, apperror.Validation("account id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// queryLimit parses ?limit=, clamping it to [1, max].
func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
