package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/validation"
)

// ValidateAndBind decodes the JSON body into req and runs its validate tags.
// On failure it writes the error envelope and returns false.
func ValidateAndBind(c *gin.Context, req interface{}) bool {
	return bindOrReject(c, req, c.ShouldBindJSON(req))
}

// ValidateAndBindQuery is ValidateAndBind for query parameters
func ValidateAndBindQuery(c *gin.Context, req interface{}) bool {
	return bindOrReject(c, req, c.ShouldBindQuery(req))
}

func bindOrReject(c *gin.Context, req interface{}, bindErr error) bool {
	err := bindErr
	if err == nil {
		err = validation.ValidateStruct(req)
	}
	if err == nil {
		return true
	}
	RespondWithValidationError(c, err)
	return false
}

// RespondWithValidationError maps a bind or validation failure to 400, or to
// 413 when the body ran past MaxBodySize while being decoded.
func RespondWithValidationError(c *gin.Context, err error) {
	var (
		valErr  *validation.ValidationError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &valErr):
		common.ValidationErrorResponse(c, valErr.Errors)
	case errors.As(err, &sizeErr):
		tooLarge(c, sizeErr.Limit)
	default:
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
	}
	c.Abort()
}

// MaxBodySize caps request bodies at maxSize bytes. A declared length over
// the cap is refused up front; undeclared (chunked) bodies are cut off by
// http.MaxBytesReader and surface through RespondWithValidationError.
func MaxBodySize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			tooLarge(c, maxSize)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

func tooLarge(c *gin.Context, limit int64) {
	c.Header("X-Max-Body-Bytes", strconv.FormatInt(limit, 10))
	common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "request body too large")
}
