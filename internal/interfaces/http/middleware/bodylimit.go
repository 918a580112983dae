package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidamed/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body at maxBytes. Issuance payloads are
// small JSON documents, so anything announcing a larger body is
// rejected up front with 413; bodies that omit Content-Length are
// capped while being read.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			resp := dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				c.GetString("request_id"),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
