package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasla/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body at maxBytes. A declared
// Content-Length over the cap is rejected up front; chunked bodies are
// capped at read time via MaxBytesReader, so webhook payloads cannot
// stream past the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
