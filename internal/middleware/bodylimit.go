package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/httputil"
)

// MaxBodySize rejects bodies declared larger than maxBytes and caps the
// rest while they are read.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, httputil.CodeInvalidRequest, "request body too large")
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
