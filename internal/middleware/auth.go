package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/identity"
)

// authTimingFloor is the minimum response time for rejected credentials.
const authTimingFloor = 50 * time.Millisecond

// CallerIDKey is the gin context key holding the authenticated employee id.
const CallerIDKey = "caller_id"

// TokenVerifier turns a bearer token into a caller.
type TokenVerifier interface {
	Verify(token string) (identity.Caller, error)
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// Auth returns Gin middleware that verifies the bearer token and attaches
// the caller to the request context. Failures are counted per client IP
// when a guard is provided.
func Auth(verifier TokenVerifier, log *logrus.Logger, guard *AuthFailureGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractBearerToken(c)
		if token == "" {
			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "missing or invalid authorization header")
			return
		}

		caller, err := verifier.Verify(token)
		if err != nil {
			log.WithFields(logrus.Fields{
				"client_ip":  c.ClientIP(),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
			}).WithError(err).Warn("authentication failed")

			if guard != nil {
				guard.RecordFailure(c.ClientIP())
			}

			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid token")
			return
		}

		if guard != nil {
			guard.Reset(c.ClientIP())
		}

		c.Set(CallerIDKey, caller.ID)
		c.Request = c.Request.WithContext(identity.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireRole rejects callers without role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity.FromContext(c.Request.Context()).HasRole(role) {
			httputil.RespondError(c, http.StatusForbidden, httputil.CodeForbidden, role+" role required")
			return
		}

		c.Next()
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
