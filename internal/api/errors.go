package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/metrics"
)

// respondError writes a standardized JSON error response and counts it.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondServiceError maps a service error to its HTTP response. Internal
// errors are logged with op and the request id; their text is not returned.
func respondServiceError(c *gin.Context, log *logrus.Logger, op string, err error) {
	status, code, message := httputil.Classify(err)

	if status == http.StatusInternalServerError {
		log.WithFields(logrus.Fields{
			"op":         op,
			"request_id": httputil.RequestID(c),
		}).WithError(err).Error("request failed")
	}

	respondError(c, status, code, message)
}
