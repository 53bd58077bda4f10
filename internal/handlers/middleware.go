package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing one sent by a proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// RequireAdmin checks the admin token from ?token= or X-Admin-Token. With no
// token configured the admin area is open.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	want := []byte(h.cfg.Server.AdminToken)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got := c.Query("token")
		if got == "" {
			got = c.GetHeader("X-Admin-Token")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logging.Warn("Admin token rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// LimitUpload caps request bodies at the configured upload size.
func (h *Handler) LimitUpload() gin.HandlerFunc {
	limit := int64(h.cfg.Server.MaxUploadMB) << 20
	return func(c *gin.Context) {
		if c.Request.Body != nil && limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
