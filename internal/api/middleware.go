package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request completed", attrs...)
		case c.Writer.Status() >= 400:
			log.Warn("request completed", attrs...)
		default:
			log.Debug("request completed", attrs...)
		}
	}
}

// CORS answers cross-origin requests only for allowed origins. Requests
// without an Origin header (CLI, SDK) pass through. With no configured
// origins, only loopback pages (localhost, 127.0.0.1, ::1 on any port) are
// allowed; "*" allows every origin. Any other origin gets 403 before a
// handler runs.
func CORS(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")
		if !originAllowed(origin, allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed", "code": "invalid_input"})
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Asset-Name, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return isLoopbackOrigin(origin)
	}
	return slices.ContainsFunc(allowed, func(a string) bool {
		return a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin)
	})
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// NewRouter builds the gin engine with logging, recovery, CORS and the API routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	// Match on the escaped path so ids and keys may contain "/".
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), RequestLogger(h.logger()), CORS(h.AllowOrigins))
	h.RegisterRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "API route not found", "code": "not_found"})
	})
	return r
}
