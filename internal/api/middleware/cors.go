package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSConfig lets browser dashboards read telemetry and post test
// reports. Agents send no Origin and are unaffected.
func DefaultCORSConfig() cors.Config {
	return cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Encoding",
			InstanceHeader,
			"X-Trace-ID",
		},
		ExposeHeaders: []string{"X-Trace-ID"},
		MaxAge:        time.Hour,
	}
}

// CORS wraps gin-contrib/cors.
func CORS(cfg cors.Config) gin.HandlerFunc {
	return cors.New(cfg)
}
