package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS sets cross-origin headers. An origin list containing "*" allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", strings.Join([]string{"GET", "POST", "OPTIONS"}, ", "))
		c.Header("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, stripe-signature")
		c.Next()
	}
}
