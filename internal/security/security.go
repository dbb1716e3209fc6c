package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GitHub usernames are alphanumeric with single inner hyphens, at most 39
// characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9]){0,38}$`)

const maxUsernameLength = 39

// ValidateUsername checks that a path-supplied username is a plausible
// GitHub login before it reaches the upstream API.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username exceeds maximum length of %d characters", maxUsernameLength)
	}
	if strings.Contains(username, "--") {
		return fmt.Errorf("invalid username format")
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("invalid username format")
	}
	return nil
}

// SecurityHeadersMiddleware adds standard security headers to all responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		c.Next()
	}
}

// RequestTimeoutMiddleware bounds request handling. Handlers see the
// deadline through the request context.
func RequestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
