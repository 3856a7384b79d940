package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// FormKeyAuth authenticates the refund form webhook: the Bearer key must match the bcrypt hash
func FormKeyAuth(keyHash string, logger *zap.Logger) gin.HandlerFunc {
	keyHash = strings.TrimSpace(keyHash)
	return func(c *gin.Context) {
		if keyHash == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "form webhook not configured"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// Extract Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		key := strings.TrimSpace(parts[1])
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing form key"})
			c.Abort()
			return
		}

		if !VerifyKey(key, keyHash) {
			logger.Warn("Rejected form webhook key", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid form key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// HashKey hashes a form key using bcrypt
func HashKey(key string) (string, error) {
	// Use a cost of 10 for API keys (faster than passwords)
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(key)), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyKey verifies a form key against a hash
func VerifyKey(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}
