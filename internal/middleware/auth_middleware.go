package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/dealfinder/internal/utils"
)

const (
	ctxClientID = "client_id"
	ctxOwnerID  = "owner_id"
)

// APIKeyMiddleware authenticates public API callers with a static key list.
// An empty key list leaves the API open; callers then share the anonymous
// client.
type APIKeyMiddleware struct {
	keys        [][]byte
	rateLimiter *KeyedRateLimiter
}

// NewAPIKeyMiddleware constructs a new APIKeyMiddleware.
func NewAPIKeyMiddleware(keys []string) *APIKeyMiddleware {
	m := &APIKeyMiddleware{rateLimiter: NewInvalidAuthRateLimiter()}
	for _, k := range keys {
		m.keys = append(m.keys, []byte(k))
	}
	return m
}

// Handle returns a Gin middleware function that enforces authentication.
func (m *APIKeyMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.keys) == 0 {
			setClient(c, "anonymous")
			c.Next()
			return
		}

		token := c.GetHeader("X-Api-Key")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				m.handleAuthError(c, "Missing or invalid authorization header")
				return
			}
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if !m.valid(token) {
			m.handleAuthError(c, "Invalid API token")
			return
		}

		setClient(c, token)
		c.Next()
	}
}

func (m *APIKeyMiddleware) valid(token string) bool {
	ok := 0
	for _, k := range m.keys {
		ok |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return ok == 1
}

func (m *APIKeyMiddleware) handleAuthError(c *gin.Context, message string) {
	if !m.rateLimiter.Allow(c.ClientIP()) {
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}
	utils.Error(c, 401, utils.ErrInvalidToken.Error(), message)
	c.Abort()
}

// setClient stores a stable, non-secret client id and a numeric owner id
// derived from the key.
func setClient(c *gin.Context, key string) {
	sum := sha256.Sum256([]byte(key))
	c.Set(ctxClientID, hex.EncodeToString(sum[:6]))
	c.Set(ctxOwnerID, int64(binary.BigEndian.Uint64(sum[:8])>>1))
}

// GetClientID returns the authenticated client id from context.
func GetClientID(c *gin.Context) string {
	return c.GetString(ctxClientID)
}

// GetOwnerID returns the numeric owner id sessions are bound to.
func GetOwnerID(c *gin.Context) int64 {
	return c.GetInt64(ctxOwnerID)
}

// SearchRateLimit throttles pipeline runs per API client.
func SearchRateLimit(limiter *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(GetClientID(c)) {
			utils.ErrorFrom(c, utils.ErrRateLimited, "Search rate limit exceeded, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
