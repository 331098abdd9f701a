package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const ctxUserKey = "auth_user"

// RequireAuth guards mutation endpoints. Two credential styles are
// accepted: "Bearer <jwt>" from /auth/login, and "Basic user:pass"
// checked against the users table. Downstream handlers only care
// that the call was authorized.
func RequireAuth(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")

		switch {
		case strings.HasPrefix(strings.ToLower(h), "bearer "):
			raw := strings.TrimSpace(h[len("Bearer "):])
			claims, err := tokens.Parse(raw)
			if err != nil {
				unauthorized(c)
				return
			}
			c.Set(ctxUserKey, claims.Username)

		case strings.HasPrefix(strings.ToLower(h), "basic "):
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				unauthorized(c)
				return
			}
			u, err := repo.GetByUsername(c.Request.Context(), username)
			if err != nil || u == nil {
				unauthorized(c)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
				unauthorized(c)
				return
			}
			c.Set(ctxUserKey, u.Username)

		default:
			unauthorized(c)
			return
		}

		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Basic")
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	c.Abort()
}

// Username returns the authenticated caller's username, empty when
// the request skipped the auth middleware.
func Username(c *gin.Context) string {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}
